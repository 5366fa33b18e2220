package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/kmeans.visual/internal/dataset"
	"github.com/banshee-data/kmeans.visual/internal/driver"
	"github.com/banshee-data/kmeans.visual/internal/httputil"
	"github.com/banshee-data/kmeans.visual/internal/kmeans"
	"github.com/banshee-data/kmeans.visual/internal/version"
)

const maxBodyBytes = 1 << 16

// StartRunRequest is the body of POST /api/runs. Omitted fields use the
// server defaults and the selected dataset.
type StartRunRequest struct {
	Dataset       string `json:"dataset,omitempty"`
	K             *int   `json:"k,omitempty"`
	MaxIterations *int   `json:"max_iterations,omitempty"`
}

// RunResponse describes a run.
type RunResponse struct {
	RunID         string        `json:"run_id"`
	Status        string        `json:"status"`
	K             int           `json:"k"`
	MaxIterations int           `json:"max_iterations"`
	Iteration     int           `json:"iteration"`
	Dataset       string        `json:"dataset,omitempty"`
	State         *kmeans.State `json:"state,omitempty"`
	Sizes         []int         `json:"sizes,omitempty"`
}

// DrawRequest is one pointer sample on the drawing canvas.
type DrawRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// errorStatus maps domain errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, kmeans.ErrDegenerateInitialization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kmeans.ErrInvalidArgument),
		errors.Is(err, dataset.ErrUnknownKind),
		errors.Is(err, dataset.ErrNoSelection),
		errors.Is(err, dataset.ErrNoPoints),
		errors.Is(err, dataset.ErrOffCanvas):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotDrawing):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	httputil.Error(w, errorStatus(err), err.Error())
}

// decodeBody reads an optional JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body: %v", kmeans.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.startRun(w, r)
	default:
		httputil.MethodNotAllowed(w, http.MethodPost)
	}
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	k, maxIterations := s.defaults.K, s.defaults.MaxIterations
	if req.K != nil {
		k = *req.K
	}
	if req.MaxIterations != nil {
		maxIterations = *req.MaxIterations
	}

	if req.Dataset != "" {
		kind, err := dataset.ParseKind(req.Dataset)
		if err != nil {
			writeError(w, err)
			return
		}
		// Reuse the previewed set when it is already selected.
		if kind != s.source.Selected() {
			if _, err := s.source.Select(kind); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	groups, err := s.source.Points()
	if err != nil {
		writeError(w, err)
		return
	}

	h, err := s.driver.StartRun(k, maxIterations, groups)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	s.last = h
	s.mu.Unlock()

	httputil.JSON(w, http.StatusCreated, map[string]string{"run_id": h.ID()})
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/runs/"))
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "run id is required")
		return
	}

	switch {
	case id == "current" && r.Method == http.MethodGet:
		s.showCurrentRun(w)
	case r.Method == http.MethodDelete:
		s.cancelRun(w, id)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) cancelRun(w http.ResponseWriter, id string) {
	h, ok := s.driver.Lookup(id)
	if !ok || !s.driver.CancelRun(h) {
		httputil.Error(w, http.StatusNotFound, fmt.Sprintf("no active run %q", id))
		return
	}
	httputil.OK(w, RunResponse{
		RunID:         h.ID(),
		Status:        h.Status().String(),
		K:             h.K(),
		MaxIterations: h.MaxIterations(),
		Iteration:     h.Iteration(),
	})
}

func (s *Server) showCurrentRun(w http.ResponseWriter) {
	s.mu.Lock()
	h := s.last
	s.mu.Unlock()

	resp := RunResponse{Status: driver.StatusIdle.String(), Dataset: string(s.source.Selected())}
	if h != nil {
		resp.RunID = h.ID()
		resp.Status = h.Status().String()
		resp.K = h.K()
		resp.MaxIterations = h.MaxIterations()
		resp.Iteration = h.Iteration()

		if f, ok := s.timeline.Latest(); ok && f.State.Iteration == resp.Iteration {
			state := f.State
			resp.State = &state
			resp.Sizes = state.Sizes()
		}
	}
	httputil.OK(w, resp)
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.OK(w, map[string]any{
		"kinds":    dataset.Kinds,
		"selected": s.source.Selected(),
	})
}

// selectDataset switches to a dataset kind and returns its points for preview.
// Selecting the current generated kind again produces a fresh set.
func (s *Server) selectDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	name := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/datasets/"))
	kind, err := dataset.ParseKind(name)
	if err != nil {
		writeError(w, err)
		return
	}

	groups, err := s.source.Select(kind)
	if err != nil {
		writeError(w, err)
		return
	}
	points := kmeans.Flatten(groups)
	if points == nil {
		points = []kmeans.Point{}
	}
	httputil.OK(w, map[string]any{
		"dataset": kind,
		"groups":  len(groups),
		"points":  points,
	})
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req DrawRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		added, err := s.source.AddStroke(kmeans.Point{X: req.X, Y: req.Y})
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.OK(w, map[string]any{"added": added})
	case http.MethodDelete:
		s.source.ClearDrawing()
		httputil.OK(w, map[string]string{"status": "cleared"})
	default:
		httputil.MethodNotAllowed(w, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.OK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) showRunChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	var buf bytes.Buffer
	if err := s.timeline.Render(&buf); err != nil {
		httputil.Error(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.HTML(w, buf.Bytes())
}

func (s *Server) showLatestChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	var buf bytes.Buffer
	if err := s.timeline.RenderLatest(&buf); err != nil {
		httputil.Error(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.HTML(w, buf.Bytes())
}
