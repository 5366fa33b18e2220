package api

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/kmeans.visual/internal/dataset"
	"github.com/banshee-data/kmeans.visual/internal/driver"
	"github.com/banshee-data/kmeans.visual/internal/kmeans"
	"github.com/banshee-data/kmeans.visual/internal/render"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Defaults fill run requests that omit k or max_iterations.
type Defaults struct {
	K             int
	MaxIterations int
}

// Server serves the clustering demo: run control, dataset selection, the
// drawing canvas and rendered charts.
type Server struct {
	driver   *driver.Driver
	source   *dataset.Source
	timeline *render.Timeline
	defaults Defaults

	mu   sync.Mutex
	last *driver.RunHandle // most recently started run

	muxOnce sync.Once
	mux     *http.ServeMux
}

// NewServer creates a Server and the Driver behind it. Every state the driver
// publishes is recorded into timeline before opts.OnUpdate, if set, sees it.
func NewServer(opts driver.Options, source *dataset.Source, timeline *render.Timeline, defaults Defaults) *Server {
	s := &Server{
		source:   source,
		timeline: timeline,
		defaults: defaults,
	}
	next := opts.OnUpdate
	opts.OnUpdate = func(state kmeans.State, terminal bool) {
		s.record(state, terminal)
		if next != nil {
			next(state, terminal)
		}
	}
	if opts.Bounds == (kmeans.Bounds{}) {
		opts.Bounds = source.Bounds()
	}
	s.driver = driver.New(opts)
	return s
}

// record runs on the driver goroutine. A state at iteration 1 is the first of
// a new run; the driver guarantees the superseded run published its last
// update before StartRun returned.
func (s *Server) record(state kmeans.State, terminal bool) {
	if state.Iteration == 1 {
		s.timeline.Reset()
	}
	s.timeline.Record(state, terminal)
}

// Driver returns the driver that executes runs.
func (s *Server) Driver() *driver.Driver {
	return s.driver
}

// Close cancels the active run.
func (s *Server) Close() {
	s.driver.Close()
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the demo routes. Repeated calls return the same mux.
func (s *Server) ServeMux() *http.ServeMux {
	s.muxOnce.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/runs", s.handleRuns)
		mux.HandleFunc("/api/runs/", s.handleRunByID)
		mux.HandleFunc("/api/datasets", s.listDatasets)
		mux.HandleFunc("/api/datasets/", s.selectDataset)
		mux.HandleFunc("/api/draw", s.handleDraw)
		mux.HandleFunc("/api/version", s.showVersion)
		mux.HandleFunc("/charts/run", s.showRunChart)
		mux.HandleFunc("/charts/latest", s.showLatestChart)
		s.AttachAdminRoutes(mux)
		s.mux = mux
	})
	return s.mux
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}
