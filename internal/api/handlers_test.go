package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/kmeans.visual/internal/dataset"
	"github.com/banshee-data/kmeans.visual/internal/httputil"
	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: k must be positive", kmeans.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", dataset.ErrUnknownKind, "spiral"), http.StatusBadRequest},
		{dataset.ErrNoSelection, http.StatusBadRequest},
		{dataset.ErrNoPoints, http.StatusBadRequest},
		{fmt.Errorf("%w: (900, 0)", dataset.ErrOffCanvas), http.StatusBadRequest},
		{dataset.ErrNotDrawing, http.StatusConflict},
		{fmt.Errorf("after 10 attempts: %w", kmeans.ErrDegenerateInitialization), http.StatusUnprocessableEntity},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.want, w.Code)
			body := decode[httputil.ErrorBody](t, w)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestMethodNotAllowed_ListsAllowedMethods(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		method, target, allow string
	}{
		{http.MethodGet, "/api/runs", "POST"},
		{http.MethodPut, "/api/runs/current", "GET, DELETE"},
		{http.MethodGet, "/api/draw", "POST, DELETE"},
		{http.MethodPost, "/charts/run", "GET"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.target, "")
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, tt.allow, w.Header().Get("Allow"))
		})
	}
}
