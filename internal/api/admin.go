package api

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the /debug/ pages: run and dataset summaries plus
// the iteration chart. tsweb restricts them to loopback and tailnet callers.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Active run", func() any {
		h := s.driver.Current()
		if h == nil {
			return "none"
		}
		return fmt.Sprintf("%s k=%d iteration %d/%d (%s)", h.ID(), h.K(), h.Iteration(), h.MaxIterations(), h.Status())
	})
	debug.KVFunc("Dataset", func() any {
		selected := s.source.Selected()
		if selected == "" {
			return "none selected"
		}
		return string(selected)
	})
	debug.KVFunc("Recorded iterations", func() any {
		return len(s.timeline.Frames())
	})

	debug.Handle("timeline", "Scatter chart of every recorded iteration", http.HandlerFunc(s.showRunChart))
	debug.Handle("latest", "Scatter chart of the latest iteration", http.HandlerFunc(s.showLatestChart))
}
