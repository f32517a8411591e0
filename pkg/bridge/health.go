package bridge

import (
	"context"
	"fmt"
	"net/http"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Tokens int    `json:"tokens"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "WOPI bridge running")
}

// handleHealth checks the gateway and, in stateful mode, the registry.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Mode: h.auth.Mode()}

	var checks []storage.HealthChecker
	if hc, ok := h.gateway.(storage.HealthChecker); ok {
		checks = append(checks, hc)
	}
	if s, ok := h.auth.(*token.Stateful); ok {
		resp.Tokens = s.Registry().Len()
		if hc, ok := s.Registry().(storage.HealthChecker); ok {
			checks = append(checks, hc)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	for _, hc := range checks {
		if err := hc.Healthcheck(ctx); err != nil {
			requestLog(r).Warn("Health check failed: %v", err)
			resp.Status = "unavailable"
			resp.Error = "dependency unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
