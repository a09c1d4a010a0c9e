package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleScanStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "scan stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"scans":    s.stats.Snapshot(),
		"sessions": s.sessions.Len(),
		"queue":    s.orchestrator.Stats(),
	})
}
