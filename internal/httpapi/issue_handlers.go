package httpapi

import (
	"net/http"

	"github.com/antigravity-proxy/core/internal/issues"
)

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	status := issues.Status(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": s.aggregator.List(status)})
}

func (s *Server) handleActiveIssues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": s.aggregator.List(issues.StatusActive)})
}

func (s *Server) handleIssueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": s.aggregator.Stats()})
}

func (s *Server) handleResolveIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.aggregator.Resolve(id) {
		writeError(w, http.StatusNotFound, "unknown issue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleAcknowledgeIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.aggregator.Acknowledge(id) {
		writeError(w, http.StatusNotFound, "unknown issue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
