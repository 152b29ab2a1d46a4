package httpapi

import "net/http"

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleProcessHealth)

	mux.HandleFunc("GET /api/health/matrix", s.handleHealthMatrix)
	mux.HandleFunc("GET /api/health/summary", s.handleHealthSummary)
	mux.HandleFunc("GET /api/health/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/health/config", s.handleUpdateConfig)
	mux.HandleFunc("POST /api/config/reload", s.handleReloadConfig)
	mux.HandleFunc("POST /api/accounts/reload", s.handleReloadAccounts)

	mux.HandleFunc("GET /api/route/{modelId}", s.handleRouteAccount)

	mux.HandleFunc("GET /api/accounts/{email}/health", s.handleAccountHealth)
	mux.HandleFunc("POST /api/accounts/{email}/models/{modelId}/toggle", s.handleToggleModel)
	mux.HandleFunc("POST /api/accounts/{email}/health/reset", s.handleResetHealth)

	mux.HandleFunc("GET /api/issues", s.handleListIssues)
	mux.HandleFunc("GET /api/issues/active", s.handleActiveIssues)
	mux.HandleFunc("GET /api/issues/stats", s.handleIssueStats)
	mux.HandleFunc("POST /api/issues/{id}/resolve", s.handleResolveIssue)
	mux.HandleFunc("POST /api/issues/{id}/acknowledge", s.handleAcknowledgeIssue)

	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("GET /api/events/stats", s.handleEventStats)
	mux.HandleFunc("DELETE /api/events", s.handleClearEvents)
	mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
}
