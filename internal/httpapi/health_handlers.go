package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/health"
	"github.com/antigravity-proxy/core/internal/router"
)

func (s *Server) handleProcessHealth(w http.ResponseWriter, r *http.Request) {
	accounts := s.registry.List()
	enabled := 0
	for _, a := range accounts {
		if a.Enabled {
			enabled++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"accounts": map[string]int{
			"total":   len(accounts),
			"enabled": enabled,
		},
	})
}

func (s *Server) modelsFromQuery(r *http.Request) []string {
	if v := r.URL.Query().Get("models"); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return s.modelIDs
}

func (s *Server) handleHealthMatrix(w http.ResponseWriter, r *http.Request) {
	modelIDs := s.modelsFromQuery(r)
	accounts := s.registry.List()
	matrix := s.tracker.BuildHealthMatrix(accounts, modelIDs)

	accountsOut := make([]map[string]interface{}, 0, len(accounts))
	for _, a := range accounts {
		accountsOut = append(accountsOut, map[string]interface{}{
			"email":   a.Email,
			"enabled": a.Enabled,
			"models":  matrix[a.Email],
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matrix": map[string]interface{}{
			"accounts":  accountsOut,
			"models":    modelIDs,
			"generated": time.Now().UTC(),
		},
	})
}

func (s *Server) handleHealthSummary(w http.ResponseWriter, r *http.Request) {
	summary := s.tracker.GetHealthSummary(s.registry.List())
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"config": s.cfg.Get()})
}

// configPatch is the wire shape for POST /api/health/config; every field
// is optional so the caller can send only what changed.
type configPatch struct {
	ConsecutiveFailureThreshold *int     `json:"consecutiveFailureThreshold"`
	WarningThreshold            *float64 `json:"warningThreshold"`
	CriticalThreshold           *float64 `json:"criticalThreshold"`
	AutoDisableEnabled          *bool    `json:"autoDisableEnabled"`
	AutoRecoveryMs              *int64   `json:"autoRecoveryMs"`
	EventMaxCount               *int     `json:"eventMaxCount"`
	EventRetentionDays          *int     `json:"eventRetentionDays"`
	QuotaThreshold              *float64 `json:"quotaThreshold"`
	QuotaPollIntervalMs         *int64   `json:"quotaPollIntervalMs"`
	StaleIssueMs                *int64   `json:"staleIssueMs"`
}

func (p configPatch) toStorePatch() config.Patch {
	return config.Patch{
		ConsecutiveFailureThreshold: p.ConsecutiveFailureThreshold,
		WarningThreshold:            p.WarningThreshold,
		CriticalThreshold:           p.CriticalThreshold,
		AutoDisableEnabled:          p.AutoDisableEnabled,
		AutoRecoveryMs:              p.AutoRecoveryMs,
		EventMaxCount:               p.EventMaxCount,
		EventRetentionDays:          p.EventRetentionDays,
		QuotaThreshold:              p.QuotaThreshold,
		QuotaPollIntervalMs:         p.QuotaPollIntervalMs,
		StaleIssueMs:                p.StaleIssueMs,
	}
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := s.cfg.Update(r.Context(), patch.toStorePatch())
	if err != nil {
		if verr, ok := err.(*config.ValidationError); ok {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"status": "error",
				"errors": verr.Fields,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "config": updated})
}

// handleReloadConfig re-reads the durable config snapshot from disk/Redis
// without restarting the process, so an operator who hand-edits config.json
// directly sees it take effect immediately.
func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfg.Reload(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "config": cfg})
}

// handleReloadAccounts re-reads the durable accounts.json snapshot, picking
// up accounts added/removed/edited by hand without a process restart.
func (s *Server) handleReloadAccounts(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleRouteAccount exposes C7's selection decision for operator
// debugging ("which account would this request use right now") without
// performing any upstream call itself — the actual proxying is the
// out-of-scope network shim (spec §1).
func (s *Server) handleRouteAccount(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "router not configured")
		return
	}

	modelID := r.PathValue("modelId")
	acc, err := s.router.PickAccount(modelID)
	if err != nil {
		if errors.Is(err, router.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "no_usable_account")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": acc.Email,
		"model":   modelID,
	})
}

func (s *Server) handleAccountHealth(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	acc, ok := s.registry.Get(email)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	modelIDs := s.modelsFromQuery(r)
	out := make(map[string]health.ModelSnapshot, len(modelIDs))
	for _, m := range modelIDs {
		out[m] = acc.Snapshot(m)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"health": out})
}

func (s *Server) handleToggleModel(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	modelID := r.PathValue("modelId")

	acc, ok := s.registry.Get(email)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.tracker.ToggleModel(acc, modelID, body.Enabled)
	snap := acc.Snapshot(modelID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "health": snap})
}

func (s *Server) handleResetHealth(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	acc, ok := s.registry.Get(email)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	var body struct {
		ModelID string `json:"modelId"`
	}
	_ = decodeJSON(r, &body)

	s.tracker.ResetHealth(acc, body.ModelID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
