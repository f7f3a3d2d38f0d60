package web

import (
	"net/http"

	"github.com/JonMunkholm/cdm/internal/logging"
)

// configCheckResponse reports the state of the configuration tree.
type configCheckResponse struct {
	OK       bool     `json:"ok"`
	Dir      string   `json:"dir"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (s *Server) configCheck() configCheckResponse {
	configs := s.service.Configs()
	issues := configs.SelfCheck()
	return configCheckResponse{
		OK:       issues.OK(),
		Dir:      configs.Dir(),
		Errors:   issues.Errors,
		Warnings: issues.Warnings,
	}
}

// handleConfigCheck reports missing configuration files.
func (s *Server) handleConfigCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.configCheck())
}

// handleConfigReload drops cached configuration so the next run reads the
// tree again, and returns a fresh check.
func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	s.service.Configs().Reload()
	check := s.configCheck()
	logging.FromContext(r.Context()).Info("configuration reloaded",
		"dir", check.Dir,
		"errors", len(check.Errors),
		"warnings", len(check.Warnings),
	)
	writeJSON(w, r, http.StatusOK, check)
}

// handleConfigVendors lists vendor mapping overrides.
func (s *Server) handleConfigVendors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"vendors": s.service.Configs().VendorMappings()})
}

// handleHealth reports liveness and pipeline load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"pipeline": s.opts.Limiter.Status(),
	})
}
