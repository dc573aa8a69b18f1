// internal/serve/api.go
//
// Domain administration endpoints.
//
// Context
// -------
// The dashboard drives domain provisioning through a small JSON surface:
//
//	POST   /api/domains                  {"domain": "...", "store_id": N}
//	GET    /api/domains/{domain}         → provisioning status
//	POST   /api/domains/{domain}/retry   re-enter a failed domain
//	DELETE /api/domains/{domain}         deregister + soft-deactivate
//
// Authentication and authorization live upstream of the edge (operator
// control plane); these routes sit under an admin prefix that tenant
// resolution never touches.
package serve

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/domain"
)

func (s *Service) domainRoutes(r chi.Router) {
	r.Post("/", s.registerDomain)
	r.Get("/{domain}", s.domainStatus)
	r.Post("/{domain}/retry", s.retryDomain)
	r.Delete("/{domain}", s.deregisterDomain)
}

type registerRequest struct {
	Domain  string `json:"domain"`
	StoreID uint64 `json:"store_id"`
}

type domainStatusResponse struct {
	Domain        string     `json:"domain"`
	Status        string     `json:"status"`
	IsVerified    bool       `json:"is_verified"`
	DNSConfigured bool       `json:"dns_configured"`
	SSLStatus     string     `json:"ssl_status"`
	LastError     *string    `json:"last_error,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

func (s *Service) registerDomain(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	if req.Domain == "" || strings.ContainsAny(req.Domain, "/ ") || req.StoreID == 0 {
		writeJSONError(w, http.StatusBadRequest, "domain and store_id are required")
		return
	}

	if err := s.manager.Register(r.Context(), req.Domain, req.StoreID); err != nil {
		zap.S().Errorw("domain register failed", "domain", req.Domain, "err", err)
		writeJSONError(w, http.StatusBadGateway, "provider registration failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"domain": req.Domain,
		"status": domain.StateRegistering,
	})
}

func (s *Service) domainStatus(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "domain")
	rec, err := domain.ByDomain(r.Context(), s.domains.DB(), host)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "unknown domain")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, domainStatusResponse{
		Domain:        rec.Domain,
		Status:        rec.Status,
		IsVerified:    rec.IsVerified,
		DNSConfigured: rec.DNSConfigured,
		SSLStatus:     rec.SSLStatus,
		LastError:     rec.LastError,
		LastCheckedAt: rec.LastCheckedAt,
	})
}

func (s *Service) retryDomain(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "domain")
	if err := s.manager.Retry(r.Context(), host); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "unknown domain")
			return
		}
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"domain": host,
		"status": domain.StateRegistering,
	})
}

func (s *Service) deregisterDomain(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "domain")
	if err := s.manager.Deregister(r.Context(), host); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "unknown domain")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "deregister failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

//
// JSON helpers
//

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
