package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/agentid-labs/a2a-authd/internal/authz"
	"github.com/agentid-labs/a2a-authd/internal/ctxkeys"
	apierrors "github.com/agentid-labs/a2a-authd/internal/errors"
	"github.com/agentid-labs/a2a-authd/internal/security"
	"github.com/agentid-labs/a2a-authd/internal/store"
)

// createRequest is the body for POST /api/a2a/authorizations.
type createRequest struct {
	RequesterCredentialID string               `json:"requester_credential_id"`
	GrantorCredentialID   string               `json:"grantor_credential_id"`
	Permissions           []authz.Permission   `json:"permissions"`
	Constraints           *authz.ConstraintSet `json:"constraints,omitempty"`
	Scope                 string               `json:"scope,omitempty"`
	Message               string               `json:"message,omitempty"`
	ValidUntil            *time.Time           `json:"valid_until,omitempty"`
}

// respondRequest is the body for POST /api/a2a/authorizations/{id}.
type respondRequest struct {
	Approved *bool  `json:"approved"`
	Message  string `json:"message,omitempty"`
}

// updateRequest is the body for PATCH /api/a2a/authorizations/{id}.
type updateRequest struct {
	Action string `json:"action"`
}

// checkRequest is the body for POST /api/a2a/authorizations/check.
// Permission is accepted as an alias for Action for SDK compatibility.
type checkRequest struct {
	RequesterCredentialID string        `json:"requester_credential_id"`
	GrantorCredentialID   string        `json:"grantor_credential_id"`
	Action                string        `json:"action"`
	Permission            string        `json:"permission,omitempty"`
	Resource              string        `json:"resource,omitempty"`
	Context               *checkContext `json:"context,omitempty"`
}

// checkContext carries optional request-time attributes for constraint
// evaluation. Absent fields default from the server clock (hour, day) or
// stay unknown (region).
type checkContext struct {
	Hour   *int   `json:"hour,omitempty"`
	Day    string `json:"day,omitempty"`
	Region string `json:"region,omitempty"`
}

// listResponse is the body for GET /api/a2a/authorizations.
type listResponse struct {
	Authorizations []authz.Authorization `json:"authorizations"`
	Total          int                   `json:"total"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	r, entry := s.beginAudit(r, "check")

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}
	if req.Action == "" {
		req.Action = req.Permission
	}

	entry.RequesterCredential = req.RequesterCredentialID
	entry.GrantorCredential = req.GrantorCredentialID
	entry.Action = req.Action

	if req.RequesterCredentialID == "" || req.GrantorCredentialID == "" || req.Action == "" {
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}

	candidates, err := s.store.Candidates(r.Context(), req.RequesterCredentialID, req.GrantorCredentialID)
	if err != nil {
		s.logger.Error("loading candidates", "error", err)
		s.writeError(w, r, apierrors.ErrDatabase, "error")
		return
	}

	ec := &authz.EvaluationContext{Hour: -1}
	if req.Context != nil {
		if req.Context.Hour != nil {
			ec.Hour = *req.Context.Hour
		}
		ec.Day = req.Context.Day
		ec.Region = req.Context.Region
	}

	start := time.Now()
	result := s.matcher.FindAuthorization(r.Context(), candidates, req.Action, req.Resource, ec)
	elapsed := time.Since(start)

	entry.AuthorizationID = result.AuthorizationID
	entry.Reason = result.Reason

	status := "denied"
	if result.Authorized {
		status = "granted"
	}
	s.metrics.RecordDecision(status, elapsed)

	s.writeJSON(w, r, http.StatusOK, result, status)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r, entry := s.beginAudit(r, "create")

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}

	entry.RequesterCredential = req.RequesterCredentialID
	entry.GrantorCredential = req.GrantorCredentialID

	if req.RequesterCredentialID == "" || req.GrantorCredentialID == "" || len(req.Permissions) == 0 {
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}
	for _, p := range req.Permissions {
		if p.Action == "" {
			s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
			return
		}
	}

	created, err := s.store.Create(r.Context(), &authz.Authorization{
		RequesterCredentialID: req.RequesterCredentialID,
		GrantorCredentialID:   req.GrantorCredentialID,
		Permissions:           req.Permissions,
		Constraints:           req.Constraints,
		Scope:                 req.Scope,
		Message:               req.Message,
		ValidUntil:            req.ValidUntil,
	})
	if err != nil {
		s.logger.Error("creating authorization", "error", err)
		s.writeError(w, r, apierrors.ErrDatabase, "error")
		return
	}

	entry.AuthorizationID = created.ID
	s.writeJSON(w, r, http.StatusCreated, created, "ok")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	r, _ = s.beginAudit(r, "list")

	q := r.URL.Query()
	filter := store.ListFilter{
		CredentialID: q.Get("credential_id"),
		Role:         q.Get("role"),
		Status:       q.Get("status"),
	}

	switch filter.Role {
	case "", "requester", "grantor":
	default:
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
			return
		}
		filter.Limit = n
	}

	items, total, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing authorizations", "error", err)
		s.writeError(w, r, apierrors.ErrDatabase, "error")
		return
	}

	s.writeJSON(w, r, http.StatusOK, listResponse{Authorizations: items, Total: total}, "ok")
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	r, entry := s.beginAudit(r, "get")

	id := r.PathValue("id")
	entry.AuthorizationID = id

	a, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, apierrors.ErrNotFound, "blocked")
			return
		}
		s.logger.Error("loading authorization", "id", id, "error", err)
		s.writeError(w, r, apierrors.ErrDatabase, "error")
		return
	}

	s.writeJSON(w, r, http.StatusOK, a, "ok")
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	r, entry := s.beginAudit(r, "respond")

	id := r.PathValue("id")
	entry.AuthorizationID = id

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Approved == nil {
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}

	a, err := s.store.Respond(r.Context(), id, *req.Approved, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, r, apierrors.ErrNotFound, "blocked")
		case errors.Is(err, store.ErrNotPending):
			s.writeError(w, r, apierrors.ErrConflict, "blocked")
		default:
			s.logger.Error("responding to authorization", "id", id, "error", err)
			s.writeError(w, r, apierrors.ErrDatabase, "error")
		}
		return
	}

	s.writeJSON(w, r, http.StatusOK, a, "ok")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	r, entry := s.beginAudit(r, "revoke")

	id := r.PathValue("id")
	entry.AuthorizationID = id

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action != "revoke" {
		s.writeError(w, r, apierrors.ErrInvalidRequest, "blocked")
		return
	}

	a, err := s.store.Revoke(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, apierrors.ErrNotFound, "blocked")
			return
		}
		s.logger.Error("revoking authorization", "id", id, "error", err)
		s.writeError(w, r, apierrors.ErrDatabase, "error")
		return
	}

	s.writeJSON(w, r, http.StatusOK, a, "ok")
}

// beginAudit seeds the request context with an audit entry.
func (s *Server) beginAudit(r *http.Request, operation string) (*http.Request, *ctxkeys.AuditEntry) {
	entry := &ctxkeys.AuditEntry{
		TraceID:   uuid.NewString(),
		Operation: operation,
		ClientIP: security.TrustedClientIP(
			r.RemoteAddr,
			r.Header.Get("X-Forwarded-For"),
			s.cfg.Listen.TrustedProxies,
		),
		StartTime: time.Now(),
	}
	return r.WithContext(ctxkeys.WithAuditEntry(r.Context(), entry)), entry
}

// finalizeAudit completes the audit entry, logs it, and records request metrics.
func (s *Server) finalizeAudit(r *http.Request, status string, code int) {
	entry, ok := ctxkeys.AuditEntryFrom(r.Context())
	if !ok {
		return
	}
	entry.Status = status

	if authInfo, authOK := ctxkeys.AuthInfoFrom(r.Context()); authOK {
		entry.AuthScheme = authInfo.Scheme
		entry.AuthSubject = authInfo.Subject
	}

	s.auditLogger.LogRequest(r.Context())
	s.metrics.RecordRequest(entry.Operation, code)
	s.metrics.RecordRequestDuration(entry.Operation, time.Since(entry.StartTime))
}

// writeJSON writes a JSON response and finalizes the audit entry.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, body any, auditStatus string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
	s.finalizeAudit(r, auditStatus, code)
}

// writeError writes an API error response and finalizes the audit entry.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError, auditStatus string) {
	if entry, ok := ctxkeys.AuditEntryFrom(r.Context()); ok && entry.Reason == "" {
		entry.Reason = apiErr.Message
	}
	apierrors.WriteHTTPError(w, apiErr)
	s.finalizeAudit(r, auditStatus, apiErr.Code)
}
