/*
handlers.go - HTTP API handlers for the cash-exchange marketplace

PURPOSE:
  Exposes the marketplace engine via REST API. Handles HTTP
  request/response, JSON serialization, input validation, and delegates
  to the domain logic. The Lifecycle engine never sees malformed data -
  every field is validated here first.

ENDPOINTS:
  Requests:
    POST   /api/requests               Create exchange request
    GET    /api/requests               List by type (+ status filter)
    GET    /api/requests/{id}          Get one request
    POST   /api/requests/{id}/match    Find and claim a counter-request
    POST   /api/requests/{id}/complete Complete a matched pair
    POST   /api/requests/{id}/cancel   Cancel (unwinds partner if matched)

  Users:
    POST   /api/users                  Register
    GET    /api/users/by-phone         Lookup by phone (login flow)
    GET    /api/users/{id}             Get profile
    PUT    /api/users/{id}             Update profile
    GET    /api/users/{id}/requests    Request history

  Auth (demo flow, original behavior):
    POST   /api/auth/send-otp          Pretend to send an OTP
    POST   /api/auth/verify-otp        Accept the fixed demo OTP

ERROR HANDLING:
  Domain errors map to HTTP statuses:
  - 400: validation failures
  - 404: unknown request/user
  - 409: invalid transition, lost race, no matchable candidate
  - 503: store unreachable
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cashswap/exchange-engine/identity"
	"github.com/cashswap/exchange-engine/marketplace"
)

// demoOTP is the only accepted one-time password. Real OTP delivery is
// deliberately out of scope; the login flow is a stand-in.
const demoOTP = "123456"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Requests  marketplace.RequestStore
	Lifecycle *marketplace.Lifecycle
	Matcher   *marketplace.Matcher
	Users     *identity.Registry

	now func() time.Time
}

// NewHandler wires the engine components over the given stores.
func NewHandler(requests marketplace.RequestStore, users identity.UserStore) *Handler {
	lifecycle := marketplace.NewLifecycle(requests)
	return &Handler{
		Requests:  requests,
		Lifecycle: lifecycle,
		Matcher:   marketplace.NewMatcher(requests, lifecycle),
		Users:     identity.NewRegistry(users),
		now:       time.Now,
	}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// CreateRequest posts a new OPEN exchange request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "userId is required")
		return
	}
	reqType := marketplace.RequestType(body.Type)
	if !reqType.Valid() {
		writeError(w, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("type must be %s or %s", marketplace.NeedCash, marketplace.HaveCash))
		return
	}
	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "amount must be positive")
		return
	}
	if body.Location == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "location is required")
		return
	}

	req := marketplace.NewRequest(
		marketplace.UserID(body.UserID),
		reqType,
		marketplace.NewAmountFromSubunits(body.Amount),
		body.Location,
		h.now(),
	)

	if err := h.Requests.Insert(r.Context(), req); err != nil {
		writeDomainError(w, err)
		return
	}

	requestsCreated.WithLabelValues(string(reqType)).Inc()
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// ListRequests returns requests of one type, optionally filtered by status.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	typeParam := r.URL.Query().Get("type")
	if typeParam == "" {
		typeParam = string(marketplace.NeedCash)
	}
	reqType := marketplace.RequestType(typeParam)
	if !reqType.Valid() {
		writeError(w, http.StatusBadRequest, "validation_error", "unknown request type "+typeParam)
		return
	}

	var statuses []marketplace.RequestStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := marketplace.RequestStatus(statusParam)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "validation_error", "unknown status "+statusParam)
			return
		}
		statuses = append(statuses, status)
	}

	requests, err := h.Requests.ListByType(r.Context(), reqType, statuses...)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := marketplace.RequestID(chi.URLParam(r, "id"))

	req, err := h.Requests.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// MatchRequest finds the best counter-request and claims the pair.
func (h *Handler) MatchRequest(w http.ResponseWriter, r *http.Request) {
	id := marketplace.RequestID(chi.URLParam(r, "id"))

	result, err := h.Matcher.ProposeMatch(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, marketplace.ErrNoMatch):
			matchAttempts.WithLabelValues(matchOutcomeNoMatch).Inc()
		case errors.Is(err, marketplace.ErrConflict):
			matchAttempts.WithLabelValues(matchOutcomeConflict).Inc()
		default:
			matchAttempts.WithLabelValues(matchOutcomeError).Inc()
		}
		writeDomainError(w, err)
		return
	}

	matchAttempts.WithLabelValues(matchOutcomeMatched).Inc()
	writeJSON(w, http.StatusOK, MatchResponse{
		Request: toRequestDTO(result.Request),
		Partner: toRequestDTO(result.Partner),
	})
}

// CompleteRequest finishes a matched exchange (both sides).
func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	id := marketplace.RequestID(chi.URLParam(r, "id"))

	req, err := h.Lifecycle.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// CancelRequest withdraws a request, unwinding its partner if matched.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := marketplace.RequestID(chi.URLParam(r, "id"))

	req, err := h.Lifecycle.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// RegisterUser creates a new user.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var body RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	user, err := h.Users.Register(r.Context(), body.Name, body.Phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*user))
}

// GetUser returns a user's profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := identity.UserID(chi.URLParam(r, "id"))

	user, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// UpdateUser updates a user's profile.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := identity.UserID(chi.URLParam(r, "id"))

	var body UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	user, err := h.Users.Update(r.Context(), id, body.Name, body.Phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// FindUserByPhone looks a user up by phone number (login flow).
func (h *Handler) FindUserByPhone(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")

	user, err := h.Users.FindByPhone(r.Context(), phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// ListUserRequests returns a user's request history.
func (h *Handler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	id := marketplace.UserID(chi.URLParam(r, "id"))

	requests, err := h.Requests.ListByUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// =============================================================================
// AUTH HANDLERS (demo flow)
// =============================================================================

// SendOTP pretends to deliver a one-time password.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var body SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if body.Phone == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "phone is required")
		return
	}

	log.Printf("OTP requested for %s (demo mode, OTP is %s)", body.Phone, demoOTP)
	writeJSON(w, http.StatusOK, SendOTPResponse{
		Success: true,
		Message: "OTP sent",
	})
}

// VerifyOTP checks the fixed demo OTP and resolves the phone number to
// an existing user, or signals that registration is needed.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if body.Phone == "" || body.OTP == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "phone and otp are required")
		return
	}
	if body.OTP != demoOTP {
		writeError(w, http.StatusUnauthorized, "invalid_otp", "Invalid OTP")
		return
	}

	user, err := h.Users.FindByPhone(r.Context(), body.Phone)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeJSON(w, http.StatusOK, VerifyOTPResponse{IsNewUser: true})
			return
		}
		writeDomainError(w, err)
		return
	}

	userID := string(user.ID)
	// Opaque demo token; real session security is out of scope.
	token := fmt.Sprintf("demo-token-%s-%d", user.ID, h.now().Unix())
	writeJSON(w, http.StatusOK, VerifyOTPResponse{
		UserID:    &userID,
		Token:     &token,
		IsNewUser: false,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeDomainError maps engine errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var identityValidation *identity.ValidationError

	switch {
	case errors.Is(err, marketplace.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &identityValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, marketplace.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, identity.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, marketplace.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, marketplace.ErrNoMatch):
		writeError(w, http.StatusConflict, "no_match", err.Error())
	case errors.Is(err, marketplace.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, identity.ErrPhoneTaken):
		writeError(w, http.StatusConflict, "phone_taken", err.Error())
	case errors.Is(err, marketplace.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "store unavailable")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}
