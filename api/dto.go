/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMAT:
  Amounts are integer paise (smallest currency subunit) so no client
  ever sees a floating-point rupee value. Timestamps are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/cashswap/exchange-engine/identity"
	"github.com/cashswap/exchange-engine/marketplace"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RequestDTO represents an exchange request in API responses.
type RequestDTO struct {
	RequestID   string  `json:"requestId"`
	UserID      string  `json:"userId"`
	Type        string  `json:"type"`
	Amount      int64   `json:"amount"` // paise
	Location    string  `json:"location"`
	Status      string  `json:"status"`
	MatchedWith *string `json:"matchedWith,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// CreateRequestRequest is the request body to post a new exchange request.
type CreateRequestRequest struct {
	UserID   string `json:"userId"`
	Type     string `json:"type"`
	Amount   int64  `json:"amount"` // paise
	Location string `json:"location"`
}

// MatchResponse reports both sides of a successful match.
type MatchResponse struct {
	Request RequestDTO `json:"request"`
	Partner RequestDTO `json:"partner"`
}

// UserDTO represents a user in API responses.
type UserDTO struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// RegisterUserRequest is the request body to register a user.
type RegisterUserRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateUserRequest is the request body to update a user's profile.
type UpdateUserRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// SendOTPRequest starts the demo login flow.
type SendOTPRequest struct {
	Phone string `json:"phone"`
}

// SendOTPResponse acknowledges the (demo) OTP delivery.
type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyOTPRequest completes the demo login flow.
type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// VerifyOTPResponse carries the login result. Token is an opaque demo
// string, not a real session credential.
type VerifyOTPResponse struct {
	UserID    *string `json:"userId"`
	Token     *string `json:"token"`
	IsNewUser bool    `json:"isNewUser"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRequestDTO(req marketplace.Request) RequestDTO {
	dto := RequestDTO{
		RequestID: string(req.ID),
		UserID:    string(req.UserID),
		Type:      string(req.Type),
		Amount:    req.Amount.Subunits(),
		Location:  req.Location,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: req.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if req.MatchedWith != nil {
		ref := string(*req.MatchedWith)
		dto.MatchedWith = &ref
	}
	return dto
}

func toRequestDTOs(reqs []marketplace.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	return dtos
}

func toUserDTO(user identity.User) UserDTO {
	return UserDTO{
		UserID:    string(user.ID),
		Name:      user.Name,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
