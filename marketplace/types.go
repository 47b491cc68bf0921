/*
Package marketplace provides the core cash-exchange engine.

PURPOSE:
  This package contains the domain types and algorithms for a
  peer-to-peer cash-exchange marketplace. Users post requests to swap
  physical cash for digital funds (or the reverse); the engine pairs
  compatible opposite-type requests and drives each request through
  its status lifecycle.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount:   A positive money value (decimal, paise on the wire)
  - Request:  A user's posted intent to exchange cash
  - RequestType:   NEED_CASH vs HAVE_CASH
  - RequestStatus: OPEN -> MATCHED -> COMPLETED / CANCELLED

DESIGN PRINCIPLES:
  1. Immutability: type, amount, location never change after creation
  2. Precision: decimal.Decimal internally, integer paise on the wire
  3. Type Safety: strong typing for IDs prevents mixing user/request IDs
  4. History: requests are never deleted, only transitioned

SEE ALSO:
  - lifecycle.go: status transition rules
  - matcher.go: candidate ranking and match proposal
  - store.go: persistence interface
*/
package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money value (rupees internally, paise on the wire)
// =============================================================================

// Amount is a currency value. Internally a decimal in major units;
// serialized as an integer count of the smallest subunit (paise) to
// avoid floating-point drift on the wire.
type Amount struct {
	Value decimal.Decimal
}

var subunitFactor = decimal.NewFromInt(100)

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

// NewAmountFromSubunits builds an Amount from an integer paise count.
func NewAmountFromSubunits(paise int64) Amount {
	return Amount{Value: decimal.NewFromInt(paise).Div(subunitFactor)}
}

// Subunits returns the amount as integer paise (the wire representation).
func (a Amount) Subunits() int64 {
	return a.Value.Mul(subunitFactor).Round(0).IntPart()
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Abs() Amount               { return Amount{Value: a.Value.Abs()} }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type UserID string

// NewRequestID generates a fresh request identifier.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// =============================================================================
// REQUEST TYPE - Which side of the exchange the poster is on
// =============================================================================

type RequestType string

const (
	// NeedCash: the poster has digital funds and wants physical cash.
	NeedCash RequestType = "NEED_CASH"
	// HaveCash: the poster has physical cash and wants digital funds.
	HaveCash RequestType = "HAVE_CASH"
)

// Opposite returns the counter-side type. Matching only ever pairs a
// request with one of the opposite type.
func (t RequestType) Opposite() RequestType {
	if t == NeedCash {
		return HaveCash
	}
	return NeedCash
}

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == NeedCash || t == HaveCash
}

// =============================================================================
// REQUEST STATUS - Lifecycle states
// =============================================================================

type RequestStatus string

const (
	StatusOpen      RequestStatus = "OPEN"
	StatusMatched   RequestStatus = "MATCHED"
	StatusCompleted RequestStatus = "COMPLETED"
	StatusCancelled RequestStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusMatched, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// =============================================================================
// REQUEST - A posted intent to exchange cash
// =============================================================================

// Request is a user's posted intent to exchange physical cash for
// digital funds or vice versa. Type, amount and location are fixed at
// creation; only Status and MatchedWith change afterwards, and only
// through the Lifecycle engine.
//
// Invariant: MatchedWith is non-nil exactly when Status is MATCHED or
// COMPLETED, and the pairing is mutual (if A points at B, B points at A).
type Request struct {
	ID       RequestID
	UserID   UserID
	Type     RequestType
	Amount   Amount
	Location string

	Status      RequestStatus
	MatchedWith *RequestID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRequest builds an OPEN request with a generated ID. Input
// validation (positive amount, known type) belongs to the API layer;
// this constructor only assembles the record.
func NewRequest(userID UserID, reqType RequestType, amount Amount, location string, now time.Time) Request {
	return Request{
		ID:        NewRequestID(),
		UserID:    userID,
		Type:      reqType,
		Amount:    amount,
		Location:  location,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
