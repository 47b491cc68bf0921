/*
lifecycle.go - Status state machine for exchange requests

PURPOSE:
  Enforces the legal status transitions for requests and keeps matched
  pairs consistent. This is the ONLY component that calls
  CompareAndUpdateStatus.

STATE MACHINE:
  ┌──────┐  propose_match   ┌─────────┐  complete   ┌───────────┐
  │ OPEN │ ───────────────▶ │ MATCHED │ ──────────▶ │ COMPLETED │
  └──────┘                  └─────────┘             └───────────┘
      │                          │
      │ cancel                   │ cancel (partner unwinds to OPEN)
      ▼                          ▼
  ┌───────────┐             ┌───────────┐
  │ CANCELLED │             │ CANCELLED │
  └───────────┘             └───────────┘

PAIR DISCIPLINE:
  Pair transitions (match, complete, cancel-while-matched) need two
  sequential conditional updates. If the second update fails, the first
  is reverted before the error is surfaced. This is the sole
  cross-request ordering guarantee: a request is never left MATCHED
  while its would-be partner failed to commit.

ERROR BEHAVIOR:
  Calls on a request in an illegal source state fail with
  InvalidTransitionError (current vs requested state). These are caller
  errors and are never retried. ErrConflict means a concurrent caller
  won a race; the Matcher handles that by moving to the next candidate.

SEE ALSO:
  - matcher.go: selects which pairs to propose
  - store.go: the conditional-update contract
*/
package marketplace

import (
	"context"
	"fmt"
)

// Lifecycle enforces status transitions for requests.
type Lifecycle struct {
	Store RequestStore
}

func NewLifecycle(store RequestStore) *Lifecycle {
	return &Lifecycle{Store: store}
}

// =============================================================================
// PROPOSE MATCH - OPEN + OPEN -> MATCHED pair
// =============================================================================

// ProposeMatch pairs two OPEN requests of opposite type from different
// users. Both become MATCHED with mutual MatchedWith references.
//
// The two conditional updates run in sequence; if the second fails the
// first is rolled back to OPEN. Returns ErrConflict when either update
// loses a race.
func (l *Lifecycle) ProposeMatch(ctx context.Context, a, b *Request) error {
	if a.ID == b.ID {
		return &ValidationError{Field: "requestId", Message: "cannot match a request with itself"}
	}
	if a.Type == b.Type {
		return &ValidationError{Field: "type", Message: "matching requires opposite request types"}
	}
	if a.UserID == b.UserID {
		return &ValidationError{Field: "userId", Message: "cannot match two requests from the same user"}
	}
	if a.Status != StatusOpen {
		return &InvalidTransitionError{RequestID: a.ID, From: a.Status, To: StatusMatched}
	}
	if b.Status != StatusOpen {
		return &InvalidTransitionError{RequestID: b.ID, From: b.Status, To: StatusMatched}
	}

	// Claim A first. A conflict here means someone else already moved it.
	if err := l.Store.CompareAndUpdateStatus(ctx, a.ID, StatusOpen, StatusMatched, &b.ID); err != nil {
		return err
	}

	// Then claim B. On failure, revert A so it isn't left MATCHED
	// pointing at a partner that never committed.
	if err := l.Store.CompareAndUpdateStatus(ctx, b.ID, StatusOpen, StatusMatched, &a.ID); err != nil {
		if rbErr := l.Store.CompareAndUpdateStatus(ctx, a.ID, StatusMatched, StatusOpen, nil); rbErr != nil {
			return fmt.Errorf("match rollback failed for %s: %w (original: %w)", a.ID, rbErr, err)
		}
		return err
	}
	return nil
}

// =============================================================================
// COMPLETE - MATCHED pair -> COMPLETED pair
// =============================================================================

// Complete finishes a matched exchange: the request and its matched
// counterpart both transition to COMPLETED, keeping their mutual
// references. Legal only from MATCHED.
func (l *Lifecycle) Complete(ctx context.Context, id RequestID) (*Request, error) {
	req, err := l.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusMatched {
		return nil, &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: StatusCompleted}
	}
	if req.MatchedWith == nil {
		// Should be unreachable given the matchedWith invariant.
		return nil, fmt.Errorf("request %s is MATCHED without a partner", req.ID)
	}

	partner, err := l.Store.Get(ctx, *req.MatchedWith)
	if err != nil {
		return nil, err
	}

	if err := l.Store.CompareAndUpdateStatus(ctx, req.ID, StatusMatched, StatusCompleted, req.MatchedWith); err != nil {
		return nil, err
	}
	if err := l.Store.CompareAndUpdateStatus(ctx, partner.ID, StatusMatched, StatusCompleted, partner.MatchedWith); err != nil {
		if rbErr := l.Store.CompareAndUpdateStatus(ctx, req.ID, StatusCompleted, StatusMatched, req.MatchedWith); rbErr != nil {
			return nil, fmt.Errorf("complete rollback failed for %s: %w (original: %w)", req.ID, rbErr, err)
		}
		return nil, err
	}

	return l.Store.Get(ctx, id)
}

// =============================================================================
// CANCEL - OPEN or MATCHED -> CANCELLED
// =============================================================================

// Cancel withdraws a request. Legal from OPEN or MATCHED; when
// MATCHED, the counterpart is unwound back to OPEN (clearing its
// MatchedWith) before this request is cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, id RequestID) (*Request, error) {
	req, err := l.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case StatusOpen:
		if err := l.Store.CompareAndUpdateStatus(ctx, req.ID, StatusOpen, StatusCancelled, nil); err != nil {
			return nil, err
		}

	case StatusMatched:
		if req.MatchedWith == nil {
			return nil, fmt.Errorf("request %s is MATCHED without a partner", req.ID)
		}
		// Unwind the partner first so it can be re-matched.
		if err := l.Store.CompareAndUpdateStatus(ctx, *req.MatchedWith, StatusMatched, StatusOpen, nil); err != nil {
			return nil, err
		}
		if err := l.Store.CompareAndUpdateStatus(ctx, req.ID, StatusMatched, StatusCancelled, nil); err != nil {
			// Re-pair the partner so the mutual invariant holds again.
			if rbErr := l.Store.CompareAndUpdateStatus(ctx, *req.MatchedWith, StatusOpen, StatusMatched, &req.ID); rbErr != nil {
				return nil, fmt.Errorf("cancel rollback failed for %s: %w (original: %w)", *req.MatchedWith, rbErr, err)
			}
			return nil, err
		}

	default:
		return nil, &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: StatusCancelled}
	}

	return l.Store.Get(ctx, id)
}
