/*
matcher.go - Candidate ranking and match proposal

PURPOSE:
  Finds compatible counter-requests for a request and claims the best
  one through the Lifecycle engine.

RANKING POLICY (deterministic, relied on by tests):
  1. Exact location match (case-insensitive) ranked first
  2. Amount closeness: ascending |candidate.amount - request.amount|
  3. Earlier CreatedAt first (oldest-first fairness)
  4. RequestID as the final tie-break so the order is a total order

RETRY BEHAVIOR:
  ProposeMatch walks the ranked candidates in order. Losing a race to
  another matcher (ErrConflict) just means moving on to the next
  candidate; only after every candidate has been tried does it give up
  with ErrNoMatch. InvalidTransition from a stale snapshot is treated
  the same way - the candidate is simply no longer available.

SEE ALSO:
  - lifecycle.go: ProposeMatch preconditions and pair discipline
*/
package marketplace

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Matcher pairs OPEN requests with compatible counter-requests.
type Matcher struct {
	Store     RequestStore
	Lifecycle *Lifecycle
}

func NewMatcher(store RequestStore, lifecycle *Lifecycle) *Matcher {
	return &Matcher{Store: store, Lifecycle: lifecycle}
}

// =============================================================================
// CANDIDATE RANKING
// =============================================================================

// FindCandidates returns OPEN requests of the opposite type, ranked by
// the matching policy. The ranking is a strict total order so repeated
// calls against the same data produce the same sequence.
func (m *Matcher) FindCandidates(ctx context.Context, req *Request) ([]Request, error) {
	candidates, err := m.Store.ListByType(ctx, req.Type.Opposite(), StatusOpen)
	if err != nil {
		return nil, err
	}

	wantLocation := strings.ToLower(strings.TrimSpace(req.Location))

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		aLoc := strings.ToLower(strings.TrimSpace(a.Location)) == wantLocation
		bLoc := strings.ToLower(strings.TrimSpace(b.Location)) == wantLocation
		if aLoc != bLoc {
			return aLoc
		}

		aDiff := a.Amount.Sub(req.Amount).Abs()
		bDiff := b.Amount.Sub(req.Amount).Abs()
		if !aDiff.Equal(bDiff) {
			return aDiff.LessThan(bDiff)
		}

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return candidates, nil
}

// =============================================================================
// MATCH PROPOSAL
// =============================================================================

// MatchResult reports the two sides of a successful match, re-read
// from the store after the transition.
type MatchResult struct {
	Request Request
	Partner Request
}

// ProposeMatch finds the best claimable candidate for the request with
// the given ID and matches the pair. Candidates that fail the
// lifecycle preconditions, or that another matcher claims first, are
// skipped; ErrNoMatch is returned once the ranked list is exhausted.
func (m *Matcher) ProposeMatch(ctx context.Context, id RequestID) (*MatchResult, error) {
	req, err := m.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusOpen {
		return nil, &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: StatusMatched}
	}

	candidates, err := m.FindCandidates(ctx, req)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidate := candidates[i]
		if candidate.UserID == req.UserID {
			continue
		}

		err := m.Lifecycle.ProposeMatch(ctx, req, &candidate)
		switch {
		case err == nil:
			matched, err := m.Store.Get(ctx, req.ID)
			if err != nil {
				return nil, err
			}
			partner, err := m.Store.Get(ctx, candidate.ID)
			if err != nil {
				return nil, err
			}
			return &MatchResult{Request: *matched, Partner: *partner}, nil

		case errors.Is(err, ErrConflict):
			// Lost a race. If OUR side was claimed by someone else the
			// request is no longer OPEN and there is nothing to do.
			fresh, getErr := m.Store.Get(ctx, req.ID)
			if getErr != nil {
				return nil, getErr
			}
			if fresh.Status != StatusOpen {
				return nil, ErrConflict
			}
			req = fresh
			continue

		case errors.Is(err, ErrInvalidTransition):
			// Stale snapshot: the candidate moved on since we listed it.
			continue

		default:
			return nil, err
		}
	}

	return nil, ErrNoMatch
}
