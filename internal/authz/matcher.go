package authz

import (
	"context"
	"log/slog"
	"strings"
)

// Deny reasons for the two ways a candidate list can be exhausted. An empty
// list never had a grant to try; a non-empty list had grants whose
// constraints all failed. Callers and monitoring treat these differently
// from infrastructure errors.
const (
	ReasonNoAuthorization   = "no valid authorization found"
	ReasonConstraintsFailed = "no authorization with valid constraints found"
)

// Matcher selects the first authorization from a candidate list that both
// grants the requested action/resource and passes its merged constraints.
//
// Candidates are expected pre-filtered to approved, unexpired records; that
// is the repository's contract, and the matcher does not re-validate it.
type Matcher struct {
	evaluator *Evaluator
	clock     Clock
	logger    *slog.Logger
}

// NewMatcher creates a Matcher. A nil clock defaults to the system clock and
// a nil logger to slog.Default().
func NewMatcher(evaluator *Evaluator, clock Clock, logger *slog.Logger) *Matcher {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{evaluator: evaluator, clock: clock, logger: logger}
}

// FindAuthorization tries each candidate in input order. A constraint failure
// on one candidate moves on to the next rather than denying outright: a
// requester may hold several independently granted authorizations, and a
// denial from a time-restricted one must not mask a grant available from an
// unrestricted one.
//
// The partial context ec may be nil; unset hour and day default to wall-clock
// now. Region stays unknown unless supplied.
func (m *Matcher) FindAuthorization(ctx context.Context, candidates []Authorization, action, resource string, ec *EvaluationContext) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{Authorized: false, Reason: ReasonNoAuthorization}
	}

	evalCtx := m.fillContext(ec, action)

	for i := range candidates {
		cand := &candidates[i]
		perm := matchPermission(cand.Permissions, action, resource)
		if perm == nil {
			continue
		}

		merged := MergeConstraints(cand.Constraints, perm.Constraints)
		evalCtx.AuthorizationID = cand.ID

		decision := m.evaluator.Evaluate(ctx, merged, &evalCtx)
		if !decision.Granted {
			m.logger.Debug("candidate denied, trying next",
				"authorization_id", cand.ID,
				"action", action,
				"reason", decision.Reason,
			)
			continue
		}

		res := MatchResult{
			Authorized:         true,
			AuthorizationID:    cand.ID,
			ConstraintsApplied: decision.ConstraintsApplied,
			ValidUntil:         cand.ValidUntil,
		}
		if decision.RateLimitRemaining >= 0 {
			remaining := decision.RateLimitRemaining
			res.RateLimitRemaining = &remaining
		}
		return res
	}

	return MatchResult{Authorized: false, Reason: ReasonConstraintsFailed}
}

// fillContext copies the caller's partial context and defaults unset hour and
// day from the clock.
func (m *Matcher) fillContext(ec *EvaluationContext, action string) EvaluationContext {
	filled := EvaluationContext{Hour: -1, Action: action}
	if ec != nil {
		filled = *ec
		filled.Action = action
	}
	if filled.Hour < 0 || filled.Day == "" {
		now := m.clock.Now()
		if filled.Hour < 0 {
			filled.Hour = now.Hour()
		}
		if filled.Day == "" {
			filled.Day = weekdayName(now)
		}
	}
	return filled
}

// matchPermission returns the first permission granting the requested action
// and resource, or nil.
func matchPermission(perms []Permission, action, resource string) *Permission {
	for i := range perms {
		if actionMatches(perms[i].Action, action) && resourceMatches(perms[i].Resource, resource) {
			return &perms[i]
		}
	}
	return nil
}

// actionMatches tests a permission's action pattern against the requested
// action: exact match, the full wildcard "*", or a "prefix.*" pattern that
// covers any sub-action under the prefix.
func actionMatches(pattern, action string) bool {
	if pattern == action || pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(action, prefix)
	}
	return false
}

// resourceMatches tests a permission's resource restriction. A permission
// that declares no resource applies to everything. A declared resource must
// be "*" or equal the requested one — including when no resource was
// requested at all, which a restricted permission does not cover.
func resourceMatches(declared, requested string) bool {
	if declared == "" {
		return true
	}
	if declared == "*" {
		return true
	}
	return declared == requested
}
