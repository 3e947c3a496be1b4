// Package authz implements the A2A authorization core: permission matching,
// constraint evaluation, and candidate selection across authorization grants.
package authz

import (
	"time"
)

// Authorization status values as stored and exchanged on the wire.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
	StatusRevoked  = "revoked"
)

// Constraint dimension names reported in Decision.ConstraintsApplied.
const (
	DimTimeWindow         = "time_window"
	DimAllowedDays        = "allowed_days"
	DimAllowedRegions     = "allowed_regions"
	DimRateLimitPerMinute = "rate_limit_per_minute"
	DimRateLimitPerDay    = "rate_limit_per_day"
)

// ConstraintSet narrows when a permission may be exercised.
// Every field is independently optional; a zero value means the dimension
// is unconstrained. Custom is carried for forward compatibility but never
// interpreted by the evaluator.
type ConstraintSet struct {
	TimeWindow         string         `json:"time_window,omitempty" yaml:"time_window,omitempty"`
	AllowedDays        []string       `json:"allowed_days,omitempty" yaml:"allowed_days,omitempty"`
	AllowedRegions     []string       `json:"allowed_regions,omitempty" yaml:"allowed_regions,omitempty"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute,omitempty" yaml:"rate_limit_per_minute,omitempty"`
	RateLimitPerDay    int            `json:"rate_limit_per_day,omitempty" yaml:"rate_limit_per_day,omitempty"`
	Custom             map[string]any `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// IsEmpty reports whether no evaluable dimension is configured.
func (c *ConstraintSet) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.TimeWindow == "" &&
		len(c.AllowedDays) == 0 &&
		len(c.AllowedRegions) == 0 &&
		c.RateLimitPerMinute == 0 &&
		c.RateLimitPerDay == 0
}

// MergeConstraints overlays permission-level constraints on authorization-level
// ones. Fields set in override shadow the same field in base; unset fields
// inherit. Both inputs are left unmodified. A nil result means neither side
// configured anything.
func MergeConstraints(base, override *ConstraintSet) *ConstraintSet {
	if base.IsEmpty() && override.IsEmpty() {
		return nil
	}
	merged := ConstraintSet{}
	if base != nil {
		merged = *base
	}
	if override != nil {
		if override.TimeWindow != "" {
			merged.TimeWindow = override.TimeWindow
		}
		if len(override.AllowedDays) > 0 {
			merged.AllowedDays = override.AllowedDays
		}
		if len(override.AllowedRegions) > 0 {
			merged.AllowedRegions = override.AllowedRegions
		}
		if override.RateLimitPerMinute > 0 {
			merged.RateLimitPerMinute = override.RateLimitPerMinute
		}
		if override.RateLimitPerDay > 0 {
			merged.RateLimitPerDay = override.RateLimitPerDay
		}
		if len(override.Custom) > 0 {
			merged.Custom = override.Custom
		}
	}
	return &merged
}

// Permission is a single granted capability within an authorization.
// Action is a dot-segmented name ("data.read"); "*" matches everything and a
// trailing ".*" matches any sub-action under the prefix. An empty Resource
// means the permission applies regardless of resource.
type Permission struct {
	Action      string         `json:"action"`
	Resource    string         `json:"resource,omitempty"`
	Constraints *ConstraintSet `json:"constraints,omitempty"`
}

// Authorization is an approved grant of permissions from a grantor credential
// to a requester credential. Permissions and constraints are frozen once the
// status becomes approved; afterwards only status transitions mutate the record.
type Authorization struct {
	ID                    string         `json:"id"`
	RequesterCredentialID string         `json:"requester_credential_id"`
	GrantorCredentialID   string         `json:"grantor_credential_id"`
	Permissions           []Permission   `json:"permissions"`
	Constraints           *ConstraintSet `json:"constraints,omitempty"`
	Scope                 string         `json:"scope,omitempty"`
	Status                string         `json:"status"`
	Message               string         `json:"message,omitempty"`
	ValidUntil            *time.Time     `json:"valid_until,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// EvaluationContext carries the request-time attributes constraints are
// checked against. Hour is -1 and Day/Region are empty when unknown; an
// unknown attribute skips the corresponding dimension rather than denying.
// The identifier fields are used only to partition rate-limit counters.
type EvaluationContext struct {
	Hour            int    // 0-23, -1 when unknown
	Day             string // full weekday name, any case
	Region          string
	AuthorizationID string
	Action          string
}

// Decision is the evaluator's verdict for one merged constraint set.
type Decision struct {
	Granted            bool
	Reason             string
	ConstraintsApplied []string
	// RateLimitRemaining is the minimum remaining quota across the rate-limit
	// windows that were checked, or -1 when no rate-limit dimension ran.
	RateLimitRemaining int
}

// MatchResult is the outcome of matching a request against the full candidate
// list. It maps directly to the /api/a2a/authorizations/check response body.
type MatchResult struct {
	Authorized         bool       `json:"authorized"`
	AuthorizationID    string     `json:"authorization_id,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	ConstraintsApplied []string   `json:"constraints_applied,omitempty"`
	ValidUntil         *time.Time `json:"valid_until,omitempty"`
	RateLimitRemaining *int       `json:"rate_limit_remaining,omitempty"`
}
