package authz

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentid-labs/a2a-authd/internal/ratelimit"
)

// timeWindowPattern is the accepted "HH:MM-HH:MM" constraint format. Minutes
// are accepted but only the hour fields participate in the comparison; a
// window of "09:30-17:00" behaves as "09:00-17:00". Hour-level granularity is
// the documented contract for this constraint.
var timeWindowPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})$`)

// Evaluator decides whether a merged constraint set permits a request.
// Dimensions run in a fixed order — time window, allowed days, allowed
// regions, per-minute rate limit, per-day rate limit — and the first failure
// determines the reported reason.
//
// Evaluation is not idempotent when rate limits are configured: a fully
// granted check consumes quota from the shared counters.
type Evaluator struct {
	limiter    *ratelimit.PermissionLimiter
	failClosed bool
	logger     *slog.Logger
}

// NewEvaluator creates an Evaluator. failClosed selects the malformed-data
// policy: when false (the default deployment posture), constraints that
// cannot be parsed are skipped with a warning rather than denying; when true,
// they deny. A nil logger is replaced with slog.Default().
func NewEvaluator(limiter *ratelimit.PermissionLimiter, failClosed bool, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{limiter: limiter, failClosed: failClosed, logger: logger}
}

// Evaluate checks every configured dimension of cs against ec. A nil or empty
// constraint set grants immediately. Each dimension that is reached is
// recorded in ConstraintsApplied; evaluation stops at the first failure.
func (e *Evaluator) Evaluate(ctx context.Context, cs *ConstraintSet, ec *EvaluationContext) Decision {
	d := Decision{Granted: true, ConstraintsApplied: []string{}, RateLimitRemaining: -1}
	if cs.IsEmpty() {
		return d
	}

	if cs.TimeWindow != "" {
		d.ConstraintsApplied = append(d.ConstraintsApplied, DimTimeWindow)
		if ok, reason := e.checkTimeWindow(cs.TimeWindow, ec.Hour); !ok {
			d.Granted = false
			d.Reason = reason
			return d
		}
	}

	if len(cs.AllowedDays) > 0 {
		d.ConstraintsApplied = append(d.ConstraintsApplied, DimAllowedDays)
		if ok, reason := checkAllowedDays(cs.AllowedDays, ec.Day); !ok {
			d.Granted = false
			d.Reason = reason
			return d
		}
	}

	if len(cs.AllowedRegions) > 0 {
		d.ConstraintsApplied = append(d.ConstraintsApplied, DimAllowedRegions)
		if ok, reason := checkAllowedRegions(cs.AllowedRegions, ec.Region); !ok {
			d.Granted = false
			d.Reason = reason
			return d
		}
	}

	if cs.RateLimitPerMinute > 0 || cs.RateLimitPerDay > 0 {
		return e.checkRateLimits(ctx, cs, ec, d)
	}
	return d
}

// checkTimeWindow compares the current hour against the configured window.
// An unknown hour skips the check; an unparseable window follows the
// fail-open/fail-closed policy.
func (e *Evaluator) checkTimeWindow(windowStr string, hour int) (bool, string) {
	if hour < 0 {
		return true, ""
	}

	start, end, ok := parseTimeWindow(windowStr)
	if !ok {
		if e.failClosed {
			return false, fmt.Sprintf("malformed time window %q", windowStr)
		}
		e.logger.Warn("unparseable time_window constraint, skipping", "time_window", windowStr)
		return true, ""
	}

	var inWindow bool
	if start <= end {
		inWindow = hour >= start && hour < end
	} else {
		// Window wraps past midnight, e.g. 22:00-06:00.
		inWindow = hour >= start || hour < end
	}
	if !inWindow {
		return false, fmt.Sprintf("outside allowed time window %s (current hour %d)", windowStr, hour)
	}
	return true, ""
}

// parseTimeWindow extracts the start and end hours from "HH:MM-HH:MM".
func parseTimeWindow(s string) (start, end int, ok bool) {
	m := timeWindowPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	start, _ = strconv.Atoi(m[1])
	end, _ = strconv.Atoi(m[3])
	if start > 23 || end > 23 {
		return 0, 0, false
	}
	return start, end, true
}

// checkAllowedDays is a case-insensitive membership test of the full weekday
// name. An unknown day skips the check.
func checkAllowedDays(allowed []string, day string) (bool, string) {
	if day == "" {
		return true, ""
	}
	for _, a := range allowed {
		if strings.EqualFold(a, day) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("day %q is not an allowed day", strings.ToLower(day))
}

// checkAllowedRegions is a case-insensitive membership test of the region
// code. A request with no region data passes: denial cannot be proven
// without it.
func checkAllowedRegions(allowed []string, region string) (bool, string) {
	if region == "" {
		return true, ""
	}
	for _, a := range allowed {
		if strings.EqualFold(a, region) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("region %q is not an allowed region", region)
}

// checkRateLimits runs the per-minute and per-day dimensions through the
// shared limiter. Both windows are evaluated before either counter advances,
// and the dimension ordering in ConstraintsApplied mirrors evaluation order:
// a per-minute denial stops before the per-day dimension is reached.
func (e *Evaluator) checkRateLimits(ctx context.Context, cs *ConstraintSet, ec *EvaluationContext, d Decision) Decision {
	scope := ratelimit.ScopeKey(ec.AuthorizationID, ec.Action)
	res, err := e.limiter.Check(ctx, scope, ratelimit.Limits{
		PerMinute: cs.RateLimitPerMinute,
		PerDay:    cs.RateLimitPerDay,
	})
	if err != nil {
		// Counter backend failure: fail open so a limiter outage never
		// blocks the authorization decision.
		e.logger.Warn("rate limit check failed, failing open", "scope", scope, "error", err)
		if cs.RateLimitPerMinute > 0 {
			d.ConstraintsApplied = append(d.ConstraintsApplied, DimRateLimitPerMinute)
		}
		if cs.RateLimitPerDay > 0 {
			d.ConstraintsApplied = append(d.ConstraintsApplied, DimRateLimitPerDay)
		}
		return d
	}

	if cs.RateLimitPerMinute > 0 {
		d.ConstraintsApplied = append(d.ConstraintsApplied, DimRateLimitPerMinute)
		if res.FailedWindow == ratelimit.WindowMinute {
			d.Granted = false
			d.Reason = res.Reason
			d.RateLimitRemaining = res.Remaining()
			return d
		}
	}
	if cs.RateLimitPerDay > 0 {
		d.ConstraintsApplied = append(d.ConstraintsApplied, DimRateLimitPerDay)
		if res.FailedWindow == ratelimit.WindowDay {
			d.Granted = false
			d.Reason = res.Reason
			d.RateLimitRemaining = res.Remaining()
			return d
		}
	}
	d.RateLimitRemaining = res.Remaining()
	return d
}
