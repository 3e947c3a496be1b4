package audit

import "math/rand"

// SamplingConfig controls audit log sampling rates.
type SamplingConfig struct {
	Rate      float64 // normal request sampling rate (0.0-1.0)
	ErrorRate float64 // denied/error request sampling rate (0.0-1.0)
}

// ShouldLog determines if a request should be logged based on its status.
// Denied and error requests use ErrorRate, normal requests use Rate, so a
// deployment can sample routine grants down without losing denials.
func (s SamplingConfig) ShouldLog(status string) bool {
	switch status {
	case "denied", "blocked", "error":
		return s.ErrorRate >= 1.0 || rand.Float64() < s.ErrorRate
	default:
		return s.Rate >= 1.0 || rand.Float64() < s.Rate
	}
}
