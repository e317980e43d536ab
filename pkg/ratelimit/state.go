// Package ratelimit reads the WaniKani rate limit headers attached to every
// API response (RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset).
//
// The information is observational: it feeds gauges and log lines so an
// operator can see how close a dictionary build came to the per-minute
// request budget. Nothing in this package delays or blocks a request.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Response headers sent by the WaniKani API.
const (
	HeaderLimit     = "RateLimit-Limit"
	HeaderRemaining = "RateLimit-Remaining"
	HeaderReset     = "RateLimit-Reset"
)

// LowWatermark is the number of remaining requests below which the
// budget is reported as low.
const LowWatermark = 10

// State is the rate limit window reported by the most recent response.
type State struct {
	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (RateLimit-Reset is a unix timestamp).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the headers were read.
	LastUpdate time.Time `json:"last_update"`
}

// ParseHeaders extracts the rate limit state from response headers.
// It returns false when the remaining count is missing or not a number,
// which is the case for responses that did not come from the API itself.
func ParseHeaders(h http.Header, now time.Time) (*State, bool) {
	remaining, err := strconv.Atoi(h.Get(HeaderRemaining))
	if err != nil {
		return nil, false
	}

	state := &State{
		Remaining:  remaining,
		LastUpdate: now,
	}

	if limit, err := strconv.Atoi(h.Get(HeaderLimit)); err == nil {
		state.Limit = limit
	}
	if reset, err := strconv.ParseInt(h.Get(HeaderReset), 10, 64); err == nil {
		state.ResetAt = time.Unix(reset, 0)
	}

	return state, true
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsLow reports whether the remaining budget fell under LowWatermark.
func (s *State) IsLow() bool {
	return s.Remaining < LowWatermark
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time is unknown or has already passed.
func (s *State) TimeUntilReset() time.Duration {
	if s.ResetAt.IsZero() {
		return 0
	}
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
