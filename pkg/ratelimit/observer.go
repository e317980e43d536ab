package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit observation.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wanikani_rate_limit_remaining",
		Help: "Requests remaining in the current WaniKani rate limit window",
	})

	rateLimitLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wanikani_rate_limit_limit",
		Help: "Requests allowed per WaniKani rate limit window",
	})

	rateLimitLowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wanikani_rate_limit_low_total",
		Help: "Responses that reported a remaining budget below the low watermark",
	})
)

// Observer records the rate limit state of each response it sees.
type Observer struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	last *State
}

// NewObserver creates a new rate limit observer.
func NewObserver(logger zerolog.Logger) *Observer {
	return &Observer{logger: logger}
}

// Observe reads the rate limit headers of a response. Responses without
// rate limit headers are ignored.
func (o *Observer) Observe(h http.Header) {
	state, ok := ParseHeaders(h, time.Now())
	if !ok {
		return
	}

	o.mu.Lock()
	o.last = state
	o.mu.Unlock()

	rateLimitRemaining.Set(float64(state.Remaining))
	if state.Limit > 0 {
		rateLimitLimit.Set(float64(state.Limit))
	}

	if state.IsLow() {
		rateLimitLowTotal.Inc()
		o.logger.Warn().
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Dur("reset_in", state.TimeUntilReset()).
			Msg("Rate limit budget low")
		return
	}

	o.logger.Debug().
		Int("remaining", state.Remaining).
		Int("limit", state.Limit).
		Msg("Rate limit state updated")
}

// Last returns a copy of the most recently observed state, or nil.
func (o *Observer) Last() *State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	s := *o.last
	return &s
}
