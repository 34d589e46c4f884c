package backend

import (
	"context"
	"errors"
	"log/slog"

	gobreaker "github.com/sony/gobreaker/v2"

	"studyrooms/cmd/internal/metrics"
)

// newBreaker builds the circuit breaker guarding every endpoint.
//   - up to 3 trial requests while half-open
//   - counts reset every BreakerInterval while closed
//   - opens when the failure ratio reaches BreakerFailRatio over at least
//     BreakerMinRequests requests
func newBreaker(cfg Config, log *slog.Logger) *gobreaker.CircuitBreaker[reply] {
	name := cfg.BreakerName
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailRatio
		},

		IsSuccessful: countsAsSuccess,

		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("backend.breaker.state",
				"name", name,
				"from", stateToString(from),
				"to", stateToString(to),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
}

// countsAsSuccess reports whether err leaves the breaker counts untouched as a
// failure. Caller cancellations and HTTP answers below 500 do not trip it.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var ue *UnavailableError
	if errors.As(err, &ue) && ue.HTTPStatus > 0 && ue.HTTPStatus < 500 {
		return true
	}
	return false
}

// BreakerState reports "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return stateToString(c.breaker.State())
}

// Available reports whether the breaker currently lets calls through.
func (c *Client) Available() bool {
	return c.breaker.State() != gobreaker.StateOpen
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
