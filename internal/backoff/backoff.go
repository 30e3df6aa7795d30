// Package backoff models the invoice orchestrator's retry pacing as a
// sequence producing either the next wait duration or a signal that the
// retry budget is exhausted, per the Stop/Exponential design in spec §9.
package backoff

import (
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// Sequence produces the wait duration before the next retry attempt.
// ok is false once the backoff has terminated; callers MUST stop retrying.
type Sequence interface {
	Next() (d time.Duration, ok bool)
}

// Provider constructs a fresh Sequence for one invoice request's retry
// loop. A Provider is shared and safe for concurrent use; a Sequence is
// not (it is built and consumed by one goroutine).
type Provider interface {
	New() Sequence
}

// stopProvider never retries.
type stopProvider struct{}

// Stop is the Provider that performs no retry: the orchestrator's retry
// loop exits after the first error.
func Stop() Provider { return stopProvider{} }

func (stopProvider) New() Sequence { return stopSequence{} }

type stopSequence struct{}

func (stopSequence) Next() (time.Duration, bool) { return 0, false }

// ExponentialConfig parameterises the capped exponential backoff with
// jitter used for the Upstream/Internal retry path.
type ExponentialConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxElapsedTime      time.Duration
}

// DefaultExponentialConfig returns the gateway's default backoff
// parameters, the same values config.GatewayConfig's Backoff section
// defaults to. MaxInterval and MaxElapsedTime are shorter than
// cenkalti/backoff's own defaults.
func DefaultExponentialConfig() ExponentialConfig {
	return ExponentialConfig{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      2 * time.Minute,
	}
}

type exponentialProvider struct {
	cfg ExponentialConfig
}

// Exponential is the Provider backing the Upstream/Internal retry path:
// capped exponential backoff with jitter and a maximum elapsed budget,
// built on github.com/cenkalti/backoff/v4.
func Exponential(cfg ExponentialConfig) Provider {
	return exponentialProvider{cfg: cfg}
}

func (p exponentialProvider) New() Sequence {
	b := cenkalti.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.Multiplier = p.cfg.Multiplier
	b.RandomizationFactor = p.cfg.RandomizationFactor
	b.MaxElapsedTime = p.cfg.MaxElapsedTime
	b.Reset()
	return &exponentialSequence{b: b}
}

type exponentialSequence struct {
	b *cenkalti.ExponentialBackOff
}

func (s *exponentialSequence) Next() (time.Duration, bool) {
	d := s.b.NextBackOff()
	if d == cenkalti.Stop {
		return 0, false
	}
	return d, true
}
