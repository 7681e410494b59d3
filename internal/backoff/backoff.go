package backoff

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Errors
var (
	ErrEmptySchedule   = errors.New("backoff schedule is empty")
	ErrInvalidJitter   = errors.New("jitter must be between 0 and 1")
	errNonPositiveStep = errors.New("backoff delays must be positive")
)

// DefaultSchedule is the reconnection schedule used when none is configured.
var DefaultSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

var defaultPolicy = Policy{schedule: DefaultSchedule}

// Delay returns the wait before retry attempt n using DefaultSchedule.
func Delay(attempt int) time.Duration {
	return defaultPolicy.Delay(attempt)
}

// Policy maps a retry attempt number to a wait duration.
// The zero value behaves like the default policy.
type Policy struct {
	schedule []time.Duration
	jitter   float64
	rand     func() float64
}

// Default returns a policy over DefaultSchedule.
func Default() Policy {
	return defaultPolicy
}

// New creates a policy from an ordered schedule. The schedule must be
// non-empty, positive and non-decreasing.
func New(schedule []time.Duration) (Policy, error) {
	if len(schedule) == 0 {
		return Policy{}, ErrEmptySchedule
	}
	for i, d := range schedule {
		if d <= 0 {
			return Policy{}, fmt.Errorf("step %d (%v): %w", i, d, errNonPositiveStep)
		}
		if i > 0 && d < schedule[i-1] {
			return Policy{}, fmt.Errorf("step %d (%v) is shorter than step %d (%v)", i, d, i-1, schedule[i-1])
		}
	}

	s := make([]time.Duration, len(schedule))
	copy(s, schedule)
	return Policy{schedule: s}, nil
}

// WithJitter returns a copy of the policy that adds up to fraction*delay
// of random extra wait. The result never exceeds the next schedule step
// or Max, so the sequence stays non-decreasing.
func (p Policy) WithJitter(fraction float64) (Policy, error) {
	if fraction < 0 || fraction > 1 {
		return Policy{}, ErrInvalidJitter
	}
	p.jitter = fraction
	if p.rand == nil {
		p.rand = rand.Float64
	}
	return p, nil
}

// Delay returns the wait before the given retry attempt. Negative
// attempts are treated as zero.
func (p Policy) Delay(attempt int) time.Duration {
	s := p.steps()
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(s)-1 {
		return s[len(s)-1]
	}

	d := s[attempt]
	if p.jitter <= 0 || p.rand == nil {
		return d
	}

	d += time.Duration(p.jitter * p.rand() * float64(d))
	if ceiling := s[attempt+1]; d > ceiling {
		d = ceiling
	}
	return d
}

// Max returns the largest delay the policy produces.
func (p Policy) Max() time.Duration {
	s := p.steps()
	return s[len(s)-1]
}

// Schedule returns a copy of the underlying schedule.
func (p Policy) Schedule() []time.Duration {
	s := p.steps()
	out := make([]time.Duration, len(s))
	copy(out, s)
	return out
}

func (p Policy) steps() []time.Duration {
	if len(p.schedule) == 0 {
		return DefaultSchedule
	}
	return p.schedule
}
