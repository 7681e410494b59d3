package backoff

import (
	"errors"
	"testing"
	"time"
)

func TestDelay_DefaultSchedule(t *testing.T) {
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		5000 * time.Millisecond,
		10000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}

	for attempt, w := range want {
		if got := Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestDelay_NegativeAttempt(t *testing.T) {
	if got := Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %v, want 1s", got)
	}
}

func TestDelay_LargeAttemptCapped(t *testing.T) {
	if got := Delay(1 << 20); got != 30*time.Second {
		t.Errorf("Delay(1<<20) = %v, want 30s", got)
	}
}

func TestZeroPolicy(t *testing.T) {
	var p Policy
	if got := p.Delay(2); got != 5*time.Second {
		t.Errorf("zero Policy Delay(2) = %v, want 5s", got)
	}
	if p.Max() != 30*time.Second {
		t.Errorf("zero Policy Max() = %v, want 30s", p.Max())
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		schedule []time.Duration
		wantErr  bool
	}{
		{name: "empty", schedule: nil, wantErr: true},
		{name: "zero step", schedule: []time.Duration{0, time.Second}, wantErr: true},
		{name: "decreasing", schedule: []time.Duration{2 * time.Second, time.Second}, wantErr: true},
		{name: "single", schedule: []time.Duration{time.Second}},
		{name: "flat", schedule: []time.Duration{time.Second, time.Second, 3 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := New(nil); !errors.Is(err, ErrEmptySchedule) {
		t.Errorf("New(nil) error = %v, want ErrEmptySchedule", err)
	}
}

func TestNew_CopiesSchedule(t *testing.T) {
	s := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	p, err := New(s)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s[0] = time.Hour

	if got := p.Delay(0); got != 10*time.Millisecond {
		t.Errorf("Delay(0) = %v after caller mutation, want 10ms", got)
	}

	out := p.Schedule()
	out[1] = time.Hour
	if got := p.Delay(1); got != 20*time.Millisecond {
		t.Errorf("Delay(1) = %v after Schedule() mutation, want 20ms", got)
	}
}

func TestWithJitter_Monotonic(t *testing.T) {
	p, err := Default().WithJitter(1)
	if err != nil {
		t.Fatalf("WithJitter failed: %v", err)
	}
	// Worst case: always draw the maximum.
	p.rand = func() float64 { return 0.999 }

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Errorf("Delay(%d) = %v, less than previous %v", attempt, d, prev)
		}
		if d > p.Max() {
			t.Errorf("Delay(%d) = %v, exceeds max %v", attempt, d, p.Max())
		}
		prev = d
	}
}

func TestWithJitter_Bounds(t *testing.T) {
	p, err := Default().WithJitter(0.5)
	if err != nil {
		t.Fatalf("WithJitter failed: %v", err)
	}
	p.rand = func() float64 { return 0.5 }

	// 1s + 0.5*0.5*1s
	if got := p.Delay(0); got != 1250*time.Millisecond {
		t.Errorf("Delay(0) = %v, want 1.25s", got)
	}
	// Capped entries are never jittered.
	if got := p.Delay(4); got != 30*time.Second {
		t.Errorf("Delay(4) = %v, want 30s", got)
	}

	if _, err := Default().WithJitter(1.5); !errors.Is(err, ErrInvalidJitter) {
		t.Errorf("WithJitter(1.5) error = %v, want ErrInvalidJitter", err)
	}
}
