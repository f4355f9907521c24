package runner

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		validate func(*testing.T, Options)
	}{
		{
			name:  "defaults",
			input: Options{},
			validate: func(t *testing.T, o Options) {
				if o.VirtualUsers != 1 {
					t.Errorf("VirtualUsers = %d, want 1", o.VirtualUsers)
				}
				if len(o.Checks) != 2 {
					t.Errorf("Checks = %d, want default pair", len(o.Checks))
				}
				if o.Sleep == nil {
					t.Error("Sleep should not be nil")
				}
				if o.LimiterFactory == nil {
					t.Error("LimiterFactory should not be nil")
				}
			},
		},
		{
			name: "negative values corrected",
			input: Options{
				VirtualUsers:  -5,
				Duration:      -time.Second,
				Delay:         -time.Second,
				GracefulStop:  -time.Second,
				RatePerSecond: -1,
			},
			validate: func(t *testing.T, o Options) {
				if o.VirtualUsers != 1 {
					t.Errorf("VirtualUsers = %d, want 1", o.VirtualUsers)
				}
				if o.Duration != 0 || o.Delay != 0 || o.GracefulStop != 0 {
					t.Errorf("durations not clamped: %s %s %s", o.Duration, o.Delay, o.GracefulStop)
				}
				if o.RatePerSecond != 0 {
					t.Errorf("RatePerSecond = %d, want 0", o.RatePerSecond)
				}
			},
		},
		{
			name: "explicit empty checks preserved",
			input: Options{
				VirtualUsers: 5,
				Checks:       []Check{},
			},
			validate: func(t *testing.T, o Options) {
				if o.VirtualUsers != 5 {
					t.Errorf("VirtualUsers = %d, want 5", o.VirtualUsers)
				}
				if len(o.Checks) != 0 {
					t.Errorf("Checks = %d, want 0", len(o.Checks))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()
			tt.validate(t, opts)
		})
	}
}

func TestLimiterFactory(t *testing.T) {
	opts := Options{}
	opts.normalize()

	limiter := opts.LimiterFactory(0)
	if limiter.Limit() != rate.Inf {
		t.Errorf("Limit(0) = %v, want Inf", limiter.Limit())
	}

	rps := 100
	limiter = opts.LimiterFactory(rps)
	if limiter.Limit() != rate.Limit(rps) {
		t.Errorf("Limit(%d) = %v, want %v", rps, limiter.Limit(), rate.Limit(rps))
	}
	if limiter.Burst() != rps {
		t.Errorf("Burst(%d) = %d, want %d", rps, limiter.Burst(), rps)
	}
}

func TestNewPacerDisabledWithoutRate(t *testing.T) {
	opts := Options{}
	opts.normalize()
	if p := newPacer(opts); p != nil {
		t.Fatalf("expected nil pacer")
	}
	var p *pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("nil pacer should not block: %v", err)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("cancelled sleep blocked")
	}
	if err := sleepContext(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("zero sleep should report cancellation, got %v", err)
	}
}

func TestDefaultChecks(t *testing.T) {
	tests := []struct {
		name      string
		outcome   Outcome
		wantOK    bool
		wantLimit bool
	}{
		{"200", Outcome{StatusCode: http.StatusOK}, true, true},
		{"201", Outcome{StatusCode: http.StatusCreated}, false, true},
		{"429", Outcome{StatusCode: http.StatusTooManyRequests}, false, false},
		{"500", Outcome{StatusCode: http.StatusInternalServerError}, false, true},
		{"transport", Outcome{Err: errors.New("connection refused")}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateChecks(DefaultChecks(), tt.outcome)
			if got[CheckStatusIs200] != tt.wantOK {
				t.Errorf("%s = %v, want %v", CheckStatusIs200, got[CheckStatusIs200], tt.wantOK)
			}
			if got[CheckRateLimitNotExceeded] != tt.wantLimit {
				t.Errorf("%s = %v, want %v", CheckRateLimitNotExceeded, got[CheckRateLimitNotExceeded], tt.wantLimit)
			}
		})
	}
}

func TestEvaluateChecksNilAssertFails(t *testing.T) {
	got := evaluateChecks([]Check{{Name: "broken"}}, Outcome{StatusCode: 200})
	if got["broken"] {
		t.Fatalf("check without assertion must fail")
	}
}

func TestVUStateTransitions(t *testing.T) {
	legal := map[VUState][]VUState{
		StateIdle:       {StateRequesting, StateStopped},
		StateRequesting: {StateChecking, StateStopped},
		StateChecking:   {StateSleeping},
		StateSleeping:   {StateRequesting, StateStopped},
	}
	all := []VUState{StateIdle, StateRequesting, StateChecking, StateSleeping, StateStopped}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			if got := from.canTransition(to); got != want {
				t.Errorf("%s->%s = %v, want %v", from, to, got, want)
			}
		}
	}
	if VUState(42).String() != "unknown" {
		t.Errorf("unexpected name for invalid state")
	}
}

func TestVUFromContext(t *testing.T) {
	if _, ok := VUFromContext(context.Background()); ok {
		t.Fatalf("expected no VU in empty context")
	}
	vu, ok := VUFromContext(withVU(context.Background(), 3))
	if !ok || vu != 3 {
		t.Fatalf("VUFromContext = %d, %v", vu, ok)
	}
}

func TestIterationFromContext(t *testing.T) {
	if _, ok := IterationFromContext(context.Background()); ok {
		t.Fatalf("expected no iteration in empty context")
	}
	ctx := withIteration(withVU(context.Background(), 1), 7)
	iteration, ok := IterationFromContext(ctx)
	if !ok || iteration != 7 {
		t.Fatalf("IterationFromContext = %d, %v", iteration, ok)
	}
	if vu, _ := VUFromContext(ctx); vu != 1 {
		t.Fatalf("VUFromContext = %d, want 1", vu)
	}
}
