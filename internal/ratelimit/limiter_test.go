package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLimiter(limits Limits) (*Limiter, *time.Time) {
	l := New(limits, time.Minute, nil)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestCheckTripsBurstWindow(t *testing.T) {
	l, _ := newTestLimiter(Limits{Burst: 3, PerMinute: 10, PerHour: 100})

	for i := 0; i < 3; i++ {
		if d := l.Check("10.0.0.1"); !d.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}

	d := l.Check("10.0.0.1")
	if d.Allowed {
		t.Fatal("fourth request within 10s should be rejected")
	}
	if d.LimitType != LimitBurst {
		t.Fatalf("expected burst violation, got %s", d.LimitType)
	}
	if d.RetryAfter != 10*time.Second {
		t.Fatalf("retry_after should equal the burst horizon, got %v", d.RetryAfter)
	}
	if d.Limit != 3 || d.Remaining != 0 {
		t.Fatalf("rejection should carry the violated window quota: %+v", d)
	}
}

func TestCheckMinuteViolationNeverReportsBurst(t *testing.T) {
	l, clock := newTestLimiter(Limits{Burst: 5, PerMinute: 8, PerHour: 100})

	for i := 0; i < 8; i++ {
		if d := l.Check("id"); !d.Allowed {
			t.Fatalf("request %d should be admitted: %+v", i+1, d)
		}
		*clock = clock.Add(2 * time.Second)
	}

	d := l.Check("id")
	if d.Allowed {
		t.Fatal("ninth request inside the minute should be rejected")
	}
	if d.LimitType != LimitMinute {
		t.Fatalf("expected minute violation, got %s", d.LimitType)
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("retry_after should equal the minute horizon, got %v", d.RetryAfter)
	}
}

func TestCheckHourViolation(t *testing.T) {
	l, clock := newTestLimiter(Limits{Burst: 100, PerMinute: 100, PerHour: 4})

	for i := 0; i < 4; i++ {
		if d := l.Check("id"); !d.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
		*clock = clock.Add(2 * time.Minute)
	}

	d := l.Check("id")
	if d.Allowed || d.LimitType != LimitHour {
		t.Fatalf("expected hour violation, got %+v", d)
	}
}

func TestCheckWindowsDrainIndependently(t *testing.T) {
	l, clock := newTestLimiter(Limits{Burst: 2, PerMinute: 10, PerHour: 100})

	l.Check("id")
	l.Check("id")
	if d := l.Check("id"); d.Allowed {
		t.Fatal("burst should be exhausted")
	}

	*clock = clock.Add(11 * time.Second)
	d := l.Check("id")
	if !d.Allowed {
		t.Fatalf("burst window should have drained: %+v", d)
	}
	if d.Remaining != 10-3 {
		t.Fatalf("minute window should still count earlier requests, remaining=%d", d.Remaining)
	}
}

func TestCheckAdmittedQuotaHeadersComeFromMinuteWindow(t *testing.T) {
	l, clock := newTestLimiter(Limits{Burst: 5, PerMinute: 10, PerHour: 100})

	d := l.Check("id")
	if !d.Allowed || d.Limit != 10 || d.Remaining != 9 {
		t.Fatalf("unexpected quota on first request: %+v", d)
	}
	if want := clock.Add(time.Minute); !d.Reset.Equal(want) {
		t.Fatalf("reset should be oldest minute entry + horizon, got %v want %v", d.Reset, want)
	}
}

func TestCheckIdentitiesAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(Limits{Burst: 1, PerMinute: 10, PerHour: 100})

	if d := l.Check("a"); !d.Allowed {
		t.Fatal("first request for a should pass")
	}
	if d := l.Check("a"); d.Allowed {
		t.Fatal("second request for a should trip burst")
	}
	if d := l.Check("b"); !d.Allowed {
		t.Fatal("identity b must not inherit a's windows")
	}
}

func TestSweepDropsIdleIdentities(t *testing.T) {
	l, clock := newTestLimiter(Limits{Burst: 5, PerMinute: 10, PerHour: 100})

	l.Check("idle")
	l.Check("fresh")
	*clock = clock.Add(2 * time.Hour)
	l.Check("fresh")

	dropped := l.sweep()
	if dropped != 1 {
		t.Fatalf("expected exactly the idle identity dropped, got %d", dropped)
	}
	if l.Len() != 1 {
		t.Fatalf("expected one identity left, got %d", l.Len())
	}
}

func TestSweptIdentityStartsFresh(t *testing.T) {
	l, clock := newTestLimiter(Limits{Burst: 2, PerMinute: 10, PerHour: 100})

	l.Check("id")
	*clock = clock.Add(2 * time.Hour)
	if dropped := l.sweep(); dropped != 1 {
		t.Fatalf("expected sweep to drop the identity, got %d", dropped)
	}
	if d := l.Check("id"); !d.Allowed {
		t.Fatalf("identity should start over after sweep: %+v", d)
	}
}

func TestCheckConcurrentSameIdentityHonorsBurst(t *testing.T) {
	l := New(Limits{Burst: 10, PerMinute: 1000, PerHour: 10000}, time.Minute, nil)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.Check("shared"); d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 10 {
		t.Fatalf("expected exactly burst admissions under contention, got %d", got)
	}
}
