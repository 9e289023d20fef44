package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bdevz/ultravox-twilio-integration-sub000/pkg/logger"
)

// Window horizons are fixed; only the per-window ceilings are configurable.
const (
	burstHorizon  = 10 * time.Second
	minuteHorizon = time.Minute
	hourHorizon   = time.Hour

	sweepBudget = 50 * time.Millisecond
)

// LimitType names the window an admission decision was made against.
type LimitType string

const (
	LimitBurst  LimitType = "burst"
	LimitMinute LimitType = "minute"
	LimitHour   LimitType = "hour"
)

// Limits carries the configured ceiling per window.
type Limits struct {
	Burst     int
	PerMinute int
	PerHour   int
}

// Decision is the outcome of one admission check. Rejections name the
// violated window and a retry_after equal to that window's horizon; admitted
// decisions report the minute-window quota.
type Decision struct {
	Allowed    bool
	LimitType  LimitType
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	Reset      time.Time
}

type windows struct {
	mu     sync.Mutex
	dead   bool
	burst  []time.Time
	minute []time.Time
	hour   []time.Time
}

// Limiter enforces three independent sliding windows per client identity.
// Each identity's windows are guarded together, so concurrent requests from
// one identity cannot race past a limit between check and append.
type Limiter struct {
	limits        Limits
	sweepInterval time.Duration
	logger        *logger.Logger
	now           func() time.Time

	mu         sync.Mutex
	identities map[string]*windows
}

// New builds a limiter with the given ceilings. sweepInterval controls how
// often idle identities are dropped.
func New(limits Limits, sweepInterval time.Duration, lg *logger.Logger) *Limiter {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &Limiter{
		limits:        limits,
		sweepInterval: sweepInterval,
		logger:        lg,
		now:           time.Now,
		identities:    make(map[string]*windows),
	}
}

// Check admits or rejects one request for the identity. Windows are purged
// lazily, tested burst then minute then hour, and appended to atomically on
// admission.
func (l *Limiter) Check(identity string) Decision {
	for {
		w := l.windowsFor(identity)
		w.mu.Lock()
		if w.dead {
			// swept out between lookup and lock; take a fresh slot
			w.mu.Unlock()
			continue
		}
		decision := l.checkLocked(w)
		w.mu.Unlock()
		return decision
	}
}

func (l *Limiter) checkLocked(w *windows) Decision {
	now := l.now()

	w.burst = prune(w.burst, now, burstHorizon)
	w.minute = prune(w.minute, now, minuteHorizon)
	w.hour = prune(w.hour, now, hourHorizon)

	if len(w.burst) >= l.limits.Burst {
		return reject(LimitBurst, burstHorizon, l.limits.Burst, w.burst, now)
	}
	if len(w.minute) >= l.limits.PerMinute {
		return reject(LimitMinute, minuteHorizon, l.limits.PerMinute, w.minute, now)
	}
	if len(w.hour) >= l.limits.PerHour {
		return reject(LimitHour, hourHorizon, l.limits.PerHour, w.hour, now)
	}

	w.burst = append(w.burst, now)
	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)

	return Decision{
		Allowed:   true,
		Limit:     l.limits.PerMinute,
		Remaining: l.limits.PerMinute - len(w.minute),
		Reset:     w.minute[0].Add(minuteHorizon),
	}
}

// Run prunes idle identities until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		if dropped := l.sweep(); dropped > 0 && l.logger != nil {
			l.logger.Debug("rate limiter sweep", zap.Int("identities_dropped", dropped))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sweep drops identities whose hour window has fully drained. The scan is
// time-boxed so a large identity table cannot stall the loop.
func (l *Limiter) sweep() int {
	deadline := l.now().Add(sweepBudget)

	l.mu.Lock()
	candidates := make([]string, 0, len(l.identities))
	for id := range l.identities {
		candidates = append(candidates, id)
	}
	l.mu.Unlock()

	dropped := 0
	for _, id := range candidates {
		if l.now().After(deadline) {
			break
		}

		l.mu.Lock()
		w, ok := l.identities[id]
		if !ok {
			l.mu.Unlock()
			continue
		}
		w.mu.Lock()
		w.hour = prune(w.hour, l.now(), hourHorizon)
		if len(w.hour) == 0 {
			w.dead = true
			delete(l.identities, id)
			dropped++
		}
		w.mu.Unlock()
		l.mu.Unlock()
	}
	return dropped
}

// Len reports how many identities currently hold window state.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.identities)
}

func (l *Limiter) windowsFor(identity string) *windows {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.identities[identity]
	if !ok {
		w = &windows{}
		l.identities[identity] = w
	}
	return w
}

func reject(limitType LimitType, horizon time.Duration, limit int, seq []time.Time, now time.Time) Decision {
	reset := now.Add(horizon)
	if len(seq) > 0 {
		reset = seq[0].Add(horizon)
	}
	return Decision{
		Allowed:    false,
		LimitType:  limitType,
		RetryAfter: horizon,
		Limit:      limit,
		Remaining:  0,
		Reset:      reset,
	}
}

func prune(seq []time.Time, now time.Time, horizon time.Duration) []time.Time {
	cutoff := now.Add(-horizon)
	kept := seq[:0]
	for _, ts := range seq {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
