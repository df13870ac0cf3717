package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of an admission check.
type Result struct {
	Allowed bool
	// RetryAfterSeconds is how long a denied client should wait before the
	// oldest counted request leaves the window. Always >= 1 on denial.
	RetryAfterSeconds int
	// Remaining is the admission budget left in the window after this check.
	Remaining int
}

// Limiter enforces a per-client sliding-window limit on upstream call
// volume. It is consulted only for requests that will actually reach the
// upstream: cache hits and coalesced followers never spend budget.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	clients map[string][]time.Time

	now func() time.Time
}

func NewLimiter(window time.Duration, max int) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit records and admits a request for clientID unless the client already
// has max requests inside the trailing window. Instants that have aged out
// of the window are pruned on every check, so an idle client's slate clears
// itself.
func (l *Limiter) Admit(clientID string) Result {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.clients[clientID][:0:0]
	for _, ts := range l.clients[clientID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.max {
		oldest := recent[0]
		retryAfter := int((l.window - now.Sub(oldest) + time.Second - 1) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		l.clients[clientID] = recent
		return Result{Allowed: false, RetryAfterSeconds: retryAfter}
	}

	recent = append(recent, now)
	l.clients[clientID] = recent
	return Result{Allowed: true, Remaining: l.max - len(recent)}
}

// Prune drops clients whose entire history has aged out of the window,
// bounding memory for one-off visitors.
func (l *Limiter) Prune() int {
	cutoff := l.now().Add(-l.window)
	dropped := 0

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, stamps := range l.clients {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.clients, id)
			dropped++
		}
	}
	return dropped
}
