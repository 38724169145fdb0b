package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterCleanupEvery = 5 * time.Minute
)

// limitReason labels why a connection was refused.
type limitReason string

const (
	limitReasonRate   limitReason = "rate_limit"
	limitReasonGlobal limitReason = "global_limit"
	limitReasonPerIP  limitReason = "per_ip_limit"
)

type ipRateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// connectionLimits admits WebSocket connections against an instance-wide cap,
// a per-IP cap and a per-IP connect rate.
type connectionLimits struct {
	clock clockwork.Clock

	current   atomic.Int64
	globalMax int64

	mu        sync.Mutex
	perIP     map[string]int
	perIPMax  int
	rates     map[string]*ipRateEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

func newConnectionLimits(clock clockwork.Clock, globalMax, perIPMax int, connectsPerSecond float64, burst int) *connectionLimits {
	return &connectionLimits{
		clock:     clock,
		globalMax: int64(globalMax),
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		rates:     make(map[string]*ipRateEntry),
		rate:      rate.Limit(connectsPerSecond),
		burst:     burst,
		cleanupAt: clock.Now().Add(limiterCleanupEvery),
	}
}

// acquire reserves a slot for ip. On success the caller must release it.
func (l *connectionLimits) acquire(ip string) (bool, limitReason) {
	if !l.allowRate(ip) {
		return false, limitReasonRate
	}
	if !l.acquireGlobal() {
		return false, limitReasonGlobal
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] >= l.perIPMax {
		l.current.Add(-1)
		return false, limitReasonPerIP
	}
	l.perIP[ip]++
	return true, ""
}

func (l *connectionLimits) release(ip string) {
	l.mu.Lock()
	if n := l.perIP[ip]; n > 1 {
		l.perIP[ip] = n - 1
	} else {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()
	l.current.Add(-1)
}

func (l *connectionLimits) active() int64 {
	return l.current.Load()
}

func (l *connectionLimits) acquireGlobal() bool {
	for {
		n := l.current.Load()
		if n >= l.globalMax {
			return false
		}
		if l.current.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (l *connectionLimits) allowRate(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-limiterIdleTTL)
		for key, entry := range l.rates {
			if entry.lastSeen.Before(cutoff) {
				delete(l.rates, key)
			}
		}
		l.cleanupAt = now.Add(limiterCleanupEvery)
	}

	entry, ok := l.rates[ip]
	if !ok {
		entry = &ipRateEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.rates[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
