// Package rate holds per-client token buckets for the operator API.
package rate

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter *rate.Limiter
	last    time.Time
}

// LimiterMap keeps one limiter per client key and evicts idle ones.
type LimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*entry
	every    rate.Limit
	burst    int
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiterMap allows rpm requests per minute per key. It starts a reaper
// goroutine; call Stop when done.
func NewLimiterMap(rpm, burst int, ttl time.Duration) *LimiterMap {
	if rpm <= 0 {
		rpm = 1
	}
	if burst <= 0 {
		burst = 1
	}
	lm := &LimiterMap{
		limiters: make(map[string]*entry),
		every:    rate.Every(time.Minute / time.Duration(rpm)),
		burst:    burst,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go lm.reaper()
	return lm
}

func (l *LimiterMap) reaper() {
	t := time.NewTicker(l.ttl)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-t.C:
			l.evict(now)
		}
	}
}

func (l *LimiterMap) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.limiters {
		if now.Sub(e.last) > l.ttl {
			delete(l.limiters, k)
		}
	}
}

func (l *LimiterMap) Stop() { l.stopOnce.Do(func() { close(l.stopCh) }) }

func (l *LimiterMap) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.limiters[key]; ok {
		e.last = time.Now()
		return e.limiter
	}
	lim := rate.NewLimiter(l.every, l.burst)
	l.limiters[key] = &entry{limiter: lim, last: time.Now()}
	return lim
}

func (l *LimiterMap) Allow(key string) bool { return l.get(key).Allow() }

// Len is the number of tracked keys.
func (l *LimiterMap) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// IPFromRequest returns the first X-Forwarded-For hop, else X-Real-IP, else
// the host part of RemoteAddr.
func IPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
