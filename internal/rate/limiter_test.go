package rate

import (
	"net/http"
	"testing"
	"time"
)

func TestLimiter_AllowAndThrottle(t *testing.T) {
	lm := NewLimiterMap(2, 1, 200*time.Millisecond) // 2 req/min, burst 1
	defer lm.Stop()
	ip := "1.2.3.4"
	if !lm.Allow(ip) {
		t.Fatalf("first should allow")
	}
	if lm.Allow(ip) {
		t.Fatalf("second should be throttled")
	}
	if !lm.Allow("9.9.9.9") {
		t.Fatalf("other clients have their own bucket")
	}
}

func TestLimiter_ReaperEvictsIdle(t *testing.T) {
	lm := NewLimiterMap(100, 1, 50*time.Millisecond)
	defer lm.Stop()
	if !lm.Allow("5.6.7.8") {
		t.Fatalf("allow")
	}
	time.Sleep(150 * time.Millisecond)
	if n := lm.Len(); n != 0 {
		t.Fatalf("idle limiter not evicted, len=%d", n)
	}
	if !lm.Allow("5.6.7.8") {
		t.Fatalf("allow after eviction")
	}
	lm.Stop()
}

func TestIPFromRequest(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "http://x/", nil)
	r.Header.Set("X-Forwarded-For", " 203.0.113.1 , 10.0.0.1")
	if ip := IPFromRequest(r); ip != "203.0.113.1" {
		t.Fatalf("xff ip=%q", ip)
	}

	r2, _ := http.NewRequest(http.MethodGet, "http://x/", nil)
	r2.Header.Set("X-Real-IP", "198.51.100.7")
	if ip := IPFromRequest(r2); ip != "198.51.100.7" {
		t.Fatalf("real ip=%q", ip)
	}

	r3, _ := http.NewRequest(http.MethodGet, "http://x/", nil)
	r3.RemoteAddr = "192.0.2.5:1234"
	if ip := IPFromRequest(r3); ip != "192.0.2.5" {
		t.Fatalf("remote ip=%q", ip)
	}
}
