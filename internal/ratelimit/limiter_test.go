package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCheck_AllowsUpToMax(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 5}, nil)

	for i := 0; i < 5; i++ {
		d := l.Check("10.0.0.1")
		if !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Errorf("request %d: remaining = %d, want %d", i+1, d.Remaining, 5-(i+1))
		}
	}

	d := l.Check("10.0.0.1")
	if d.Allowed {
		t.Error("request over the maximum was allowed")
	}
	if d.Remaining != 0 {
		t.Errorf("denied decision remaining = %d, want 0", d.Remaining)
	}
}

func TestCheck_DeniedRequestNotCounted(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 2}, nil)
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Check("10.0.0.1")
	l.Check("10.0.0.1")

	// Repeated denials keep the full window as RetryAfter instead of
	// extending it.
	for i := 0; i < 3; i++ {
		d := l.Check("10.0.0.1")
		if d.Allowed {
			t.Fatalf("denial %d: request allowed", i+1)
		}
		if d.RetryAfter != time.Minute {
			t.Errorf("denial %d: RetryAfter = %v, want %v", i+1, d.RetryAfter, time.Minute)
		}
	}
}

func TestCheck_IndependentPerIP(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 1}, nil)

	if d := l.Check("10.0.0.1"); !d.Allowed {
		t.Fatal("first request from 10.0.0.1 denied")
	}
	if d := l.Check("10.0.0.1"); d.Allowed {
		t.Fatal("second request from 10.0.0.1 allowed")
	}
	if d := l.Check("10.0.0.2"); !d.Allowed {
		t.Error("request from unrelated IP denied")
	}
}

func TestCheck_WindowElapseResets(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 1}, nil)

	current := time.Now()
	l.now = func() time.Time { return current }

	if d := l.Check("10.0.0.1"); !d.Allowed {
		t.Fatal("first request denied")
	}
	if d := l.Check("10.0.0.1"); d.Allowed {
		t.Fatal("second request in window allowed")
	}

	current = current.Add(time.Minute)

	d := l.Check("10.0.0.1")
	if !d.Allowed {
		t.Error("request after window elapsed denied")
	}
	if d.Remaining != 0 {
		t.Errorf("fresh window remaining = %d, want 0", d.Remaining)
	}
}

func TestCheck_RetryAfterShrinksWithinWindow(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 1}, nil)

	current := time.Now()
	l.now = func() time.Time { return current }

	l.Check("10.0.0.1")

	current = current.Add(45 * time.Second)
	d := l.Check("10.0.0.1")
	if d.Allowed {
		t.Fatal("request within window allowed past maximum")
	}
	if d.RetryAfter != 15*time.Second {
		t.Errorf("RetryAfter = %v, want 15s", d.RetryAfter)
	}
}

func TestSetLimits(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 1}, nil)

	l.Check("10.0.0.1")
	if d := l.Check("10.0.0.1"); d.Allowed {
		t.Fatal("second request allowed under max 1")
	}

	l.SetLimits(time.Minute, 3)
	if d := l.Check("10.0.0.1"); !d.Allowed {
		t.Error("request denied after raising the maximum")
	}

	// Invalid values are ignored.
	l.SetLimits(0, 0)
	if d := l.Check("10.0.0.1"); !d.Allowed {
		t.Error("limits changed by an invalid SetLimits call")
	}
}

func TestSweep(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 5, Retention: 2 * time.Minute}, nil)

	current := time.Now()
	l.now = func() time.Time { return current }

	l.Check("10.0.0.1")
	l.Check("10.0.0.2")
	if got := l.TrackedIPs(); got != 2 {
		t.Fatalf("tracked = %d, want 2", got)
	}

	current = current.Add(90 * time.Second)
	l.Check("10.0.0.2") // resets 10.0.0.2's window start

	current = current.Add(time.Minute)
	removed := l.Sweep()
	if removed != 1 {
		t.Errorf("swept %d entries, want 1", removed)
	}
	if got := l.TrackedIPs(); got != 1 {
		t.Errorf("tracked after sweep = %d, want 1", got)
	}
}

func TestCheck_Concurrent(t *testing.T) {
	const perIP = 10
	l := New(Config{Window: time.Minute, MaxRequests: perIP}, nil)

	var wg sync.WaitGroup
	allowed := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.0.%d", n)
			for j := 0; j < perIP*2; j++ {
				if l.Check(ip).Allowed {
					allowed[n]++
				}
			}
		}(i)
	}
	wg.Wait()

	for n, got := range allowed {
		if got != perIP {
			t.Errorf("ip %d: %d allowed, want %d", n, got, perIP)
		}
	}
}
