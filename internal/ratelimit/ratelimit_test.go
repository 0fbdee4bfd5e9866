package ratelimit

import (
	"net/netip"
	"testing"

	"github.com/crawlkit/crawler/internal/clock"
)

type fakeResolver struct {
	addr ResolvedAddr
	err  error
}

func (f fakeResolver) Resolve(host, port string) (bool, ResolvedAddr, error) {
	return true, f.addr, f.err
}

func testAddr(t *testing.T, ip string, port uint16) ResolvedAddr {
	t.Helper()
	a, err := netip.ParseAddr(ip)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", ip, err)
	}
	return ResolvedAddr{Addr: a, Port: port}
}

// TestRateLimiterWindowScenario covers R=60, W=60000: 60 calls at t=0
// are admitted, the 61st is refused with the full window wait, and a
// call after the window resets succeeds.
func TestRateLimiterWindowScenario(t *testing.T) {
	addr := testAddr(t, "93.184.216.34", 443)
	rl := New(fakeResolver{addr: addr}, clock.NewFake(0), 60, 60000, 100)

	for i := 0; i < 60; i++ {
		if wait := rl.TryUseAt("example.com", "443", 0); wait != 0 {
			t.Fatalf("call %d at t=0: wait = %d, want 0", i, wait)
		}
	}

	if wait := rl.TryUseAt("example.com", "443", 0); wait != 60000 {
		t.Fatalf("61st call at t=0: wait = %d, want 60000", wait)
	}

	if wait := rl.TryUseAt("example.com", "443", 60001); wait != 0 {
		t.Fatalf("call at t=60001: wait = %d, want 0 (window reset)", wait)
	}
}

func TestRateLimiterSharesBucketAcrossHostnamesWithSameResolvedAddr(t *testing.T) {
	addr := testAddr(t, "10.0.0.1", 80)
	rl := New(fakeResolver{addr: addr}, clock.NewFake(0), 1, 1000, 100)

	if wait := rl.TryUseAt("host-a.example", "80", 0); wait != 0 {
		t.Fatalf("first host's call: wait = %d, want 0", wait)
	}
	if wait := rl.TryUseAt("host-b.example", "80", 0); wait == 0 {
		t.Fatalf("second hostname sharing the same resolved address should be throttled, got wait=0")
	}
}

func TestRateLimiterPendingResolutionReturnsShortWait(t *testing.T) {
	rl := New(pendingResolver{}, clock.NewFake(0), 10, 1000, 100)
	if wait := rl.TryUseAt("example.com", "443", 0); wait != 10 {
		t.Fatalf("wait = %d, want 10 for pending resolution", wait)
	}
}

type pendingResolver struct{}

func (pendingResolver) Resolve(host, port string) (bool, ResolvedAddr, error) {
	return false, ResolvedAddr{}, nil
}

func TestRateLimiterResolutionErrorAdmits(t *testing.T) {
	rl := New(fakeResolver{err: errResolveFailed}, clock.NewFake(0), 1, 1000, 100)
	if wait := rl.TryUseAt("broken.example", "443", 0); wait != 0 {
		t.Fatalf("wait = %d, want 0 (resolution errors should admit rather than block)", wait)
	}
}

var errResolveFailed = errResolve("resolution failed")

type errResolve string

func (e errResolve) Error() string { return string(e) }
