// Package resolver implements a non-blocking resolve() backed by a
// fixed worker pool that performs blocking name lookups off the
// caller's goroutine, caching results indefinitely for the crawl
// session's lifetime.
package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"strconv"
	"sync"

	"github.com/crawlkit/crawler/internal/ratelimit"
)

const (
	minWorkers = 4
	maxWorkers = 16
)

// WorkerCount returns clamp(2*cores, minWorkers, maxWorkers), the
// default pool sizing formula.
func WorkerCount() int {
	return clamp(2*runtime.NumCPU(), minWorkers, maxWorkers)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type request struct {
	host, port, key string
}

type resultSlot struct {
	ready  bool
	result ratelimit.ResolvedAddr
	err    error
}

// lookupFunc performs the underlying address lookup; overridden in
// tests to avoid touching the network.
type lookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Resolver is the production implementation of ratelimit.Resolver.
type Resolver struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []request
	results  map[string]*resultSlot
	shutdown bool
	wg       sync.WaitGroup
	lookup   lookupFunc
}

// New starts a Resolver with clamp(2*cores,4,16) workers.
func New() *Resolver {
	return newWithLookup(WorkerCount(), defaultLookup)
}

// NewWithWorkers starts a Resolver with an explicit worker count
// (tests and callers wanting deterministic concurrency).
func NewWithWorkers(workerCount int) *Resolver {
	return newWithLookup(workerCount, defaultLookup)
}

func newWithLookup(workerCount int, lookup lookupFunc) *Resolver {
	if workerCount < 1 {
		workerCount = minWorkers
	}
	r := &Resolver{
		results: make(map[string]*resultSlot),
		lookup:  lookup,
	}
	r.cond = sync.NewCond(&r.mu)
	for i := 0; i < workerCount; i++ {
		r.wg.Add(1)
		go r.workerLoop()
	}
	return r
}

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip4", host)
}

// Resolve implements ratelimit.Resolver: the first call for a
// (host, port) pair enqueues a background lookup and returns
// ready=false; subsequent calls return ready=false until the worker
// pool completes the lookup, then ready=true with the outcome.
func (r *Resolver) Resolve(host, port string) (ready bool, addr ratelimit.ResolvedAddr, resolveErr error) {
	key := host + ":" + port

	r.mu.Lock()
	if s, ok := r.results[key]; ok {
		slotReady, slotAddr, slotErr := s.ready, s.result, s.err
		r.mu.Unlock()
		if !slotReady {
			return false, ratelimit.ResolvedAddr{}, nil
		}
		return true, slotAddr, slotErr
	}

	r.results[key] = &resultSlot{}
	r.queue = append(r.queue, request{host: host, port: port, key: key})
	r.mu.Unlock()
	r.cond.Signal()

	return false, ratelimit.ResolvedAddr{}, nil
}

func (r *Resolver) workerLoop() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.shutdown {
			r.cond.Wait()
		}
		if len(r.queue) == 0 && r.shutdown {
			r.mu.Unlock()
			return
		}
		req := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		addr, err := r.resolveOne(req.host, req.port)

		r.mu.Lock()
		if s, ok := r.results[req.key]; ok {
			s.ready = true
			s.result = addr
			s.err = err
		}
		r.mu.Unlock()
	}
}

func (r *Resolver) resolveOne(host, port string) (ratelimit.ResolvedAddr, error) {
	ips, err := r.lookup(context.Background(), host)
	if err != nil {
		return ratelimit.ResolvedAddr{}, fmt.Errorf("resolver: lookup %s: %w", host, err)
	}
	if len(ips) == 0 {
		return ratelimit.ResolvedAddr{}, fmt.Errorf("resolver: no A record for %s", host)
	}

	v4 := ips[0].To4()
	if v4 == nil {
		return ratelimit.ResolvedAddr{}, fmt.Errorf("resolver: %s has no IPv4 address", host)
	}
	nip, ok := netip.AddrFromSlice(v4)
	if !ok {
		return ratelimit.ResolvedAddr{}, fmt.Errorf("resolver: could not convert address for %s", host)
	}

	portNum, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return ratelimit.ResolvedAddr{}, fmt.Errorf("resolver: invalid port %q: %w", port, err)
	}

	return ratelimit.ResolvedAddr{Addr: nip, Port: uint16(portNum)}, nil
}

// Shutdown sets the shutdown flag and wakes every idle worker so they
// drain the remaining queue and exit. It blocks until every worker has
// returned.
func (r *Resolver) Shutdown() {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()
	r.cond.Broadcast()
	r.wg.Wait()
}
