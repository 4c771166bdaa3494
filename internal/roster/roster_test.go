package roster

import (
	"net"
	"sync"
	"testing"
)

func pipePeer(id uint64) (*Peer, net.Conn) {
	a, b := net.Pipe()
	return &Peer{ID: id, Conn: a}, b
}

func TestRoster_AddRemoveCount(t *testing.T) {
	r := New()
	p1, c1 := pipePeer(1)
	p2, c2 := pipePeer(2)
	defer c1.Close()
	defer c2.Close()

	r.Add(p1)
	r.Add(p2)
	if r.Count() != 2 {
		t.Fatalf("count = %d, want 2", r.Count())
	}
	if _, ok := r.Remove(1); !ok {
		t.Fatalf("expected Remove(1) to find peer")
	}
	if r.Count() != 1 {
		t.Fatalf("count after remove = %d, want 1", r.Count())
	}
	if _, ok := r.Remove(1); ok {
		t.Fatalf("Remove(1) should be a no-op the second time")
	}
}

func TestRoster_ForEachHoldsLockForWholeIteration(t *testing.T) {
	r := New()
	const n = 8
	conns := make([]net.Conn, 0, n)
	for i := uint64(0); i < n; i++ {
		p, c := pipePeer(i)
		conns = append(conns, c)
		r.Add(p)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	seen := 0
	lockedEveryVisit := true
	go func() {
		defer wg.Done()
		r.ForEach(func(p *Peer) {
			seen++
			if r.mu.TryLock() {
				r.mu.Unlock()
				lockedEveryVisit = false
			}
		})
	}()
	wg.Wait()
	if seen != n {
		t.Fatalf("ForEach visited %d peers, want %d", seen, n)
	}
	if !lockedEveryVisit {
		t.Fatalf("ForEach callback ran without the roster lock held")
	}
}

func TestRoster_Drain(t *testing.T) {
	r := New()
	p, c := pipePeer(1)
	defer c.Close()
	r.Add(p)
	drained := r.Drain()
	if len(drained) != 1 {
		t.Fatalf("drained %d peers, want 1", len(drained))
	}
	if r.Count() != 0 {
		t.Fatalf("count after drain = %d, want 0", r.Count())
	}
}
