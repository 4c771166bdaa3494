package queue

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("Enqueue(%d) failed unexpectedly", i)
		}
	}
	for i := 0; i < 4; i++ {
		if got := q.Dequeue(); got != i {
			t.Fatalf("Dequeue() = %d, want %d", got, i)
		}
	}
}

func TestQueue_EnqueueNonBlockingWhenFull(t *testing.T) {
	q := New[int](2)
	if !q.Enqueue(1) || !q.Enqueue(2) {
		t.Fatalf("expected first two enqueues to succeed")
	}
	if q.Enqueue(3) {
		t.Fatalf("expected Enqueue to fail when queue is full")
	}
	if !q.IsFull() {
		t.Fatalf("expected IsFull() true")
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New[int](1)
	done := make(chan int, 1)
	go func() { done <- q.Dequeue() }()

	select {
	case <-done:
		t.Fatalf("Dequeue returned before any item was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue(42)
	select {
	case got := <-done:
		if got != 42 {
			t.Fatalf("got %d, want 42", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dequeue did not unblock after Enqueue")
	}
}

func TestQueue_CountNeverExceedsCapacity(t *testing.T) {
	q := New[int](3)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Enqueue(n)
		}(i)
	}
	wg.Wait()
	if q.Len() > q.Cap() {
		t.Fatalf("len %d exceeds cap %d", q.Len(), q.Cap())
	}
}

func TestQueue_DestroyDrainsAndFrees(t *testing.T) {
	q := New[int](4)
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	var freed []int
	q.Destroy(func(item int) { freed = append(freed, item) })
	if len(freed) != 3 {
		t.Fatalf("freed %d items, want 3", len(freed))
	}
}
