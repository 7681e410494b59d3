package writer

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_BasicSendReceive(t *testing.T) {
	q := NewQueue[int](10, 100)

	for i := 0; i < 5; i++ {
		if !q.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := q.Receive()
		if !ok {
			t.Fatalf("Receive() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("received %d, want %d", val, i)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_GrowsUpToLimit(t *testing.T) {
	q := NewQueue[int](4, 20)

	// 25 items: 20 fit, 5 are dropped
	sent := 0
	for i := 0; i < 25; i++ {
		if q.Send(i) {
			sent++
		}
	}

	stats := q.Stats()
	if sent != 20 || stats.Count != 20 {
		t.Errorf("sent = %d, Count = %d, want 20", sent, stats.Count)
	}
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want limit 20", stats.Capacity)
	}
	if stats.Dropped != 5 {
		t.Errorf("Dropped = %d, want 5", stats.Dropped)
	}
	if stats.ResizeCount < 2 {
		t.Errorf("ResizeCount = %d, expected at least 2 resizes", stats.ResizeCount)
	}

	// Order survives the resizes
	items := q.DrainTo(0)
	for i, v := range items {
		if v != i {
			t.Fatalf("items[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueue_WrappedGrow(t *testing.T) {
	q := NewQueue[int](10, 40)

	// Move head forward so the ring wraps before growing
	for i := 0; i < 5; i++ {
		q.Send(i)
	}
	q.DrainTo(5)

	for i := 0; i < 30; i++ {
		if !q.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	for i := 0; i < 30; i++ {
		v, ok := q.Receive()
		if !ok || v != i {
			t.Fatalf("Receive() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestQueue_BlockingReceive(t *testing.T) {
	q := NewQueue[int](10, 10)

	received := make(chan int, 1)

	go func() {
		val, ok := q.Receive()
		if ok {
			received <- val
		}
	}()

	// Give receiver time to start waiting
	time.Sleep(10 * time.Millisecond)

	q.Send(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("received %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked receive")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](10, 10)

	q.Send(1)
	q.Send(2)
	q.Close()

	if q.Send(3) {
		t.Error("Send should return false after Close")
	}

	// Remaining items are still delivered
	for _, want := range []int{1, 2} {
		val, ok := q.Receive()
		if !ok || val != want {
			t.Errorf("Receive() = %d, %v; want %d, true", val, ok, want)
		}
	}

	if _, ok := q.Receive(); ok {
		t.Error("Receive should return false when empty and closed")
	}
}

func TestQueue_CloseUnblocksReceive(t *testing.T) {
	q := NewQueue[int](10, 10)

	done := make(chan bool, 1)

	go func() {
		_, ok := q.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Receive")
	}
}

func TestQueue_DrainTo(t *testing.T) {
	q := NewQueue[int](10, 10)

	for i := 0; i < 6; i++ {
		q.Send(i)
	}

	items := q.DrainTo(4)
	if len(items) != 4 {
		t.Errorf("DrainTo(4) returned %d items, want 4", len(items))
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	if rest := q.DrainTo(0); len(rest) != 2 || rest[0] != 4 {
		t.Errorf("DrainTo(0) = %v, want [4 5]", rest)
	}
	if q.DrainTo(0) != nil {
		t.Error("DrainTo on empty queue should return nil")
	}
}

func TestQueue_ConcurrentSendReceive(t *testing.T) {
	q := NewQueue[int](4, 1000)

	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Send(i)
			}
		}()
	}

	got := make(chan int, 1)
	go func() {
		n := 0
		for {
			if _, ok := q.Receive(); !ok {
				got <- n
				return
			}
			n++
		}
	}()

	wg.Wait()
	q.Close()

	select {
	case n := <-got:
		stats := q.Stats()
		if int64(n)+stats.Dropped != producers*perProducer {
			t.Errorf("received %d + dropped %d, want %d", n, stats.Dropped, producers*perProducer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not finish")
	}
}
