package queue

import (
	"sync"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	if q.Dequeue() != nil {
		t.Fatal("dequeue on empty queue should return nil")
	}

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	for want := 1; want <= 3; want++ {
		got := q.Dequeue()
		if got != want {
			t.Fatalf("dequeue = %v, want %v", got, want)
		}
	}
	if q.Dequeue() != nil {
		t.Fatal("drained queue should return nil")
	}
	if !q.IsEmpty() {
		t.Fatal("drained queue should be empty")
	}
}

func TestQueueConcurrent(t *testing.T) {
	const producers, items = 8, 1000
	q := NewQueue()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < items; i++ {
				q.Enqueue(p*items + i)
			}
		}(p)
	}
	wg.Wait()

	if q.Len() != producers*items {
		t.Fatalf("len = %d, want %d", q.Len(), producers*items)
	}
	seen := make(map[interface{}]bool, producers*items)
	for v := q.Dequeue(); v != nil; v = q.Dequeue() {
		if seen[v] {
			t.Fatalf("duplicate item %v", v)
		}
		seen[v] = true
	}
	if len(seen) != producers*items {
		t.Fatalf("drained %d items, want %d", len(seen), producers*items)
	}
}
