package snowflake

import (
	"sync"
	"testing"
)

func TestNewRejectsInvalidNodeID(t *testing.T) {
	if _, err := New(-1); err != ErrInvalidNodeID {
		t.Fatalf("expected ErrInvalidNodeID, got %v", err)
	}
	if _, err := New(1024); err != ErrInvalidNodeID {
		t.Fatalf("expected ErrInvalidNodeID, got %v", err)
	}
	if _, err := New(1023); err != nil {
		t.Fatalf("node 1023 should be valid: %v", err)
	}
}

func TestGenerateMonotonic(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var last int64
	for i := 0; i < 1000; i++ {
		id, err := g.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
	}
}

func TestGenerateUniqueUnderConcurrency(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	const perWorker = 200
	const workers = 8
	var mu sync.Mutex
	seen := make(map[int64]bool, perWorker*workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := g.Generate()
				if err != nil {
					t.Errorf("generate: %v", err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestGlobalGenerator(t *testing.T) {
	if err := Init(2); err != nil {
		t.Fatalf("init: %v", err)
	}
	id, err := NextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want positive", id)
	}
	if MustNextID() <= id {
		t.Fatal("expected increasing ids from global generator")
	}
}
