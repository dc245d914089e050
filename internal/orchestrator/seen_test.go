package orchestrator

import (
	"fmt"
	"sync"
	"testing"
)

func TestSeenSet(t *testing.T) {
	seen := NewSeenSet()

	if !seen.MarkIfNew("a") {
		t.Fatal("first MarkIfNew returned false")
	}
	if seen.MarkIfNew("a") {
		t.Fatal("second MarkIfNew returned true")
	}
	if !seen.Contains("a") || seen.Contains("b") {
		t.Fatal("Contains reported the wrong membership")
	}

	seen.Forget("a")
	if seen.Contains("a") {
		t.Fatal("Forget kept the id")
	}

	seen.MarkIfNew("b")
	seen.MarkIfNew("c")
	if seen.Len() != 2 {
		t.Fatalf("Len = %d, want 2", seen.Len())
	}
	seen.Reset()
	if seen.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", seen.Len())
	}
}

func TestSeenSetConcurrent(t *testing.T) {
	seen := NewSeenSet()
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if seen.MarkIfNew(fmt.Sprintf("id-%d", i%10)) {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if fresh != 10 {
		t.Errorf("%d ids reported as new, want 10", fresh)
	}
}
