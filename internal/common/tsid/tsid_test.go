package tsid

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

var crockford = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{13}$`)

func TestGenerateFormat(t *testing.T) {
	id := Generate()
	if !crockford.MatchString(id) {
		t.Errorf("Generate() = %q, want 13 Crockford Base32 characters", id)
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		id := Generate()
		if seen[id] {
			t.Fatalf("duplicate id %q after %d generations", id, i)
		}
		seen[id] = true
	}
}

func TestGenerateConcurrent(t *testing.T) {
	const goroutines = 10
	const perGoroutine = 1000

	var ids sync.Map
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				id := Generate()
				if _, dup := ids.LoadOrStore(id, true); dup {
					t.Errorf("duplicate id %q under concurrency", id)
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	ids.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != goroutines*perGoroutine {
		t.Errorf("unique ids = %d, want %d", count, goroutines*perGoroutine)
	}
}

func TestGenerateSortsByTime(t *testing.T) {
	// Ordering holds at millisecond granularity, so space the generations.
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = Generate()
		time.Sleep(2 * time.Millisecond)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids out of order: %q then %q", ids[i-1], ids[i])
		}
	}
}

func TestGeneratorIsolatedSequence(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := g.Generate()
		if !crockford.MatchString(id) {
			t.Fatalf("Generate() = %q, want Crockford Base32", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q from dedicated generator", id)
		}
		seen[id] = true
	}
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Generate()
	}
}

func BenchmarkGenerateParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			Generate()
		}
	})
}
