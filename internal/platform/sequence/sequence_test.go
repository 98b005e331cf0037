package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/medicore/medicore/internal/platform/kv"
)

func TestDaily_FormatsAndIncrements(t *testing.T) {
	g := New(kv.NewMemory())
	g.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := g.Daily(ctx, "appt", "APT")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if first != "APT-20250601-0001" {
		t.Errorf("expected APT-20250601-0001, got %s", first)
	}

	second, err := g.Daily(ctx, "appt", "APT")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if second != "APT-20250601-0002" {
		t.Errorf("expected APT-20250601-0002, got %s", second)
	}
}

func TestDaily_ResetsPerDay(t *testing.T) {
	g := New(kv.NewMemory())
	day := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	g.now = func() time.Time { return day }
	ctx := context.Background()

	if _, err := g.Daily(ctx, "inv", "INV"); err != nil {
		t.Fatalf("daily: %v", err)
	}
	day = day.Add(2 * time.Minute)

	got, err := g.Daily(ctx, "inv", "INV")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if got != "INV-20250602-0001" {
		t.Errorf("expected fresh counter on new day, got %s", got)
	}
}

func TestCounter_Monotonic(t *testing.T) {
	g := New(kv.NewMemory())
	ctx := context.Background()

	first, err := g.Counter(ctx, "mrn", "MRN")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if first != "MRN-000001" {
		t.Errorf("expected MRN-000001, got %s", first)
	}
	if second, _ := g.Counter(ctx, "mrn", "MRN"); second != "MRN-000002" {
		t.Errorf("expected MRN-000002, got %s", second)
	}
}

func TestCounter_UniqueUnderConcurrency(t *testing.T) {
	g := New(kv.NewMemory())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := g.Counter(ctx, "mrn", "MRN")
			if err != nil {
				t.Errorf("counter: %v", err)
				return
			}
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for num := range results {
		if seen[num] {
			t.Fatalf("duplicate number %s", num)
		}
		seen[num] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d unique numbers, got %d", n, len(seen))
	}
}
