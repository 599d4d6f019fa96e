package datasource

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"bivis/pkg/table"
)

func testTable(t *testing.T, n int) *table.Table {
	t.Helper()
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i}
	}
	tab, err := table.New([]string{"v"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestKeyIsStable(t *testing.T) {
	if Key("a", "b") != Key("a", "b") {
		t.Fatal("identical parts hash differently")
	}
	if Key("a", "b") == Key("ab", "") {
		t.Fatal("part boundaries do not affect the key")
	}
	if Key("a") == Key("b") {
		t.Fatal("different parts collide")
	}
}

func TestDoCachesByKey(t *testing.T) {
	var c FetchCache
	var calls atomic.Int32
	want := testTable(t, 3)

	fetch := func() (*table.Table, error) {
		calls.Add(1)
		return want, nil
	}

	got, err := c.Do(1, fetch)
	if err != nil || got != want {
		t.Fatalf("Do = %v, %v", got, err)
	}
	got, err = c.Do(1, fetch)
	if err != nil || got != want {
		t.Fatalf("Do (cached) = %v, %v", got, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch ran %d times, want 1", calls.Load())
	}

	// A different key misses and replaces the entry.
	other := testTable(t, 5)
	got, err = c.Do(2, func() (*table.Table, error) { return other, nil })
	if err != nil || got != other {
		t.Fatalf("Do (new key) = %v, %v", got, err)
	}
	if _, ok := c.Lookup(1); ok {
		t.Fatal("old key still cached; the cache holds one entry")
	}
	if tab, ok := c.Last(); !ok || tab != other {
		t.Fatal("Last does not return the latest snapshot")
	}
}

func TestDoNeverCachesErrors(t *testing.T) {
	var c FetchCache
	var calls atomic.Int32

	boom := errors.New("boom")
	if _, err := c.Do(1, func() (*table.Table, error) {
		calls.Add(1)
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, ok := c.Last(); ok {
		t.Fatal("failed fetch was cached")
	}

	want := testTable(t, 1)
	got, err := c.Do(1, func() (*table.Table, error) {
		calls.Add(1)
		return want, nil
	})
	if err != nil || got != want {
		t.Fatalf("Do after error = %v, %v", got, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("fetch ran %d times, want 2", calls.Load())
	}
}

func TestInvalidate(t *testing.T) {
	var c FetchCache
	first := testTable(t, 1)
	second := testTable(t, 2)

	if _, err := c.Do(1, func() (*table.Table, error) { return first, nil }); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if _, ok := c.Last(); ok {
		t.Fatal("Invalidate left the entry behind")
	}

	got, err := c.Do(1, func() (*table.Table, error) { return second, nil })
	if err != nil || got != second {
		t.Fatal("fetch after Invalidate returned the stale table")
	}
}

func TestConcurrentIdenticalFetchesShareOneCall(t *testing.T) {
	var c FetchCache
	var calls atomic.Int32
	want := testTable(t, 4)

	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]*table.Table, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tab, err := c.Do(7, func() (*table.Table, error) {
				calls.Add(1)
				return want, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results[i] = tab
		}(i)
	}
	close(start)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch ran %d times, want 1", got)
	}
	for i, tab := range results {
		if !want.Equal(tab) {
			t.Fatalf("caller %d saw a different table", i)
		}
	}
}
