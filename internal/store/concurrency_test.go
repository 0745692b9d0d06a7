package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
)

// seedCaptures populates n captures spread over a month of dates.
func seedCaptures(t testing.TB, st *Store, n int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		date := fmt.Sprintf("2025-06-%02d", i%28+1)
		c := entity.NewCapture(date, fmt.Sprintf("note %d", i))
		if err := st.PutCapture(ctx, c); err != nil {
			t.Fatalf("seed capture %d: %v", i, err)
		}
		ids = append(ids, c.ID)
	}
	return ids
}

// The CLI and a running daemon share one database file. Readers must not
// block while the sync pass writes back remote IDs.
func TestConcurrentReadersAndWriter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}

	st := newTestStore(t)
	ctx := context.Background()
	ids := seedCaptures(t, st, 200)

	const readers = 20
	const readsPerReader = 50

	var wg sync.WaitGroup
	errs := make(chan error, readers+1)

	now := time.Now().UTC()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, id := range ids {
			if err := st.StampSynced(ctx, entity.KindCapture, id,
				fmt.Sprintf("remote-%d", i), now); err != nil {
				errs <- fmt.Errorf("writer: %w", err)
				return
			}
		}
	}()

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < readsPerReader; i++ {
				date := fmt.Sprintf("2025-06-%02d", (r+i)%28+1)
				if _, err := st.CapturesByDate(ctx, date); err != nil {
					errs <- fmt.Errorf("reader %d: %w", r, err)
					return
				}
			}
		}(r)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// Every row made it through the writer.
	n, err := st.PendingSyncCount(ctx, entity.KindCapture, entity.SyncSynced)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(ids) {
		t.Errorf("synced rows = %d, want %d", n, len(ids))
	}
}

func benchStore(b *testing.B) *Store {
	b.Helper()
	st, err := Open(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	b.Cleanup(func() { st.Close() })
	if err := st.InitSchemaContext(context.Background()); err != nil {
		b.Fatalf("init schema: %v", err)
	}
	return st
}

func BenchmarkPutCapture(b *testing.B) {
	st := benchStore(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := entity.NewCapture("2025-06-01", fmt.Sprintf("note %d", i))
		if err := st.PutCapture(ctx, c); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCapturesByDate(b *testing.B) {
	st := benchStore(b)
	seedCaptures(b, st, 1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		date := fmt.Sprintf("2025-06-%02d", i%28+1)
		if _, err := st.CapturesByDate(ctx, date); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCapturesByDateParallel(b *testing.B) {
	st := benchStore(b)
	seedCaptures(b, st, 1000)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			date := fmt.Sprintf("2025-06-%02d", i%28+1)
			if _, err := st.CapturesByDate(ctx, date); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
