package seen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jimezsa/jobpilot/internal/models"
)

func openBackends(t *testing.T) map[string]func(t *testing.T, dir string) Gate {
	t.Helper()
	return map[string]func(t *testing.T, dir string) Gate{
		BackendFile: func(t *testing.T, dir string) Gate {
			g, err := Open(context.Background(), Options{Backend: BackendFile, Path: filepath.Join(dir, "seen.json")})
			if err != nil {
				t.Fatalf("Open(file) error = %v", err)
			}
			return g
		},
		BackendBadger: func(t *testing.T, dir string) Gate {
			g, err := Open(context.Background(), Options{Backend: BackendBadger, Path: filepath.Join(dir, "seen.badger")})
			if err != nil {
				t.Fatalf("Open(badger) error = %v", err)
			}
			return g
		},
		BackendSQLite: func(t *testing.T, dir string) Gate {
			g, err := Open(context.Background(), Options{Backend: BackendSQLite, Path: filepath.Join(dir, "seen.db")})
			if err != nil {
				t.Fatalf("Open(sqlite) error = %v", err)
			}
			return g
		},
	}
}

func TestGateBackendsPersistKeys(t *testing.T) {
	ctx := context.Background()
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			g := open(t, dir)
			ok, err := g.Exists(ctx, "k1")
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if ok {
				t.Fatalf("expected k1 to be unseen")
			}
			if err := g.Insert(ctx, "k1"); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := g.Insert(ctx, "k1"); err != nil {
				t.Fatalf("Insert() repeat error = %v", err)
			}
			if err := g.Insert(ctx, "k2"); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := g.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			g = open(t, dir)
			defer g.Close()
			ok, err = g.Exists(ctx, "k1")
			if err != nil || !ok {
				t.Fatalf("Exists(k1) after reopen = %v, %v", ok, err)
			}
			n, err := g.Count(ctx)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != 2 {
				t.Fatalf("Count() = %d, want 2", n)
			}
		})
	}
}

func TestRedisGate(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	prefix := "jobpilot:test:" + t.Name() + ":"
	g, err := OpenRedis(ctx, url, prefix)
	if err != nil {
		t.Fatalf("OpenRedis() error = %v", err)
	}
	defer func() {
		keys, _ := g.client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			g.client.Del(ctx, keys...)
		}
		g.Close()
	}()

	if err := g.Insert(ctx, "k1"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	ok, err := g.Exists(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	n, err := g.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestFileStoreReadsMissingAsEmpty(t *testing.T) {
	got, err := ReadEntriesAllowMissing(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("ReadEntriesAllowMissing() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d", len(got))
	}
}

func TestContainsHonorsCancelledContext(t *testing.T) {
	g, err := OpenFile(filepath.Join(t.TempDir(), "seen.json"))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocking := blockingGate{Gate: g, release: make(chan struct{})}
	defer close(blocking.release)
	if _, err := Contains(ctx, blocking, "k"); err == nil {
		t.Fatalf("expected context error")
	}
}

type blockingGate struct {
	Gate
	release chan struct{}
}

func (b blockingGate) Exists(ctx context.Context, key string) (bool, error) {
	<-b.release
	return b.Gate.Exists(ctx, key)
}

func TestFilterAndRecordIdempotency(t *testing.T) {
	ctx := context.Background()
	g, err := OpenFile(filepath.Join(t.TempDir(), "seen.json"))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}

	jobs := []models.Job{
		{ID: "a", Title: "One"},
		{ID: "a", Title: "One again"},
		{ID: "b", Title: "Two"},
		{ID: " ", Title: "Invalid"},
	}

	unseen, stats, err := Filter(ctx, g, jobs)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if len(unseen) != 2 || unseen[0].ID != "a" || unseen[1].ID != "b" {
		t.Fatalf("unexpected unseen jobs: %+v", unseen)
	}
	if stats.Invalid != 1 || stats.Seen != 1 || stats.Unseen != 2 || stats.Total != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec, err := Record(ctx, g, unseen)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Added != 2 {
		t.Fatalf("Added = %d, want 2", rec.Added)
	}

	unseen, _, err = Filter(ctx, g, jobs)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if len(unseen) != 0 {
		t.Fatalf("expected no unseen jobs after record, got %d", len(unseen))
	}

	rec, err = Record(ctx, g, jobs)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Added != 0 || rec.Invalid != 1 {
		t.Fatalf("second Record() stats = %+v", rec)
	}
}
