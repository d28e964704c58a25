package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"onlyconnect-service/internal/store"
)

type doc struct {
	Name string `json:"name"`
}

func TestStoreCommitsAndReads(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Set("teams", "t2", doc{Name: "Bees"}); err != nil {
			return err
		}
		if err := tx.Set("teams", "t1", doc{Name: "Ants"}); err != nil {
			return err
		}
		tx.Increment("points", "t1", 5)
		return nil
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	err = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		ids, err := tx.List(ctx, "teams")
		if err != nil {
			return err
		}
		if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
			t.Fatalf("expected sorted ids [t1 t2], got %v", ids)
		}
		var d doc
		if err := tx.Get(ctx, "teams", "t1", &d); err != nil {
			return err
		}
		if d.Name != "Ants" {
			t.Fatalf("expected Ants, got %q", d.Name)
		}
		n, err := tx.Counter(ctx, "points", "t1")
		if err != nil {
			return err
		}
		if n != 5 {
			t.Fatalf("expected counter 5, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := NewStore(store.DefaultRetryPolicy)
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var d doc
		return tx.Get(ctx, "teams", "nope", &d)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.DefaultRetryPolicy)
	boom := errors.New("boom")

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		_ = tx.Set("teams", "t1", doc{Name: "Ants"})
		tx.Increment("points", "t1", 3)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var d doc
		if err := tx.Get(ctx, "teams", "t1", &d); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected write to be discarded, got %v", err)
		}
		if n, _ := tx.Counter(ctx, "points", "t1"); n != 0 {
			t.Fatalf("expected counter untouched, got %d", n)
		}
		return nil
	})
}

func TestStoreRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond})
	seed(t, s, "walls", "w1", doc{Name: "v0"})

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		attempts++
		var d doc
		if err := tx.Get(ctx, "walls", "w1", &d); err != nil {
			return err
		}
		if attempts == 1 {
			// Another client commits between our read and our commit.
			seed(t, s, "walls", "w1", doc{Name: "v1"})
		}
		return tx.Set("walls", "w1", doc{Name: d.Name + "+mine"})
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry, got %d attempts", attempts)
	}

	var d doc
	_ = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Get(ctx, "walls", "w1", &d)
	})
	if d.Name != "v1+mine" {
		t.Fatalf("expected retried write on top of v1, got %q", d.Name)
	}
}

func TestStoreConcurrentIncrementsCompose(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.RetryPolicy{MaxAttempts: 50, InitialBackoff: time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
				tx.Increment("points", "t1", 2)
				return nil
			})
			if err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	_ = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Counter(ctx, "points", "t1")
		if err != nil {
			return err
		}
		if n != 40 {
			t.Fatalf("expected 40, got %d", n)
		}
		return nil
	})
}

func TestStoreAbortsWhenAlwaysConflicting(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	seed(t, s, "walls", "w1", doc{Name: "v0"})

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var d doc
		if err := tx.Get(ctx, "walls", "w1", &d); err != nil {
			return err
		}
		seed(t, s, "walls", "w1", doc{Name: "other"})
		return tx.Set("walls", "w1", doc{Name: "mine"})
	})
	if !errors.Is(err, store.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func seed(t *testing.T, s *Store, coll, id string, v any) {
	t.Helper()
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Set(coll, id, v)
	})
	if err != nil {
		t.Fatalf("seed %s/%s: %v", coll, id, err)
	}
}
