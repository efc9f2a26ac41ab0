package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cermont-atg/authcore/internal/passwordreset/domain"
)

func seed(t *testing.T, repo *MemoryRepository, hash string, expiresAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.ResetToken{
		ID: "rt-" + hash, UserID: "user-1", Email: "a@example.com",
		TokenHash: hash, CreatedAt: time.Now(), ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestMemoryConsume_SingleUse(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Now()
	seed(t, repo, "hash-1", now.Add(time.Hour))

	got, err := repo.Consume(context.Background(), "hash-1", now)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.UsedAt == nil {
		t.Error("UsedAt should be set")
	}

	if _, err := repo.Consume(context.Background(), "hash-1", now); !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("second Consume err = %v, want ErrTokenAlreadyUsed", err)
	}
}

func TestMemoryConsume_UnknownAndExpired(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Now()
	seed(t, repo, "hash-1", now.Add(-time.Minute))

	if _, err := repo.Consume(context.Background(), "nope", now); !errors.Is(err, ErrTokenUnknown) {
		t.Errorf("err = %v, want ErrTokenUnknown", err)
	}
	if _, err := repo.Consume(context.Background(), "hash-1", now); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestMemoryConsume_ConcurrentOneWinner(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Now()
	seed(t, repo, "hash-1", now.Add(time.Hour))

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Consume(context.Background(), "hash-1", now)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, ErrTokenAlreadyUsed) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
}

func TestMemoryInvalidateAllForUser(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Now()
	seed(t, repo, "hash-1", now.Add(time.Hour))
	seed(t, repo, "hash-2", now.Add(time.Hour))

	if err := repo.InvalidateAllForUser(context.Background(), "user-1", now); err != nil {
		t.Fatalf("InvalidateAllForUser: %v", err)
	}
	for _, hash := range []string{"hash-1", "hash-2"} {
		if _, err := repo.Consume(context.Background(), hash, now); !errors.Is(err, ErrTokenAlreadyUsed) {
			t.Errorf("Consume(%q) err = %v, want ErrTokenAlreadyUsed", hash, err)
		}
	}
}

func TestMemoryPruneExpired(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Now()
	seed(t, repo, "hash-old", now.Add(-time.Hour))
	seed(t, repo, "hash-live", now.Add(time.Hour))

	n, err := repo.PruneExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
	if _, err := repo.Consume(context.Background(), "hash-old", now); !errors.Is(err, ErrTokenUnknown) {
		t.Errorf("pruned token err = %v, want ErrTokenUnknown", err)
	}
}
