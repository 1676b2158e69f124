package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tabitalk/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "conversations.sqlite"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func turn(id string, role domain.Role, text string, at time.Time) domain.Turn {
	return domain.Turn{ID: id, Role: role, Text: text, CreatedAt: at}
}

func TestAppendAndRecentPreservesOrder(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	input := []domain.Turn{
		turn("a", domain.RoleUser, "こんにちは", base),
		turn("b", domain.RoleAssistant, "Hello", base.Add(time.Second)),
		turn("c", domain.RoleUser, "ありがとう", base.Add(2*time.Second)),
	}
	for i, in := range input {
		seq, err := store.Append(ctx, in)
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		if seq <= 0 {
			t.Fatalf("expected positive seq, got %d", seq)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got))
	}
	for i := range input {
		if got[i].ID != input[i].ID {
			t.Fatalf("order mismatch at %d: got %q want %q", i, got[i].ID, input[i].ID)
		}
		if got[i].Text != input[i].Text {
			t.Fatalf("text mismatch at %d: got %q", i, got[i].Text)
		}
		if !got[i].CreatedAt.Equal(input[i].CreatedAt) {
			t.Fatalf("timestamp mismatch at %d: got %v want %v", i, got[i].CreatedAt, input[i].CreatedAt)
		}
	}
}

func TestRecentHonorsLimitMostRecentFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if _, err := store.Append(ctx, turn(id, domain.RoleUser, id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	// The two newest, returned chronologically.
	if got[0].ID != "d" || got[1].ID != "e" {
		t.Fatalf("unexpected window: %q %q", got[0].ID, got[1].ID)
	}
}

func TestAppendRejectsPendingTurn(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	pending := domain.Turn{ID: "p", Role: domain.RoleUser, Text: "recognizing", Pending: true, CreatedAt: time.Now()}
	if _, err := store.Append(context.Background(), pending); err == nil {
		t.Fatalf("expected pending turn to be rejected")
	}
}

func TestUpdateTextAndDelete(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	seq, err := store.Append(ctx, turn("a", domain.RoleUser, "before", time.Now()))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	dropSeq, err := store.Append(ctx, turn("b", domain.RoleAssistant, "stale", time.Now().Add(time.Second)))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := store.UpdateText(ctx, seq, "after"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := store.Delete(ctx, dropSeq); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(got))
	}
	if got[0].Text != "after" {
		t.Fatalf("unexpected text: %q", got[0].Text)
	}

	if err := store.UpdateText(ctx, 9999, "x"); err == nil {
		t.Fatalf("expected error updating missing turn")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, turn("a", domain.RoleUser, "x", time.Now())); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty log, got %d turns", len(got))
	}
}
