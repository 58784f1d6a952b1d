package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
)

func TestVerificationLatestUnused_PicksNewest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "v")
	store := db.Verifications()

	now := time.Now().UTC()
	older := &model.EmailVerification{UserID: user.ID, Code: "111111", CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(4 * time.Minute)}
	newer := &model.EmailVerification{UserID: user.ID, Code: "111111", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	for _, v := range []*model.EmailVerification{older, newer} {
		if err := store.CreateCode(ctx, v); err != nil {
			t.Fatalf("CreateCode() error = %v", err)
		}
	}

	got, err := store.LatestUnused(ctx, user.ID, "111111")
	if err != nil {
		t.Fatalf("LatestUnused() error = %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("LatestUnused() = %s, want newest %s", got.ID, newer.ID)
	}
}

func TestVerificationConsume_Once(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "v")
	store := db.Verifications()

	now := time.Now().UTC()
	code := &model.EmailVerification{UserID: user.ID, Code: "222222", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	if err := store.CreateCode(ctx, code); err != nil {
		t.Fatalf("CreateCode() error = %v", err)
	}

	if err := store.Consume(ctx, code.ID, user.ID); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	u, _ := db.Users().GetByID(ctx, user.ID)
	if !u.IsEmailVerified {
		t.Error("user not verified after Consume()")
	}

	if err := store.Consume(ctx, code.ID, user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Consume() error = %v, want ErrNotFound", err)
	}
	if _, err := store.LatestUnused(ctx, user.ID, "222222"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("LatestUnused() after consume error = %v, want ErrNotFound", err)
	}
}

func TestVerificationAttempts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "v")
	store := db.Verifications()

	a, err := store.GetAttempt(ctx, user.ID, "2026-01-02")
	if err != nil {
		t.Fatalf("GetAttempt() error = %v", err)
	}
	if a.Count != 0 {
		t.Fatalf("fresh count = %d, want 0", a.Count)
	}

	a.Count = 3
	if err := store.SaveAttempt(ctx, a); err != nil {
		t.Fatalf("SaveAttempt() error = %v", err)
	}
	a.Count = 4
	if err := store.SaveAttempt(ctx, a); err != nil {
		t.Fatalf("SaveAttempt() upsert error = %v", err)
	}

	got, _ := store.GetAttempt(ctx, user.ID, "2026-01-02")
	if got.Count != 4 {
		t.Errorf("count = %d, want 4", got.Count)
	}
	other, _ := store.GetAttempt(ctx, user.ID, "2026-01-03")
	if other.Count != 0 {
		t.Errorf("next day count = %d, want 0", other.Count)
	}
}
