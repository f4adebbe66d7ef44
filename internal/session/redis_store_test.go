package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestSaveAndLookup(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	data := TokenData{UserID: "usr_1", DisplayName: "Avery"}

	if err := store.Save(ctx, "hash-1", data, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Lookup(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.UserID != "usr_1" || got.DisplayName != "Avery" {
		t.Fatalf("unexpected token data: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped on save")
	}
}

func TestLookupMissingToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if _, err := store.Lookup(context.Background(), "no-such-hash"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupExpiredToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "hash-exp", TokenData{UserID: "usr_1"}, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := store.Lookup(ctx, "hash-exp"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "hash-2", TokenData{UserID: "usr_2"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Revoke(ctx, "hash-2"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := store.Lookup(ctx, "hash-2"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestAccessTokenRevocation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	revoked, err := store.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsAccessTokenRevoked() error = %v", err)
	}
	if revoked {
		t.Fatal("expected fresh jti to be unrevoked")
	}

	if err := store.RevokeAccessToken(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeAccessToken() error = %v", err)
	}

	revoked, err = store.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsAccessTokenRevoked() error = %v", err)
	}
	if !revoked {
		t.Fatal("expected jti to be revoked")
	}
}
