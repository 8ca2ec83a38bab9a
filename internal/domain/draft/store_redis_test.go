package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	d, err := store.Create(ctx, "u")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d.Record.Vorname = strp("Max")
	d.CurrentStep = 2
	if err := store.Update(ctx, "u", d); err != nil {
		t.Fatalf("update: %v", err)
	}

	cur, err := store.Current(ctx, "u")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.ID != d.ID || cur.CurrentStep != 2 {
		t.Errorf("current = %+v", cur)
	}
	if cur.Record.Vorname == nil || *cur.Record.Vorname != "Max" {
		t.Error("record not persisted")
	}
}

func TestRedisStoreCorruptCollectionDegradesToEmpty(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	mr.Set(collectionKey("u"), "{not json")

	drafts, total, err := store.List(ctx, "u", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(drafts) != 0 {
		t.Errorf("expected empty collection, got total=%d drafts=%v", total, drafts)
	}

	// The owner can start over on top of the corrupted key.
	d, err := store.Create(ctx, "u")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Get(ctx, "u", d.ID); err != nil {
		t.Errorf("get after create: %v", err)
	}
}

func TestRedisStoreCorruptCurrentPointer(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "u"); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.Set(currentKey("u"), "not-a-uuid")

	if _, err := store.Current(ctx, "u"); !errors.Is(err, ErrNoCurrent) {
		t.Fatalf("expected ErrNoCurrent, got %v", err)
	}
	// The broken pointer is cleaned up, not re-parsed on every call.
	if mr.Exists(currentKey("u")) {
		t.Error("corrupt pointer key should have been deleted")
	}
}

func TestRedisStoreDeleteClearsPointer(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	d, err := store.Create(ctx, "u")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, "u", d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Current(ctx, "u"); !errors.Is(err, ErrNoCurrent) {
		t.Errorf("expected ErrNoCurrent after delete, got %v", err)
	}
}
