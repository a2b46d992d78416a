package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type memoryArchive struct {
	saved map[string]Key
}

func (a *memoryArchive) SaveKey(_ context.Context, key Key) error {
	if a.saved == nil {
		a.saved = make(map[string]Key)
	}
	a.saved[key.Key] = key
	return nil
}

func (a *memoryArchive) LoadKeys(_ context.Context) ([]Key, error) {
	out := make([]Key, 0, len(a.saved))
	for _, k := range a.saved {
		out = append(out, k)
	}
	return out, nil
}

func TestKeyRegistryIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	reg, err := NewKeyRegistry(ctx, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	key, err := reg.Issue(ctx, time.Now())
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	if key.ChatID != BrowserChatID(key.Key) {
		t.Fatalf("key chat id %q not bound to token", key.ChatID)
	}

	resolved, err := reg.Resolve(key.Key)
	if err != nil || resolved.Key != key.Key {
		t.Fatalf("resolve issued key: %+v, %v", resolved, err)
	}
	if _, err := reg.Resolve("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyRegistryRevokeIsOneWay(t *testing.T) {
	ctx := context.Background()
	reg, err := NewKeyRegistry(ctx, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}
	key, _ := reg.Issue(ctx, time.Now())

	if err := reg.Revoke(ctx, key.Key); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Still resolvable for audit, but flagged revoked.
	resolved, err := reg.Resolve(key.Key)
	if !errors.Is(err, ErrKeyRevoked) {
		t.Fatalf("expected ErrKeyRevoked, got %v", err)
	}
	if !resolved.IsRevoked {
		t.Fatalf("resolved key not marked revoked")
	}
	if len(reg.Active()) != 0 {
		t.Fatalf("revoked key listed as active")
	}
	// Revoking again is a no-op, not an error.
	if err := reg.Revoke(ctx, key.Key); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestKeyRegistryPersistsThroughArchive(t *testing.T) {
	ctx := context.Background()
	archive := &memoryArchive{}

	reg, err := NewKeyRegistry(ctx, zaptest.NewLogger(t), archive)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}
	key, _ := reg.Issue(ctx, time.Now())
	reg.Revoke(ctx, key.Key)

	reloaded, err := NewKeyRegistry(ctx, zaptest.NewLogger(t), archive)
	if err != nil {
		t.Fatalf("reload registry: %v", err)
	}
	resolved, err := reloaded.Resolve(key.Key)
	if !errors.Is(err, ErrKeyRevoked) || resolved.UserName != key.UserName {
		t.Fatalf("archived key not restored: %+v, %v", resolved, err)
	}
}
