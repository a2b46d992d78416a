package keystore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperware-ai/chat/internal/chat"
)

func newTestBackend(t *testing.T) *FileBackend {
	t.Helper()
	return NewFileBackend(filepath.Join(t.TempDir(), "chatkeys.json"))
}

func TestInitializeAndUnlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	if err := backend.Unlock(ctx, "pass"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before init, got %v", err)
	}
	if err := backend.Initialize(ctx, "pass"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := backend.Initialize(ctx, "pass"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	key := chat.Key{
		Key:       "abcd1234",
		UserName:  "Guest-42",
		CreatedAt: time.Now().Unix(),
		ChatID:    chat.BrowserChatID("abcd1234"),
	}
	if err := backend.SaveKey(ctx, key); err != nil {
		t.Fatalf("save key: %v", err)
	}

	reopened := NewFileBackend(backend.Path())
	if err := reopened.Unlock(ctx, "pass"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	keys, err := reopened.LoadKeys(ctx)
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != "abcd1234" || keys[0].UserName != "Guest-42" {
		t.Fatalf("unexpected keys after reopen: %+v", keys)
	}
}

func TestUnlockRejectsWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	if err := backend.Initialize(ctx, "correct"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	backend.SaveKey(ctx, chat.Key{Key: "k1", ChatID: chat.BrowserChatID("k1")})

	reopened := NewFileBackend(backend.Path())
	if err := reopened.Unlock(ctx, "wrong"); !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
}

func TestLockedBackendRefusesAccess(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	if err := backend.SaveKey(ctx, chat.Key{Key: "k1"}); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked on save, got %v", err)
	}
	if _, err := backend.LoadKeys(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked on load, got %v", err)
	}
}

func TestSaveKeyPersistsRevocation(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	if err := backend.Initialize(ctx, "pass"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	key := chat.Key{Key: "tok", ChatID: chat.BrowserChatID("tok")}
	backend.SaveKey(ctx, key)
	key.IsRevoked = true
	backend.SaveKey(ctx, key)

	keys, err := backend.LoadKeys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("load keys: %+v, %v", keys, err)
	}
	if !keys[0].IsRevoked {
		t.Fatalf("revocation not persisted")
	}
}

func TestDeleteKey(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	if err := backend.Initialize(ctx, "pass"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	backend.SaveKey(ctx, chat.Key{Key: "tok"})

	if err := backend.DeleteKey(ctx, "tok"); err != nil {
		t.Fatalf("delete key: %v", err)
	}
	keys, _ := backend.LoadKeys(ctx)
	if len(keys) != 0 {
		t.Fatalf("expected empty keystore, got %+v", keys)
	}
}
