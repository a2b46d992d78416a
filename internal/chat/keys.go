package chat

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrKeyNotFound = errors.New("chat key not found")
	ErrKeyRevoked  = errors.New("chat key has been revoked")
)

// KeyArchive persists capability keys across restarts. The file keystore
// implements it; a nil archive keeps the registry memory-only.
type KeyArchive interface {
	SaveKey(ctx context.Context, key Key) error
	LoadKeys(ctx context.Context) ([]Key, error)
}

// KeyRegistry owns the browser capability keys issued by this node.
type KeyRegistry struct {
	log     *zap.Logger
	archive KeyArchive
	mu      sync.RWMutex
	keys    map[string]*Key
}

// NewKeyRegistry builds a registry, loading any archived keys.
func NewKeyRegistry(ctx context.Context, log *zap.Logger, archive KeyArchive) (*KeyRegistry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &KeyRegistry{
		log:     log,
		archive: archive,
		keys:    make(map[string]*Key),
	}
	if archive != nil {
		stored, err := archive.LoadKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("load chat keys: %w", err)
		}
		for _, k := range stored {
			kc := k
			r.keys[k.Key] = &kc
		}
	}
	return r, nil
}

// Issue mints a new capability key bound to a fresh browser chat id.
func (r *KeyRegistry) Issue(ctx context.Context, now time.Time) (Key, error) {
	token, err := NewKeyToken()
	if err != nil {
		return Key{}, err
	}

	key := Key{
		Key:       token,
		UserName:  guestAlias(),
		CreatedAt: now.Unix(),
		ChatID:    BrowserChatID(token),
	}

	r.mu.Lock()
	r.keys[key.Key] = &key
	r.mu.Unlock()

	if r.archive != nil {
		if err := r.archive.SaveKey(ctx, key); err != nil {
			r.log.Warn("persist chat key", zap.Error(err))
		}
	}
	return key, nil
}

// Resolve looks up a key regardless of revocation; revoked keys stay
// resolvable for audit but fail with ErrKeyRevoked.
func (r *KeyRegistry) Resolve(token string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[token]
	if !ok {
		return Key{}, ErrKeyNotFound
	}
	if k.IsRevoked {
		return *k, ErrKeyRevoked
	}
	return *k, nil
}

// Revoke flips a key to revoked. The transition is one-way; revoking an
// already revoked key is a no-op.
func (r *KeyRegistry) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	k, ok := r.keys[token]
	if !ok {
		r.mu.Unlock()
		return ErrKeyNotFound
	}
	k.IsRevoked = true
	cp := *k
	r.mu.Unlock()

	if r.archive != nil {
		if err := r.archive.SaveKey(ctx, cp); err != nil {
			r.log.Warn("persist chat key revocation", zap.Error(err))
		}
	}
	return nil
}

// Active lists non-revoked keys, newest first.
func (r *KeyRegistry) Active() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Key, 0, len(r.keys))
	for _, k := range r.keys {
		if !k.IsRevoked {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func guestAlias() string {
	var raw [4]byte
	_, _ = rand.Read(raw[:])
	return fmt.Sprintf("Guest-%d", binary.BigEndian.Uint32(raw[:])%10000)
}
