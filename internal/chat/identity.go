package chat

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// BrowserPrefix namespaces chats whose counterparty is a keyed browser
// guest instead of a node identity. Browser chat ids are never normalized.
const BrowserPrefix = "browser:"

// NormalizeChatID derives the canonical id for a 1:1 chat between two
// node identities. It is a pure function of the unordered pair, so both
// peers compute the identical id without any handshake.
func NormalizeChatID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// BrowserChatID returns the chat id bound to a browser capability key.
func BrowserChatID(key string) string {
	return BrowserPrefix + key
}

// IsBrowserChat reports whether a chat id lives in the guest namespace.
func IsBrowserChat(chatID string) bool {
	return strings.HasPrefix(chatID, BrowserPrefix)
}

// CounterpartyOf extracts the other participant from a normalized chat id.
func CounterpartyOf(chatID, self string) string {
	left, right, ok := strings.Cut(chatID, ":")
	if !ok {
		return ""
	}
	if left == self {
		return right
	}
	return left
}

// NewMessageID generates a message id of the form <unix_seconds>:<random_u32>.
func NewMessageID(now time.Time) string {
	var raw [4]byte
	_, _ = rand.Read(raw[:])
	return fmt.Sprintf("%d:%d", now.Unix(), binary.BigEndian.Uint32(raw[:]))
}

// NewKeyToken generates a high-entropy capability key.
func NewKeyToken() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate chat key: %w", err)
	}
	return fmt.Sprintf("%x", raw), nil
}
