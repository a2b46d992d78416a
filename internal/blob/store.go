package blob

import (
	"errors"
	"fmt"
	"path"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no blob exists at the requested path.
var ErrNotFound = errors.New("blob not found")

// Store keeps file payloads in a pebble database keyed by logical path.
type Store struct {
	log *zap.Logger
	db  *pebble.DB
}

// Open creates or reopens the blob database at dir.
func Open(log *zap.Logger, dir string) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open blob store at %s: %w", dir, err)
	}
	return &Store{log: log, db: db}, nil
}

// FilePath builds the canonical location for a message attachment.
func FilePath(chatID, messageID, filename string) string {
	return path.Join("files", chatID, messageID, filename)
}

// Put writes a blob at the given path, replacing any previous content.
func (s *Store) Put(blobPath string, data []byte) error {
	if blobPath == "" {
		return fmt.Errorf("blob path is empty")
	}
	if err := s.db.Set([]byte(blobPath), data, pebble.Sync); err != nil {
		return fmt.Errorf("write blob %s: %w", blobPath, err)
	}
	s.log.Debug("blob stored", zap.String("path", blobPath), zap.Int("bytes", len(data)))
	return nil
}

// Get reads the blob at the given path.
func (s *Store) Get(blobPath string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(blobPath))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", blobPath, err)
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete removes the blob at the given path. Deleting a missing blob is
// not an error.
func (s *Store) Delete(blobPath string) error {
	if err := s.db.Delete([]byte(blobPath), pebble.Sync); err != nil {
		return fmt.Errorf("delete blob %s: %w", blobPath, err)
	}
	return nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
