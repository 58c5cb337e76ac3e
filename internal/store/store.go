// Package store persists client state in a PebbleDB key-value store: the
// session credential under a fixed key, a per-install client id, and a
// per-room cache of recently seen messages.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/google/uuid"

	"github.com/KlementevYP/messager/internal/model"
)

const (
	// SessionKey is the fixed key the browser client used in localStorage;
	// kept so the durable credential stays recognizable across tooling.
	SessionKey = "messenger_token"

	clientIDKey   = "client_id"
	historyPrefix = "history/"
)

// Store wraps the Pebble database. Safe for concurrent use.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
	// next sequence number per room cache, discovered lazily.
	next map[string]uint64
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open pebble db: %w", err)
	}

	return &Store{db: db, next: make(map[string]uint64)}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists the session under SessionKey, replacing any previous
// entry.
func (s *Store) SaveSession(sess model.Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}

	if err := s.db.Set([]byte(SessionKey), val, pebble.Sync); err != nil {
		return fmt.Errorf("store: persist session: %w", err)
	}

	return nil
}

// LoadSession reads the persisted session. The second return value reports
// whether one existed.
func (s *Store) LoadSession() (model.Session, bool, error) {
	val, closer, err := s.db.Get([]byte(SessionKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, fmt.Errorf("store: read session: %w", err)
	}
	defer closer.Close()

	var sess model.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		// A corrupt entry is as good as no entry; the caller will discard it.
		return model.Session{}, false, fmt.Errorf("store: decode session: %w", err)
	}

	return sess, true, nil
}

// ClearSession removes the persisted session. Clearing an absent session is
// a no-op.
func (s *Store) ClearSession() error {
	if err := s.db.Delete([]byte(SessionKey), pebble.Sync); err != nil {
		return fmt.Errorf("store: clear session: %w", err)
	}

	return nil
}

// ClientID returns the stable per-install identifier, creating one on first
// use.
func (s *Store) ClientID() (string, error) {
	val, closer, err := s.db.Get([]byte(clientIDKey))
	if err == nil {
		id := string(val)
		closer.Close()
		return id, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return "", fmt.Errorf("store: read client id: %w", err)
	}

	id := uuid.NewString()
	if err := s.db.Set([]byte(clientIDKey), []byte(id), pebble.Sync); err != nil {
		return "", fmt.Errorf("store: persist client id: %w", err)
	}

	return id, nil
}

// roomKey builds "history/<room>/<8-byte big-endian seq>". The room name is
// path-escaped so a slash-bearing room cannot fall inside another room's key
// range. Big-endian keys keep iteration order equal to insertion order.
func roomKey(room string, seq uint64) []byte {
	escaped := url.PathEscape(room)
	key := make([]byte, 0, len(historyPrefix)+len(escaped)+9)
	key = append(key, historyPrefix...)
	key = append(key, escaped...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func roomBounds(room string) (lower, upper []byte) {
	lower = append([]byte(historyPrefix), url.PathEscape(room)...)
	lower = append(lower, '/')
	upper = append(append([]byte(nil), lower...), 0xff)
	return lower, upper
}

// CacheMessage appends one message to the room's cache.
func (s *Store) CacheMessage(room string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.next[room]
	if !ok {
		last, err := s.lastSeq(room)
		if err != nil {
			return err
		}
		seq = last
	}

	val, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("store: encode message: %w", err)
	}

	if err := s.db.Set(roomKey(room, seq), val, pebble.NoSync); err != nil {
		return fmt.Errorf("store: cache message: %w", err)
	}

	s.next[room] = seq + 1
	return nil
}

// ReplaceRoomCache drops the room's cache and refills it from msgs, in order.
// Called after a successful history fetch so the cache mirrors the server.
func (s *Store) ReplaceRoomCache(room string, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower, upper := roomBounds(room)
	if err := s.db.DeleteRange(lower, upper, pebble.NoSync); err != nil {
		return fmt.Errorf("store: clear room cache: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for i, msg := range msgs {
		val, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("store: encode message: %w", err)
		}
		if err := batch.Set(roomKey(room, uint64(i)), val, nil); err != nil {
			return fmt.Errorf("store: batch message: %w", err)
		}
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("store: commit room cache: %w", err)
	}

	s.next[room] = uint64(len(msgs))
	return nil
}

// CachedMessages returns the room's cached transcript in insertion order.
func (s *Store) CachedMessages(room string) ([]model.Message, error) {
	lower, upper := roomBounds(room)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: iterate room cache: %w", err)
	}
	defer it.Close()

	var out []model.Message
	for it.First(); it.Valid(); it.Next() {
		var msg model.Message
		if err := json.Unmarshal(it.Value(), &msg); err == nil {
			out = append(out, msg)
		}
	}

	return out, nil
}

func (s *Store) lastSeq(room string) (uint64, error) {
	lower, upper := roomBounds(room)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("store: iterate room cache: %w", err)
	}
	defer it.Close()

	if !it.Last() {
		return 0, nil
	}

	key := it.Key()
	if len(key) < 8 {
		return 0, nil
	}

	return binary.BigEndian.Uint64(key[len(key)-8:]) + 1, nil
}
