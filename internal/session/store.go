package session

import (
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Store persists bindings so a restart does not drop chosen wallets.
type Store interface {
	Load(sessionID string) (string, bool, error)
	Save(sessionID, address string) error
	Close() error
}

type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Load(sessionID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[sessionID]
	return v, ok, nil
}

func (s *MemoryStore) Save(sessionID, address string) error {
	s.mu.Lock()
	s.m[sessionID] = address
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

const keyPrefix = "session/"

type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session store path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrapf(err, "open session store %s", path)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load(sessionID string) (string, bool, error) {
	var out string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + sessionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, errors.Wrap(err, "load session")
	}
	return out, found, nil
}

func (s *BadgerStore) Save(sessionID, address string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+sessionID), []byte(address))
	})
	return errors.Wrap(err, "save session")
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
