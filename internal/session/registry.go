// Package session binds MCP sessions to the wallet the user picked with
// chooseWallet.
package session

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
)

// WalletRecord is one wallet the authenticated identity owns.
type WalletRecord struct {
	Address string `json:"address"`
	ChainID string `json:"chain_id"`
	Label   string `json:"label,omitempty"`
}

// lockStripes bounds the lock table; sessions that hash to the same
// stripe share a mutex.
const lockStripes = 64

// Registry maps a session id to one wallet address. Binds on the same
// session are serialized.
type Registry struct {
	store Store
	log   *logrus.Entry

	locks [lockStripes]sync.Mutex

	bindings sync.Map // session id -> address
}

func NewRegistry(store Store, log *logrus.Entry) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store: store,
		log:   log,
	}
}

func stripeFor(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % lockStripes)
}

func (r *Registry) keyLock(sessionID string) *sync.Mutex {
	return &r.locks[stripeFor(sessionID)]
}

// Bind validates address against records (case-insensitive) and replaces
// whatever the session had bound before.
func (r *Registry) Bind(sessionID, address string, records []WalletRecord) (WalletRecord, error) {
	if sessionID == "" {
		return WalletRecord{}, apperr.New(apperr.AuthenticationMissing, "No session id on request")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return WalletRecord{}, apperr.New(apperr.InvalidParameter, "address is required")
	}

	var match *WalletRecord
	for i := range records {
		if strings.EqualFold(records[i].Address, address) {
			match = &records[i]
			break
		}
	}
	if match == nil {
		return WalletRecord{}, apperr.New(apperr.WalletRecordNotFound,
			"Wallet %s not found in your wallet records", address)
	}

	l := r.keyLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if err := r.store.Save(sessionID, match.Address); err != nil {
		return WalletRecord{}, apperr.Wrap(apperr.UpstreamError, err, "Failed to persist wallet selection")
	}
	r.bindings.Store(sessionID, match.Address)

	if r.log != nil {
		r.log.WithFields(logrus.Fields{"session_id": sessionID, "wallet": match.Address}).Info("wallet bound to session")
	}
	return *match, nil
}

// Get returns the bound address, consulting the store on a cache miss.
func (r *Registry) Get(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	if v, ok := r.bindings.Load(sessionID); ok {
		return v.(string), true
	}

	l := r.keyLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if v, ok := r.bindings.Load(sessionID); ok {
		return v.(string), true
	}
	addr, ok, err := r.store.Load(sessionID)
	if err != nil {
		if r.log != nil {
			r.log.WithError(err).WithField("session_id", sessionID).Warn("session store lookup failed")
		}
		return "", false
	}
	if !ok {
		return "", false
	}
	r.bindings.Store(sessionID, addr)
	return addr, true
}

// Require is Get for order-affecting paths.
func (r *Registry) Require(sessionID string) (string, error) {
	addr, ok := r.Get(sessionID)
	if !ok {
		return "", apperr.New(apperr.WalletNotSelected,
			"No wallet selected. Call getUserAddresses, then chooseWallet with one of your addresses.")
	}
	return addr, nil
}
