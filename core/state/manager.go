package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"hublend/storage"
)

// Key namespaces. Every record class owns a distinct prefix so id spaces can
// never collide across modules.
const (
	prefixMarket      = "lend/market/"
	prefixMarketIndex = "lend/markets"
	prefixPosition    = "lend/pos/"
	prefixBalance     = "bank/bal/"
	prefixLock        = "lock/rec/"
	prefixNonce       = "lock/nonce/"
	prefixResLiq      = "res/liq/"
	prefixResDebt     = "res/debt/"
	prefixResWithdraw = "res/withdraw/"
	prefixBatchDone   = "settle/batch/"
	prefixDepositDone = "settle/deposit/"
	prefixIntentDone  = "settle/intent/"
	prefixEvidence    = "settle/evidence/"
	prefixRole        = "gov/role/"
	prefixPause       = "gov/pause/"
	prefixQuota       = "gov/quota/"
)

// Manager is the single persistence surface for every engine. It stores
// RLP-encoded records in a flat key/value database under namespaced keys and
// implements each engine's state interface, so one Manager (or one overlay of
// it) is the whole hub state.
type Manager struct {
	db storage.Database

	mu       sync.RWMutex
	pauseSet map[string]bool
}

// NewManager wraps a database. The pause set is loaded lazily per module.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pauseSet: make(map[string]bool)}
}

func addrKey(prefix string, addr [20]byte) []byte {
	return []byte(prefix + hex.EncodeToString(addr[:]))
}

func idKey(prefix string, id [32]byte) []byte {
	return []byte(prefix + hex.EncodeToString(id[:]))
}

func assetAddrKey(prefix, asset string, addr [20]byte) []byte {
	return []byte(prefix + asset + "/" + hex.EncodeToString(addr[:]))
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", string(key), err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", string(key), err)
	}
	return m.db.Put(key, raw)
}

func (m *Manager) setFlag(key []byte, set bool) error {
	if set {
		return m.db.Put(key, []byte{1})
	}
	return m.db.Delete(key)
}

func (m *Manager) hasFlag(key []byte) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}
