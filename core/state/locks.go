package state

import (
	"errors"
	"math/big"

	"hublend/native/lock"
)

// storedLock mirrors lock.Lock with RLP-encodable timestamp fields.
type storedLock struct {
	IntentID      [32]byte
	User          [20]byte
	IntentType    uint8
	Asset         string
	Amount        *big.Int
	Relayer       [20]byte
	LockTimestamp uint64
	Expiry        uint64
	Status        uint8
}

// LockGet returns the stored lock record for an intent id, or nil.
func (m *Manager) LockGet(id [32]byte) (*lock.Lock, error) {
	var rec storedLock
	ok, err := m.getRLP(idKey(prefixLock, id), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lock.Lock{
		IntentID:      rec.IntentID,
		User:          rec.User,
		IntentType:    lock.IntentType(rec.IntentType),
		Asset:         rec.Asset,
		Amount:        rec.Amount,
		Relayer:       rec.Relayer,
		LockTimestamp: int64(rec.LockTimestamp),
		Expiry:        int64(rec.Expiry),
		Status:        lock.LockStatus(rec.Status),
	}, nil
}

// LockPut persists a lock record. Records are never deleted; terminal states
// double as permanent replay protection for the intent id.
func (m *Manager) LockPut(l *lock.Lock) error {
	if l == nil {
		return errors.New("state: nil lock")
	}
	rec := storedLock{
		IntentID:      l.IntentID,
		User:          l.User,
		IntentType:    uint8(l.IntentType),
		Asset:         l.Asset,
		Amount:        l.Amount,
		Relayer:       l.Relayer,
		LockTimestamp: uint64(l.LockTimestamp),
		Expiry:        uint64(l.Expiry),
		Status:        uint8(l.Status),
	}
	return m.putRLP(idKey(prefixLock, l.IntentID), rec)
}

// IntentNonce returns the user's nonce high-water mark; zero when unset.
func (m *Manager) IntentNonce(user [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.getRLP(addrKey(prefixNonce, user), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (m *Manager) SetIntentNonce(user [20]byte, nonce uint64) error {
	return m.putRLP(addrKey(prefixNonce, user), nonce)
}

func (m *Manager) reservedAmount(key []byte) (*big.Int, error) {
	var amount *big.Int
	ok, err := m.getRLP(key, &amount)
	if err != nil {
		return nil, err
	}
	if !ok || amount == nil {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) setReservedAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return errors.New("state: reservation must not be negative")
	}
	if amount.Sign() == 0 {
		return m.db.Delete(key)
	}
	return m.putRLP(key, amount)
}

// ReservedLiquidity is the per-asset liquidity claimed by active locks.
func (m *Manager) ReservedLiquidity(asset string) (*big.Int, error) {
	return m.reservedAmount([]byte(prefixResLiq + asset))
}

func (m *Manager) SetReservedLiquidity(asset string, amount *big.Int) error {
	return m.setReservedAmount([]byte(prefixResLiq+asset), amount)
}

// ReservedDebt is the borrow headroom a user's active locks already claim.
func (m *Manager) ReservedDebt(user [20]byte, asset string) (*big.Int, error) {
	return m.reservedAmount(assetAddrKey(prefixResDebt, asset, user))
}

func (m *Manager) SetReservedDebt(user [20]byte, asset string, amount *big.Int) error {
	return m.setReservedAmount(assetAddrKey(prefixResDebt, asset, user), amount)
}

// ReservedWithdraw is the collateral a user's active locks have pinned.
func (m *Manager) ReservedWithdraw(user [20]byte, asset string) (*big.Int, error) {
	return m.reservedAmount(assetAddrKey(prefixResWithdraw, asset, user))
}

func (m *Manager) SetReservedWithdraw(user [20]byte, asset string, amount *big.Int) error {
	return m.setReservedAmount(assetAddrKey(prefixResWithdraw, asset, user), amount)
}
