package state

import (
	"errors"
	"math/big"

	nativecommon "hublend/native/common"
	"hublend/native/lock"
	"hublend/native/settlement"
)

// Role names recognised by the authorization table.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleRelay = settlement.RoleRelay
)

// BatchExecuted reports whether a batch id has already been settled.
func (m *Manager) BatchExecuted(id [32]byte) (bool, error) {
	return m.hasFlag(idKey(prefixBatchDone, id))
}

func (m *Manager) MarkBatchExecuted(id [32]byte) error {
	return m.setFlag(idKey(prefixBatchDone, id), true)
}

// DepositSettled reports whether a spoke deposit id has been credited.
func (m *Manager) DepositSettled(id [32]byte) (bool, error) {
	return m.hasFlag(idKey(prefixDepositDone, id))
}

func (m *Manager) MarkDepositSettled(id [32]byte) error {
	return m.setFlag(idKey(prefixDepositDone, id), true)
}

// IntentSettled reports whether an intent id has been finalized.
func (m *Manager) IntentSettled(id [32]byte) (bool, error) {
	return m.hasFlag(idKey(prefixIntentDone, id))
}

func (m *Manager) MarkIntentSettled(id [32]byte) error {
	return m.setFlag(idKey(prefixIntentDone, id), true)
}

type storedEvidence struct {
	IntentID   [32]byte
	IntentType uint8
	User       [20]byte
	Asset      string
	Amount     *big.Int
	Fee        *big.Int
	Relayer    [20]byte
	Consumed   bool
}

// FillEvidenceGet returns the stored fill-evidence record, or nil.
func (m *Manager) FillEvidenceGet(intentID [32]byte) (*settlement.FillEvidence, error) {
	var rec storedEvidence
	ok, err := m.getRLP(idKey(prefixEvidence, intentID), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &settlement.FillEvidence{
		IntentID:   rec.IntentID,
		IntentType: lock.IntentType(rec.IntentType),
		User:       rec.User,
		Asset:      rec.Asset,
		Amount:     rec.Amount,
		Fee:        rec.Fee,
		Relayer:    rec.Relayer,
		Consumed:   rec.Consumed,
	}, nil
}

func (m *Manager) FillEvidencePut(ev *settlement.FillEvidence) error {
	if ev == nil {
		return errors.New("state: nil fill evidence")
	}
	rec := storedEvidence{
		IntentID:   ev.IntentID,
		IntentType: uint8(ev.IntentType),
		User:       ev.User,
		Asset:      ev.Asset,
		Amount:     ev.Amount,
		Fee:        ev.Fee,
		Relayer:    ev.Relayer,
		Consumed:   ev.Consumed,
	}
	return m.putRLP(idKey(prefixEvidence, ev.IntentID), rec)
}

// HasRole reports whether the address holds the named role.
func (m *Manager) HasRole(role string, addr [20]byte) (bool, error) {
	return m.hasFlag(addrKey(prefixRole+role+"/", addr))
}

// GrantRole sets the role flag for an address.
func (m *Manager) GrantRole(role string, addr [20]byte) error {
	return m.setFlag(addrKey(prefixRole+role+"/", addr), true)
}

// RevokeRole clears the role flag for an address.
func (m *Manager) RevokeRole(role string, addr [20]byte) error {
	return m.setFlag(addrKey(prefixRole+role+"/", addr), false)
}

type storedQuota struct {
	ReqCount uint32
	EpochID  uint64
}

// RelayQuota returns the evidence-quota counters for a relay identity.
func (m *Manager) RelayQuota(addr [20]byte) (nativecommon.QuotaNow, error) {
	var rec storedQuota
	if _, err := m.getRLP(addrKey(prefixQuota, addr), &rec); err != nil {
		return nativecommon.QuotaNow{}, err
	}
	return nativecommon.QuotaNow{ReqCount: rec.ReqCount, EpochID: rec.EpochID}, nil
}

func (m *Manager) SetRelayQuota(addr [20]byte, q nativecommon.QuotaNow) error {
	return m.putRLP(addrKey(prefixQuota, addr), storedQuota{ReqCount: q.ReqCount, EpochID: q.EpochID})
}
