package events

import (
	"math/big"
	"strconv"

	"hublend/core/types"
)

const (
	TypeLockCreated      = "lock.created"
	TypeLockCancelled    = "lock.cancelled"
	TypeLockConsumed     = "lock.consumed"
	TypeEvidenceRecorded = "settlement.evidence_recorded"
	TypeBatchSettled     = "settlement.batch_settled"
)

type LockCreated struct {
	IntentID   [32]byte
	IntentType string
	Asset      string
	User       [20]byte
	Relayer    [20]byte
	Amount     *big.Int
	Expiry     int64
}

func (LockCreated) EventType() string { return TypeLockCreated }

func (e LockCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeLockCreated,
		Attributes: map[string]string{
			"intentId":   idAttr(e.IntentID),
			"intentType": e.IntentType,
			"asset":      e.Asset,
			"user":       addrAttr(e.User),
			"relayer":    addrAttr(e.Relayer),
			"amount":     bigAttr(e.Amount),
			"expiry":     strconv.FormatInt(e.Expiry, 10),
		},
	}
}

type LockCancelled struct {
	IntentID [32]byte
	Asset    string
	User     [20]byte
	Amount   *big.Int
}

func (LockCancelled) EventType() string { return TypeLockCancelled }

func (e LockCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeLockCancelled,
		Attributes: map[string]string{
			"intentId": idAttr(e.IntentID),
			"asset":    e.Asset,
			"user":     addrAttr(e.User),
			"amount":   bigAttr(e.Amount),
		},
	}
}

type LockConsumed struct {
	IntentID [32]byte
	Asset    string
	User     [20]byte
	Relayer  [20]byte
	Amount   *big.Int
}

func (LockConsumed) EventType() string { return TypeLockConsumed }

func (e LockConsumed) Event() *types.Event {
	return &types.Event{
		Type: TypeLockConsumed,
		Attributes: map[string]string{
			"intentId": idAttr(e.IntentID),
			"asset":    e.Asset,
			"user":     addrAttr(e.User),
			"relayer":  addrAttr(e.Relayer),
			"amount":   bigAttr(e.Amount),
		},
	}
}

type EvidenceRecorded struct {
	IntentID   [32]byte
	IntentType string
	Asset      string
	User       [20]byte
	Relayer    [20]byte
	Amount     *big.Int
	Fee        *big.Int
}

func (EvidenceRecorded) EventType() string { return TypeEvidenceRecorded }

func (e EvidenceRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeEvidenceRecorded,
		Attributes: map[string]string{
			"intentId":   idAttr(e.IntentID),
			"intentType": e.IntentType,
			"asset":      e.Asset,
			"user":       addrAttr(e.User),
			"relayer":    addrAttr(e.Relayer),
			"amount":     bigAttr(e.Amount),
			"fee":        bigAttr(e.Fee),
		},
	}
}

type BatchSettled struct {
	BatchID     [32]byte
	ActionsRoot string
	Supplies    int
	Repays      int
	Borrows     int
	Withdraws   int
}

func (BatchSettled) EventType() string { return TypeBatchSettled }

func (e BatchSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeBatchSettled,
		Attributes: map[string]string{
			"batchId":     idAttr(e.BatchID),
			"actionsRoot": e.ActionsRoot,
			"supplies":    strconv.Itoa(e.Supplies),
			"repays":      strconv.Itoa(e.Repays),
			"borrows":     strconv.Itoa(e.Borrows),
			"withdraws":   strconv.Itoa(e.Withdraws),
		},
	}
}
