package lock

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// IntentType identifies which ledger capacity a cross-domain intent claims.
type IntentType uint8

const (
	IntentUnknown IntentType = iota
	IntentBorrow
	IntentWithdraw
)

// Valid reports whether the type is one a lock may be created for.
func (t IntentType) Valid() bool {
	return t == IntentBorrow || t == IntentWithdraw
}

func (t IntentType) String() string {
	switch t {
	case IntentBorrow:
		return "BORROW"
	case IntentWithdraw:
		return "WITHDRAW"
	default:
		return "UNKNOWN"
	}
}

// IntentDomainV1 is the signing domain folded into every intent digest.
const IntentDomainV1 = "HUBLEND_INTENT_V1"

// Intent is the signed, structured request authorizing a cross-domain payout.
// Its identifier derives deterministically from the contents, so a retried
// request with the same fields maps onto the same lock record.
type Intent struct {
	IntentType  IntentType
	User        [20]byte
	Asset       string
	Amount      *big.Int
	HubDomain   uint64
	SpokeDomain uint64
	Nonce       uint64
	Deadline    int64
}

type intentPayload struct {
	Domain      string
	IntentType  uint8
	User        [20]byte
	Asset       string
	Amount      *big.Int
	HubDomain   uint64
	SpokeDomain uint64
	Nonce       uint64
	Deadline    uint64
}

// Digest returns the keccak256 hash signed by the user and used as the
// intent identifier.
func (i *Intent) Digest() [32]byte {
	amount := i.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	deadline := i.Deadline
	if deadline < 0 {
		deadline = 0
	}
	encoded, err := rlp.EncodeToBytes(intentPayload{
		Domain:      IntentDomainV1,
		IntentType:  uint8(i.IntentType),
		User:        i.User,
		Asset:       i.Asset,
		Amount:      amount,
		HubDomain:   i.HubDomain,
		SpokeDomain: i.SpokeDomain,
		Nonce:       i.Nonce,
		Deadline:    uint64(deadline),
	})
	if err != nil {
		panic(err)
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out
}

// ID is the lock identifier, equal to the intent digest.
func (i *Intent) ID() [32]byte { return i.Digest() }

// LockStatus enumerates the lifecycle states of a reservation.
type LockStatus uint8

const (
	LockNone LockStatus = iota
	LockActive
	LockConsumed
	LockCancelled
)

// Terminal reports whether the status can never change again.
func (s LockStatus) Terminal() bool {
	return s == LockConsumed || s == LockCancelled
}

func (s LockStatus) String() string {
	switch s {
	case LockNone:
		return "NONE"
	case LockActive:
		return "ACTIVE"
	case LockConsumed:
		return "CONSUMED"
	case LockCancelled:
		return "CANCELLED"
	default:
		return "INVALID"
	}
}

// Lock is the persisted reservation record. Terminal records are retained
// forever so a consumed or cancelled intent id can never be locked again.
type Lock struct {
	IntentID      [32]byte
	User          [20]byte
	IntentType    IntentType
	Asset         string
	Amount        *big.Int
	Relayer       [20]byte
	LockTimestamp int64
	Expiry        int64
	Status        LockStatus
}

// Clone returns a deep copy so callers can mutate safely.
func (l *Lock) Clone() *Lock {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
