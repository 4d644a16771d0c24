package lock

import (
	"errors"

	"hublend/crypto"
)

var (
	ErrIntentInvalid   = errors.New("intent authority: malformed intent")
	ErrIntentExpired   = errors.New("intent authority: deadline passed")
	ErrIntentDomain    = errors.New("intent authority: wrong domain pair")
	ErrIntentSignature = errors.New("intent authority: signature does not match user")
	ErrNonceReused     = errors.New("intent authority: nonce already used")
)

// NonceState persists the per-user intent nonce high-water mark.
type NonceState interface {
	IntentNonce(user [20]byte) (uint64, error)
	SetIntentNonce(user [20]byte, nonce uint64) error
}

// Authority validates signed intents before a lock may be created: structural
// checks, domain binding, a recoverable signature by the intent's user, and
// per-user nonce replay protection via a monotonic high-water mark.
type Authority struct {
	state       NonceState
	hubDomain   uint64
	spokeDomain uint64
}

func NewAuthority(state NonceState, hubDomain, spokeDomain uint64) *Authority {
	return &Authority{state: state, hubDomain: hubDomain, spokeDomain: spokeDomain}
}

// WithState returns a copy of the authority bound to a different nonce store.
func (a *Authority) WithState(state NonceState) *Authority {
	clone := *a
	clone.state = state
	return &clone
}

// Validate checks the intent and signature without consuming the nonce.
func (a *Authority) Validate(intent *Intent, sig []byte, now int64) error {
	if a == nil || a.state == nil {
		return ErrIntentInvalid
	}
	if intent == nil || !intent.IntentType.Valid() || intent.Asset == "" {
		return ErrIntentInvalid
	}
	if intent.Amount == nil || intent.Amount.Sign() <= 0 {
		return ErrIntentInvalid
	}
	if intent.HubDomain != a.hubDomain || intent.SpokeDomain != a.spokeDomain {
		return ErrIntentDomain
	}
	if intent.Deadline <= now {
		return ErrIntentExpired
	}
	digest := intent.Digest()
	signer, err := crypto.RecoverAddress(digest[:], sig)
	if err != nil {
		return ErrIntentSignature
	}
	if signer != intent.User {
		return ErrIntentSignature
	}
	high, err := a.state.IntentNonce(intent.User)
	if err != nil {
		return err
	}
	if intent.Nonce <= high {
		return ErrNonceReused
	}
	return nil
}

// Consume records the intent nonce as used. Callers must have validated the
// intent first; Consume is what makes a retried signature inert.
func (a *Authority) Consume(intent *Intent) error {
	if a == nil || a.state == nil {
		return ErrIntentInvalid
	}
	return a.state.SetIntentNonce(intent.User, intent.Nonce)
}
