package lock

import (
	"errors"
	"math/big"
	"time"

	"hublend/core/events"
	"hublend/core/types"
	nativecommon "hublend/native/common"
)

var (
	ErrNilState        = errors.New("lock engine: state not configured")
	ErrLockExists      = errors.New("lock engine: intent id already locked")
	ErrLockNotFound    = errors.New("lock engine: lock not found")
	ErrLockNotActive   = errors.New("lock engine: lock not active")
	ErrLockNotExpired  = errors.New("lock engine: lock not expired")
	ErrRelayerMismatch = errors.New("lock engine: relayer does not match lock")
	ErrLiquidityShort  = errors.New("lock engine: insufficient unreserved liquidity")
)

const moduleName = "lock"

// DefaultLockWindow bounds how long a relayer has to produce the remote fill
// before anyone may cancel the reservation.
const DefaultLockWindow = 30 * time.Minute

// EngineState persists lock records and the three reservation maps.
type EngineState interface {
	LockGet(id [32]byte) (*Lock, error)
	LockPut(lock *Lock) error
	ReservedLiquidity(asset string) (*big.Int, error)
	SetReservedLiquidity(asset string, amount *big.Int) error
	ReservedDebt(user [20]byte, asset string) (*big.Int, error)
	SetReservedDebt(user [20]byte, asset string, amount *big.Int) error
	ReservedWithdraw(user [20]byte, asset string) (*big.Int, error)
	SetReservedWithdraw(user [20]byte, asset string, amount *big.Int) error
}

// RiskChecker evaluates post-reservation portfolio health. The reservation is
// already in place when these run, so a zero-margin check suffices.
type RiskChecker interface {
	AssetEnabled(asset string) error
	CheckBorrowHealth(user [20]byte) error
	CheckWithdrawHealth(user [20]byte) error
}

// LiquidityView reports the ledger's unreserved material balance.
type LiquidityView interface {
	AvailableLiquidity(asset string) (*big.Int, error)
}

// Engine is the reservation state machine. A valid intent becomes an ACTIVE
// lock bound to one relayer; the lock ends exactly once, by cancel after
// expiry or by consume during settlement.
type Engine struct {
	state      EngineState
	authority  *Authority
	risk       RiskChecker
	liquidity  LiquidityView
	pauses     nativecommon.PauseView
	emitter    events.Emitter
	lockWindow time.Duration
	nowFn      func() int64
}

func NewEngine(authority *Authority) *Engine {
	return &Engine{
		authority:  authority,
		emitter:    events.NoopEmitter{},
		lockWindow: DefaultLockWindow,
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state EngineState) { e.state = state }

// WithState returns a shallow copy bound to a different state backend, used by
// the settlement coordinator to consume locks inside an overlay.
func (e *Engine) WithState(state EngineState) *Engine {
	clone := *e
	clone.state = state
	if e.authority != nil {
		if nonceState, ok := state.(NonceState); ok {
			clone.authority = e.authority.WithState(nonceState)
		}
	}
	return &clone
}

func (e *Engine) SetRiskChecker(risk RiskChecker)     { e.risk = risk }
func (e *Engine) SetLiquidityView(view LiquidityView) { e.liquidity = view }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLockWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultLockWindow
	}
	e.lockWindow = window
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

type lockEvent struct {
	evt *types.Event
}

func (l lockEvent) EventType() string {
	if l.evt == nil {
		return ""
	}
	return l.evt.Type
}

func (l lockEvent) Event() *types.Event { return l.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(lockEvent{evt: evt})
}

func addReserved(current, amount *big.Int) *big.Int {
	if current == nil {
		current = big.NewInt(0)
	}
	return new(big.Int).Add(current, amount)
}

func subReserved(current, amount *big.Int) *big.Int {
	if current == nil {
		current = big.NewInt(0)
	}
	next := new(big.Int).Sub(current, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	return next
}

func (e *Engine) reserve(lock *Lock) error {
	liq, err := e.state.ReservedLiquidity(lock.Asset)
	if err != nil {
		return err
	}
	if err := e.state.SetReservedLiquidity(lock.Asset, addReserved(liq, lock.Amount)); err != nil {
		return err
	}
	switch lock.IntentType {
	case IntentBorrow:
		debt, err := e.state.ReservedDebt(lock.User, lock.Asset)
		if err != nil {
			return err
		}
		return e.state.SetReservedDebt(lock.User, lock.Asset, addReserved(debt, lock.Amount))
	case IntentWithdraw:
		withdraw, err := e.state.ReservedWithdraw(lock.User, lock.Asset)
		if err != nil {
			return err
		}
		return e.state.SetReservedWithdraw(lock.User, lock.Asset, addReserved(withdraw, lock.Amount))
	}
	return ErrIntentInvalid
}

func (e *Engine) release(lock *Lock) error {
	liq, err := e.state.ReservedLiquidity(lock.Asset)
	if err != nil {
		return err
	}
	if err := e.state.SetReservedLiquidity(lock.Asset, subReserved(liq, lock.Amount)); err != nil {
		return err
	}
	switch lock.IntentType {
	case IntentBorrow:
		debt, err := e.state.ReservedDebt(lock.User, lock.Asset)
		if err != nil {
			return err
		}
		return e.state.SetReservedDebt(lock.User, lock.Asset, subReserved(debt, lock.Amount))
	case IntentWithdraw:
		withdraw, err := e.state.ReservedWithdraw(lock.User, lock.Asset)
		if err != nil {
			return err
		}
		return e.state.SetReservedWithdraw(lock.User, lock.Asset, subReserved(withdraw, lock.Amount))
	}
	return ErrIntentInvalid
}

// Lock validates a signed intent and reserves ledger capacity for it. The
// reservation is tentative until the health check passes; on failure it is
// rolled back so a rejected lock leaves no trace.
func (e *Engine) Lock(intent *Intent, sig []byte, relayer [20]byte) (*Lock, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.authority.Validate(intent, sig, now); err != nil {
		return nil, err
	}
	if e.risk != nil {
		if err := e.risk.AssetEnabled(intent.Asset); err != nil {
			return nil, err
		}
	}

	id := intent.ID()
	existing, err := e.state.LockGet(id)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != LockNone {
		return nil, ErrLockExists
	}

	// Liquidity gate before the reservation is placed: the unreserved
	// material balance must still cover the payout both lock types claim.
	if e.liquidity != nil {
		available, err := e.liquidity.AvailableLiquidity(intent.Asset)
		if err != nil {
			return nil, err
		}
		if available.Cmp(intent.Amount) < 0 {
			return nil, ErrLiquidityShort
		}
	}

	lock := &Lock{
		IntentID:      id,
		User:          intent.User,
		IntentType:    intent.IntentType,
		Asset:         intent.Asset,
		Amount:        new(big.Int).Set(intent.Amount),
		Relayer:       relayer,
		LockTimestamp: now,
		Expiry:        now + int64(e.lockWindow/time.Second),
		Status:        LockActive,
	}

	if err := e.reserve(lock); err != nil {
		return nil, err
	}

	if e.risk != nil {
		var healthErr error
		switch intent.IntentType {
		case IntentBorrow:
			healthErr = e.risk.CheckBorrowHealth(intent.User)
		case IntentWithdraw:
			healthErr = e.risk.CheckWithdrawHealth(intent.User)
		}
		if healthErr != nil {
			if rollbackErr := e.release(lock); rollbackErr != nil {
				return nil, rollbackErr
			}
			return nil, healthErr
		}
	}

	if err := e.authority.Consume(intent); err != nil {
		if rollbackErr := e.release(lock); rollbackErr != nil {
			return nil, rollbackErr
		}
		return nil, err
	}
	if err := e.state.LockPut(lock); err != nil {
		return nil, err
	}
	e.emit(events.LockCreated{
		IntentID:   lock.IntentID,
		IntentType: lock.IntentType.String(),
		Asset:      lock.Asset,
		User:       lock.User,
		Relayer:    lock.Relayer,
		Amount:     lock.Amount,
		Expiry:     lock.Expiry,
	}.Event())
	return lock.Clone(), nil
}

// Cancel releases an expired ACTIVE lock. Anyone may call it; lazy expiry is
// the system's only timeout mechanism.
func (e *Engine) Cancel(id [32]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	lock, err := e.state.LockGet(id)
	if err != nil {
		return err
	}
	if lock == nil {
		return ErrLockNotFound
	}
	if lock.Status != LockActive {
		return ErrLockNotActive
	}
	if e.now() <= lock.Expiry {
		return ErrLockNotExpired
	}
	if err := e.release(lock); err != nil {
		return err
	}
	lock.Status = LockCancelled
	if err := e.state.LockPut(lock); err != nil {
		return err
	}
	e.emit(events.LockCancelled{
		IntentID: lock.IntentID,
		Asset:    lock.Asset,
		User:     lock.User,
		Amount:   lock.Amount,
	}.Event())
	return nil
}

// Consume transitions an ACTIVE lock bound to the expected relayer into the
// CONSUMED terminal state and releases the reservation. Only the settlement
// coordinator invokes it, while finalizing the matching remote fill.
func (e *Engine) Consume(id [32]byte, expectedRelayer [20]byte) (*Lock, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	lock, err := e.state.LockGet(id)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, ErrLockNotFound
	}
	if lock.Status != LockActive {
		return nil, ErrLockNotActive
	}
	if lock.Relayer != expectedRelayer {
		return nil, ErrRelayerMismatch
	}
	if err := e.release(lock); err != nil {
		return nil, err
	}
	lock.Status = LockConsumed
	if err := e.state.LockPut(lock); err != nil {
		return nil, err
	}
	e.emit(events.LockConsumed{
		IntentID: lock.IntentID,
		Asset:    lock.Asset,
		User:     lock.User,
		Relayer:  lock.Relayer,
		Amount:   lock.Amount,
	}.Event())
	return lock.Clone(), nil
}

// Get returns a copy of the stored lock record, or nil when none exists.
func (e *Engine) Get(id [32]byte) (*Lock, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	lock, err := e.state.LockGet(id)
	if err != nil {
		return nil, err
	}
	return lock.Clone(), nil
}
