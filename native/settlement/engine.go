package settlement

import (
	"errors"
	"math/big"
	"time"

	"hublend/core/events"
	"hublend/core/types"
	nativecommon "hublend/native/common"
	"hublend/native/lending"
	"hublend/native/lock"
)

var (
	ErrNilState         = errors.New("settlement engine: state not configured")
	ErrNilBatch         = errors.New("settlement engine: nil batch")
	ErrBatchEmpty       = errors.New("settlement engine: batch has no actions")
	ErrBatchOverCap     = errors.New("settlement engine: batch exceeds action capacity")
	ErrBatchDomain      = errors.New("settlement engine: wrong domain pair")
	ErrBatchReplayed    = errors.New("settlement engine: batch already executed")
	ErrRootMismatch     = errors.New("settlement engine: actions root mismatch")
	ErrProofInvalid     = errors.New("settlement engine: proof rejected")
	ErrDepositReplayed  = errors.New("settlement engine: deposit already settled")
	ErrIntentReplayed   = errors.New("settlement engine: intent already settled")
	ErrEvidenceMissing  = errors.New("settlement engine: fill evidence missing")
	ErrEvidenceConsumed = errors.New("settlement engine: fill evidence already consumed")
	ErrEvidenceMismatch = errors.New("settlement engine: fill evidence does not match action")
	ErrEvidenceInvalid  = errors.New("settlement engine: malformed fill evidence")
	ErrLockMismatch     = errors.New("settlement engine: lock does not match action")
	ErrRelayRole        = errors.New("settlement engine: caller lacks relay role")
)

const moduleName = "settlement"

// DefaultRelayQuota bounds how many evidence records one relay identity may
// post per hour.
var DefaultRelayQuota = nativecommon.Quota{MaxRequestsPerEpoch: 600, EpochSeconds: 3600}

// Verifier is the opaque proof capability. Public inputs arrive already
// reduced into the field.
type Verifier interface {
	VerifyProof(proof []byte, publicInputs []*big.Int) bool
}

// EngineState persists the three replay sets, the fill-evidence records, the
// role table and the relay quota counters.
type EngineState interface {
	BatchExecuted(id [32]byte) (bool, error)
	MarkBatchExecuted(id [32]byte) error
	DepositSettled(id [32]byte) (bool, error)
	MarkDepositSettled(id [32]byte) error
	IntentSettled(id [32]byte) (bool, error)
	MarkIntentSettled(id [32]byte) error
	FillEvidenceGet(intentID [32]byte) (*FillEvidence, error)
	FillEvidencePut(ev *FillEvidence) error
	HasRole(role string, addr [20]byte) (bool, error)
	RelayQuota(addr [20]byte) (nativecommon.QuotaNow, error)
	SetRelayQuota(addr [20]byte, q nativecommon.QuotaNow) error
}

// Overlay is a write-buffered view of the full hub state. All writes through
// the three sub-states stay invisible to the base until Commit; Discard drops
// them.
type Overlay interface {
	LedgerState() lending.EngineState
	LockState() lock.EngineState
	SettlementState() EngineState
	Commit() error
	Discard()
}

// OverlayFactory mints a fresh overlay per settled batch.
type OverlayFactory interface {
	SettlementOverlay() (Overlay, error)
}

// Engine is the settlement coordinator. It validates a batch commitment and
// an external proof, then applies the batch's credits and finalizations on an
// overlay so the whole batch lands atomically or not at all.
type Engine struct {
	state    EngineState
	overlays OverlayFactory
	ledger   *lending.Engine
	locks    *lock.Engine
	verifier Verifier

	hubDomain   uint64
	spokeDomain uint64

	quota   nativecommon.Quota
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() int64
}

func NewEngine(hubDomain, spokeDomain uint64) *Engine {
	return &Engine{
		hubDomain:   hubDomain,
		spokeDomain: spokeDomain,
		quota:       DefaultRelayQuota,
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state EngineState)         { e.state = state }
func (e *Engine) SetOverlays(factory OverlayFactory) { e.overlays = factory }
func (e *Engine) SetLedger(ledger *lending.Engine)   { e.ledger = ledger }
func (e *Engine) SetLocks(locks *lock.Engine)        { e.locks = locks }
func (e *Engine) SetVerifier(verifier Verifier)      { e.verifier = verifier }
func (e *Engine) SetRelayQuota(q nativecommon.Quota) { e.quota = q }

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

type settlementEvent struct {
	evt *types.Event
}

func (s settlementEvent) EventType() string {
	if s.evt == nil {
		return ""
	}
	return s.evt.Type
}

func (s settlementEvent) Event() *types.Event { return s.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(settlementEvent{evt: evt})
}

// bufferEmitter captures events raised while applying a batch on the overlay
// so they only reach subscribers once the overlay commits.
type bufferEmitter struct {
	buf []events.Event
}

func (b *bufferEmitter) Emit(evt events.Event) { b.buf = append(b.buf, evt) }

func (b *bufferEmitter) flush(sink events.Emitter) {
	if sink == nil {
		return
	}
	for _, evt := range b.buf {
		sink.Emit(evt)
	}
	b.buf = nil
}

// RecordFillEvidence stores a relay-attested claim about a remote-domain
// fill. It never touches the ledger; the claim only becomes effective when a
// settled batch reproduces it exactly. Re-recording an identical claim for
// the same intent id is a no-op.
func (e *Engine) RecordFillEvidence(caller [20]byte, ev *FillEvidence) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	ok, err := e.state.HasRole(RoleRelay, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRelayRole
	}
	if ev == nil || !ev.IntentType.Valid() || ev.Asset == "" {
		return ErrEvidenceInvalid
	}
	if ev.Amount == nil || ev.Amount.Sign() <= 0 {
		return ErrEvidenceInvalid
	}
	if ev.Fee != nil && ev.Fee.Sign() < 0 {
		return ErrEvidenceInvalid
	}

	prevQuota, err := e.state.RelayQuota(caller)
	if err != nil {
		return err
	}
	nextQuota, err := nativecommon.CheckQuota(e.quota, e.quota.Epoch(e.now()), prevQuota, 1)
	if err != nil {
		return err
	}

	existing, err := e.state.FillEvidenceGet(ev.IntentID)
	if err != nil {
		return err
	}
	if existing != nil {
		if !existing.matches(ev.IntentType, ev.User, ev.Asset, ev.Amount, ev.Fee, ev.Relayer) {
			return ErrEvidenceMismatch
		}
		return nil
	}

	record := ev.Clone()
	record.Consumed = false
	if err := e.state.FillEvidencePut(record); err != nil {
		return err
	}
	if err := e.state.SetRelayQuota(caller, nextQuota); err != nil {
		return err
	}
	e.emit(events.EvidenceRecorded{
		IntentID:   record.IntentID,
		IntentType: record.IntentType.String(),
		Asset:      record.Asset,
		User:       record.User,
		Relayer:    record.Relayer,
		Amount:     record.Amount,
		Fee:        record.Fee,
	}.Event())
	return nil
}

// FillEvidenceFor returns a copy of the stored evidence record, or nil.
func (e *Engine) FillEvidenceFor(intentID [32]byte) (*FillEvidence, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	ev, err := e.state.FillEvidenceGet(intentID)
	if err != nil {
		return nil, err
	}
	return ev.Clone(), nil
}

func (e *Engine) validateBatch(batch *Batch) error {
	if batch == nil {
		return ErrNilBatch
	}
	count := batch.ActionCount()
	if count == 0 {
		return ErrBatchEmpty
	}
	if count > BatchCapacity {
		return ErrBatchOverCap
	}
	if batch.HubDomain != e.hubDomain || batch.SpokeDomain != e.spokeDomain {
		return ErrBatchDomain
	}
	return nil
}

// SettleBatch verifies and applies a settlement batch as one atomic unit:
// replay gate, root recomputation, proof verification, then every action in
// fold order on an overlay that only commits if all of them succeed.
func (e *Engine) SettleBatch(batch *Batch, proof []byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.overlays == nil || e.ledger == nil || e.locks == nil || e.verifier == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.validateBatch(batch); err != nil {
		return err
	}

	executed, err := e.state.BatchExecuted(batch.ID)
	if err != nil {
		return err
	}
	if executed {
		return ErrBatchReplayed
	}

	root := ComputeActionsRoot(batch)
	if batch.ActionsRoot == nil || root.Cmp(batch.ActionsRoot) != 0 {
		return ErrRootMismatch
	}
	if !e.verifier.VerifyProof(proof, PublicInputs(batch, root)) {
		return ErrProofInvalid
	}

	overlay, err := e.overlays.SettlementOverlay()
	if err != nil {
		return err
	}
	buf := &bufferEmitter{}
	if err := e.applyBatch(overlay, buf, batch); err != nil {
		overlay.Discard()
		return err
	}
	if err := overlay.SettlementState().MarkBatchExecuted(batch.ID); err != nil {
		overlay.Discard()
		return err
	}
	if err := overlay.Commit(); err != nil {
		overlay.Discard()
		return err
	}

	buf.flush(e.emitter)
	e.emit(events.BatchSettled{
		BatchID:     batch.ID,
		ActionsRoot: "0x" + root.Text(16),
		Supplies:    len(batch.Supplies),
		Repays:      len(batch.Repays),
		Borrows:     len(batch.Borrows),
		Withdraws:   len(batch.Withdraws),
	}.Event())
	return nil
}

func (e *Engine) applyBatch(overlay Overlay, buf *bufferEmitter, batch *Batch) error {
	ledger := e.ledger.WithState(overlay.LedgerState())
	ledger.SetEmitter(buf)
	locks := e.locks.WithState(overlay.LockState())
	locks.SetEmitter(buf)
	state := overlay.SettlementState()

	for _, action := range batch.Supplies {
		settled, err := state.DepositSettled(action.DepositID)
		if err != nil {
			return err
		}
		if settled {
			return ErrDepositReplayed
		}
		if _, err := ledger.SettlementCreditSupply(action.User, action.Asset, action.Amount); err != nil {
			return err
		}
		if err := state.MarkDepositSettled(action.DepositID); err != nil {
			return err
		}
	}

	for _, action := range batch.Repays {
		settled, err := state.DepositSettled(action.DepositID)
		if err != nil {
			return err
		}
		if settled {
			return ErrDepositReplayed
		}
		if _, err := ledger.SettlementCreditRepay(action.User, action.Asset, action.Amount); err != nil {
			return err
		}
		if err := state.MarkDepositSettled(action.DepositID); err != nil {
			return err
		}
	}

	for _, action := range batch.Borrows {
		if err := e.finalize(state, locks, action.IntentID, lock.IntentBorrow, action.User, action.Asset, action.Amount, action.Fee, action.Relayer); err != nil {
			return err
		}
		if err := ledger.SettlementFinalizeBorrow(action.User, action.Asset, action.Amount, action.Fee, action.Relayer); err != nil {
			return err
		}
		if err := state.MarkIntentSettled(action.IntentID); err != nil {
			return err
		}
	}

	for _, action := range batch.Withdraws {
		if err := e.finalize(state, locks, action.IntentID, lock.IntentWithdraw, action.User, action.Asset, action.Amount, action.Fee, action.Relayer); err != nil {
			return err
		}
		if err := ledger.SettlementFinalizeWithdraw(action.User, action.Asset, action.Amount, action.Fee, action.Relayer); err != nil {
			return err
		}
		if err := state.MarkIntentSettled(action.IntentID); err != nil {
			return err
		}
	}
	return nil
}

// finalize runs the shared gate for borrow and withdraw finalizations: intent
// replay, evidence match, lock match, then lock consumption and evidence
// burn.
func (e *Engine) finalize(state EngineState, locks *lock.Engine, intentID [32]byte, intentType lock.IntentType, user [20]byte, asset string, amount, fee *big.Int, relayer [20]byte) error {
	settled, err := state.IntentSettled(intentID)
	if err != nil {
		return err
	}
	if settled {
		return ErrIntentReplayed
	}

	ev, err := state.FillEvidenceGet(intentID)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrEvidenceMissing
	}
	if ev.Consumed {
		return ErrEvidenceConsumed
	}
	if !ev.matches(intentType, user, asset, amount, fee, relayer) {
		return ErrEvidenceMismatch
	}

	consumed, err := locks.Consume(intentID, relayer)
	if err != nil {
		return err
	}
	if consumed.IntentType != intentType || consumed.User != user || consumed.Asset != asset {
		return ErrLockMismatch
	}
	if consumed.Amount == nil || amount == nil || consumed.Amount.Cmp(amount) != 0 {
		return ErrLockMismatch
	}

	ev.Consumed = true
	return state.FillEvidencePut(ev)
}
