package state

import (
	"errors"
	"math/big"
	"testing"

	"hublend/crypto"
	"hublend/native/lending"
	"hublend/native/lock"
	"hublend/native/settlement"
)

// These tests run the full engine stack against one Manager over a MemDB, the
// same wiring the daemon uses, so overlay atomicity is exercised end to end.

const (
	hubDomain   = 1
	spokeDomain = 7
)

var (
	vault    = [20]byte{0xff, 0x01}
	supplier = [20]byte{0x11}
	relayer  = [20]byte{0x0a}
)

type stack struct {
	manager *Manager
	ledger  *lending.Engine
	locks   *lock.Engine
	settle  *settlement.Engine
	now     int64
}

func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{manager: newTestManager(), now: 1_700_000_000}

	s.ledger = lending.NewEngine(vault)
	s.ledger.SetState(s.manager)
	s.ledger.SetNowFunc(func() int64 { return s.now })
	if err := s.ledger.InitializeMarket("USDX"); err != nil {
		t.Fatalf("initialize market: %v", err)
	}
	if err := s.manager.SetBalance(supplier, "USDX", big.NewInt(100_000)); err != nil {
		t.Fatalf("fund supplier: %v", err)
	}
	if _, err := s.ledger.Supply(supplier, "USDX", big.NewInt(100_000)); err != nil {
		t.Fatalf("seed supply: %v", err)
	}

	s.locks = lock.NewEngine(lock.NewAuthority(s.manager, hubDomain, spokeDomain))
	s.locks.SetState(s.manager)
	s.locks.SetLiquidityView(s.ledger)
	s.locks.SetNowFunc(func() int64 { return s.now })

	s.settle = settlement.NewEngine(hubDomain, spokeDomain)
	s.settle.SetState(s.manager)
	s.settle.SetOverlays(s.manager)
	s.settle.SetLedger(s.ledger)
	s.settle.SetLocks(s.locks)
	s.settle.SetVerifier(settlement.CommitmentVerifier{})
	s.settle.SetNowFunc(func() int64 { return s.now })
	return s
}

func (s *stack) lockBorrow(t *testing.T, amount int64) (*lock.Lock, [20]byte) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	user := key.PubKey().Address().Raw()
	intent := &lock.Intent{
		IntentType:  lock.IntentBorrow,
		User:        user,
		Asset:       "USDX",
		Amount:      big.NewInt(amount),
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Nonce:       1,
		Deadline:    s.now + 600,
	}
	digest := intent.Digest()
	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("sign intent: %v", err)
	}
	created, err := s.locks.Lock(intent, sig, relayer)
	if err != nil {
		t.Fatalf("lock intent: %v", err)
	}
	return created, user
}

func seal(batch *settlement.Batch) (*settlement.Batch, []byte) {
	batch.ActionsRoot = settlement.ComputeActionsRoot(batch)
	proof := settlement.CommitmentProof(settlement.PublicInputs(batch, batch.ActionsRoot))
	return batch, proof
}

func TestSettleBorrowFinalizeEndToEnd(t *testing.T) {
	s := newStack(t)
	created, user := s.lockBorrow(t, 500)

	ev := &settlement.FillEvidence{
		IntentID:   created.IntentID,
		IntentType: lock.IntentBorrow,
		User:       user,
		Asset:      "USDX",
		Amount:     big.NewInt(500),
		Fee:        big.NewInt(5),
		Relayer:    relayer,
	}
	if err := s.manager.FillEvidencePut(ev); err != nil {
		t.Fatalf("seed evidence: %v", err)
	}

	batch, proof := seal(&settlement.Batch{
		ID:          [32]byte{0xb1},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Borrows: []settlement.BorrowFinalize{
			{IntentID: created.IntentID, User: user, Asset: "USDX", Amount: big.NewInt(500), Fee: big.NewInt(5), Relayer: relayer},
		},
	})
	if err := s.settle.SettleBatch(batch, proof); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if bal, _ := s.manager.Balance(relayer, "USDX"); bal.Cmp(big.NewInt(505)) != 0 {
		t.Fatalf("relayer reimbursement %s, want 505", bal)
	}
	pos, _ := s.manager.GetPosition("USDX", user)
	if pos == nil || pos.DebtShares.Cmp(big.NewInt(505)) != 0 {
		t.Fatalf("debt not minted: %+v", pos)
	}
	stored, _ := s.manager.LockGet(created.IntentID)
	if stored.Status != lock.LockConsumed {
		t.Fatalf("lock status %s, want CONSUMED", stored.Status)
	}
	if reserved, _ := s.manager.ReservedLiquidity("USDX"); reserved.Sign() != 0 {
		t.Fatalf("reservation not released: %s", reserved)
	}
	if reserved, _ := s.manager.ReservedDebt(user, "USDX"); reserved.Sign() != 0 {
		t.Fatalf("debt reservation not released: %s", reserved)
	}
	burned, _ := s.manager.FillEvidenceGet(created.IntentID)
	if !burned.Consumed {
		t.Fatal("evidence not consumed")
	}
}

func TestRejectedBatchLeavesNoTrace(t *testing.T) {
	s := newStack(t)
	created, user := s.lockBorrow(t, 500)

	// Cancel the lock after expiry; the batch below still references it.
	s.now = created.Expiry + 1
	if err := s.locks.Cancel(created.IntentID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ev := &settlement.FillEvidence{
		IntentID:   created.IntentID,
		IntentType: lock.IntentBorrow,
		User:       user,
		Asset:      "USDX",
		Amount:     big.NewInt(500),
		Relayer:    relayer,
	}
	if err := s.manager.FillEvidencePut(ev); err != nil {
		t.Fatalf("seed evidence: %v", err)
	}

	depositor := [20]byte{0x22}
	vaultBefore, _ := s.manager.Balance(vault, "USDX")

	// The supply credit precedes the doomed finalize in fold order; if the
	// batch were applied piecewise the credit would survive.
	batch, proof := seal(&settlement.Batch{
		ID:          [32]byte{0xb1},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Supplies: []settlement.SupplyCredit{
			{DepositID: [32]byte{0xd1}, User: depositor, Asset: "USDX", Amount: big.NewInt(1_000)},
		},
		Borrows: []settlement.BorrowFinalize{
			{IntentID: created.IntentID, User: user, Asset: "USDX", Amount: big.NewInt(500), Relayer: relayer},
		},
	})
	if err := s.settle.SettleBatch(batch, proof); !errors.Is(err, lock.ErrLockNotActive) {
		t.Fatalf("expected ErrLockNotActive, got %v", err)
	}

	if pos, _ := s.manager.GetPosition("USDX", depositor); pos != nil {
		t.Fatalf("rejected batch credited a deposit: %+v", pos)
	}
	if done, _ := s.manager.DepositSettled([32]byte{0xd1}); done {
		t.Fatal("rejected batch marked a deposit settled")
	}
	if done, _ := s.manager.BatchExecuted(batch.ID); done {
		t.Fatal("rejected batch marked executed")
	}
	if bal, _ := s.manager.Balance(vault, "USDX"); bal.Cmp(vaultBefore) != 0 {
		t.Fatalf("vault balance moved on rejected batch: %s -> %s", vaultBefore, bal)
	}
	if bal, _ := s.manager.Balance(relayer, "USDX"); bal.Sign() != 0 {
		t.Fatalf("relayer paid on rejected batch: %s", bal)
	}
}

func TestDoubleSettleDoesNotDoubleMint(t *testing.T) {
	s := newStack(t)
	depositor := [20]byte{0x22}

	batch, proof := seal(&settlement.Batch{
		ID:          [32]byte{0xb1},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Supplies: []settlement.SupplyCredit{
			{DepositID: [32]byte{0xd1}, User: depositor, Asset: "USDX", Amount: big.NewInt(1_000)},
		},
	})
	if err := s.settle.SettleBatch(batch, proof); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if err := s.settle.SettleBatch(batch, proof); !errors.Is(err, settlement.ErrBatchReplayed) {
		t.Fatalf("expected ErrBatchReplayed, got %v", err)
	}

	pos, _ := s.manager.GetPosition("USDX", depositor)
	if pos.SupplyShares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("double mint: %s shares", pos.SupplyShares)
	}

	// Same deposit under a fresh batch id is caught by the deposit set.
	rebatch, reproof := seal(&settlement.Batch{
		ID:          [32]byte{0xb2},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Supplies: []settlement.SupplyCredit{
			{DepositID: [32]byte{0xd1}, User: depositor, Asset: "USDX", Amount: big.NewInt(1_000)},
		},
	})
	if err := s.settle.SettleBatch(rebatch, reproof); !errors.Is(err, settlement.ErrDepositReplayed) {
		t.Fatalf("expected ErrDepositReplayed, got %v", err)
	}
	pos, _ = s.manager.GetPosition("USDX", depositor)
	if pos.SupplyShares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("deposit replayed into shares: %s", pos.SupplyShares)
	}
}

func TestSettleFinalizeFeeRespectsOtherLockReservations(t *testing.T) {
	s := newStack(t)

	// Two locks together reserve the entire 100k vault. Settling the first
	// with a 10k fee would hand out capacity the second lock still claims.
	lockA, userA := s.lockBorrow(t, 60_000)
	lockB, userB := s.lockBorrow(t, 40_000)

	evA := &settlement.FillEvidence{
		IntentID:   lockA.IntentID,
		IntentType: lock.IntentBorrow,
		User:       userA,
		Asset:      "USDX",
		Amount:     big.NewInt(60_000),
		Fee:        big.NewInt(10_000),
		Relayer:    relayer,
	}
	if err := s.manager.FillEvidencePut(evA); err != nil {
		t.Fatalf("seed evidence: %v", err)
	}

	batch, proof := seal(&settlement.Batch{
		ID:          [32]byte{0xb1},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Borrows: []settlement.BorrowFinalize{
			{IntentID: lockA.IntentID, User: userA, Asset: "USDX", Amount: big.NewInt(60_000), Fee: big.NewInt(10_000), Relayer: relayer},
		},
	})
	if err := s.settle.SettleBatch(batch, proof); !errors.Is(err, lending.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	stored, _ := s.manager.LockGet(lockA.IntentID)
	if stored.Status != lock.LockActive {
		t.Fatalf("lock A no longer active after rejected batch: %s", stored.Status)
	}
	if reserved, _ := s.manager.ReservedLiquidity("USDX"); reserved.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("reservation disturbed by rejected batch: %s", reserved)
	}

	// Without the fee both locks settle in full and the vault drains to zero,
	// never dipping into the other lock's backing along the way.
	evA.Fee = nil
	if err := s.manager.FillEvidencePut(evA); err != nil {
		t.Fatalf("reseed evidence: %v", err)
	}
	evB := &settlement.FillEvidence{
		IntentID:   lockB.IntentID,
		IntentType: lock.IntentBorrow,
		User:       userB,
		Asset:      "USDX",
		Amount:     big.NewInt(40_000),
		Relayer:    relayer,
	}
	if err := s.manager.FillEvidencePut(evB); err != nil {
		t.Fatalf("seed evidence: %v", err)
	}

	batchA, proofA := seal(&settlement.Batch{
		ID:          [32]byte{0xb2},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Borrows: []settlement.BorrowFinalize{
			{IntentID: lockA.IntentID, User: userA, Asset: "USDX", Amount: big.NewInt(60_000), Relayer: relayer},
		},
	})
	if err := s.settle.SettleBatch(batchA, proofA); err != nil {
		t.Fatalf("settle lock A: %v", err)
	}
	batchB, proofB := seal(&settlement.Batch{
		ID:          [32]byte{0xb3},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Borrows: []settlement.BorrowFinalize{
			{IntentID: lockB.IntentID, User: userB, Asset: "USDX", Amount: big.NewInt(40_000), Relayer: relayer},
		},
	})
	if err := s.settle.SettleBatch(batchB, proofB); err != nil {
		t.Fatalf("settle lock B: %v", err)
	}

	if bal, _ := s.manager.Balance(vault, "USDX"); bal.Sign() != 0 {
		t.Fatalf("vault balance %s after both settlements, want 0", bal)
	}
	if reserved, _ := s.manager.ReservedLiquidity("USDX"); reserved.Sign() != 0 {
		t.Fatalf("dangling reservation: %s", reserved)
	}
	if bal, _ := s.manager.Balance(relayer, "USDX"); bal.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("relayer reimbursement %s, want 100000", bal)
	}
}

func TestSettlementNonceSurvivesDiscardedBatch(t *testing.T) {
	s := newStack(t)
	created, user := s.lockBorrow(t, 500)

	// A batch rejected mid-apply must not disturb the nonce high-water mark
	// recorded when the lock was created.
	batch, proof := seal(&settlement.Batch{
		ID:          [32]byte{0xb1},
		HubDomain:   hubDomain,
		SpokeDomain: spokeDomain,
		Borrows: []settlement.BorrowFinalize{
			{IntentID: created.IntentID, User: user, Asset: "USDX", Amount: big.NewInt(500), Relayer: relayer},
		},
	})
	if err := s.settle.SettleBatch(batch, proof); !errors.Is(err, settlement.ErrEvidenceMissing) {
		t.Fatalf("expected ErrEvidenceMissing, got %v", err)
	}
	if nonce, _ := s.manager.IntentNonce(user); nonce != 1 {
		t.Fatalf("nonce disturbed by rejected batch: %d", nonce)
	}
	stored, _ := s.manager.LockGet(created.IntentID)
	if stored.Status != lock.LockActive {
		t.Fatalf("lock no longer active after rejected batch: %s", stored.Status)
	}
	if reserved, _ := s.manager.ReservedLiquidity("USDX"); reserved.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("reservation lost after rejected batch: %s", reserved)
	}
}
