package settlement

import (
	"math/big"

	"hublend/native/lock"
)

// RoleRelay identifies the permissioned relay allowed to record fill evidence.
const RoleRelay = "ROLE_RELAY"

// SupplyCredit applies a bridged spoke-domain deposit as hub supply.
type SupplyCredit struct {
	DepositID [32]byte
	User      [20]byte
	Asset     string
	Amount    *big.Int
}

// RepayCredit applies a bridged spoke-domain deposit against hub debt.
type RepayCredit struct {
	DepositID [32]byte
	User      [20]byte
	Asset     string
	Amount    *big.Int
}

// BorrowFinalize realizes a relayed spoke-domain payout as hub debt and
// reimburses the relayer.
type BorrowFinalize struct {
	IntentID [32]byte
	User     [20]byte
	Asset    string
	Amount   *big.Int
	Fee      *big.Int
	Relayer  [20]byte
}

// WithdrawFinalize realizes a relayed spoke-domain payout by burning hub
// supply shares and reimbursing the relayer.
type WithdrawFinalize struct {
	IntentID [32]byte
	User     [20]byte
	Asset    string
	Amount   *big.Int
	Fee      *big.Int
	Relayer  [20]byte
}

// Batch is the unit of settlement. It is constructed off-chain by an
// aggregator and submitted exactly once; the four action lists are applied in
// the order they appear here, which is also the actions-root fold order.
type Batch struct {
	ID          [32]byte
	HubDomain   uint64
	SpokeDomain uint64
	ActionsRoot *big.Int
	Supplies    []SupplyCredit
	Repays      []RepayCredit
	Borrows     []BorrowFinalize
	Withdraws   []WithdrawFinalize
}

// ActionCount returns the total number of actions across all four lists.
func (b *Batch) ActionCount() int {
	if b == nil {
		return 0
	}
	return len(b.Supplies) + len(b.Repays) + len(b.Borrows) + len(b.Withdraws)
}

// FillEvidence is a relay-attested claim about a remote-domain fill. It is
// only trusted to the extent the matching batch action must reproduce its
// fields exactly; recording it never touches the ledger.
type FillEvidence struct {
	IntentID   [32]byte
	IntentType lock.IntentType
	User       [20]byte
	Asset      string
	Amount     *big.Int
	Fee        *big.Int
	Relayer    [20]byte
	Consumed   bool
}

// Clone returns a deep copy so callers can mutate safely.
func (f *FillEvidence) Clone() *FillEvidence {
	if f == nil {
		return nil
	}
	clone := *f
	if f.Amount != nil {
		clone.Amount = new(big.Int).Set(f.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if f.Fee != nil {
		clone.Fee = new(big.Int).Set(f.Fee)
	} else {
		clone.Fee = big.NewInt(0)
	}
	return &clone
}

func (f *FillEvidence) matches(intentType lock.IntentType, user [20]byte, asset string, amount, fee *big.Int, relayer [20]byte) bool {
	if f == nil {
		return false
	}
	if f.IntentType != intentType || f.User != user || f.Asset != asset || f.Relayer != relayer {
		return false
	}
	if f.Amount == nil || amount == nil || f.Amount.Cmp(amount) != 0 {
		return false
	}
	evFee := f.Fee
	if evFee == nil {
		evFee = big.NewInt(0)
	}
	actionFee := fee
	if actionFee == nil {
		actionFee = big.NewInt(0)
	}
	return evFee.Cmp(actionFee) == 0
}
