package lending

import "math/big"

// Market captures the global accounting state for a single asset. Amounts are
// denominated in the asset's base units and expressed as big integers to keep
// full precision; indexes are RAY-scaled and monotonically non-decreasing.
type Market struct {
	// Asset is the canonical symbol identifying the market.
	Asset string
	// TotalSupplyShares is the aggregate supply share count across lenders.
	TotalSupplyShares *big.Int
	// TotalDebtShares tracks outstanding debt shares across borrowers.
	TotalDebtShares *big.Int
	// SupplyIndex is the cumulative interest index applied to supplier shares.
	SupplyIndex *big.Int
	// BorrowIndex is the cumulative interest index applied to borrower shares.
	BorrowIndex *big.Int
	// Reserves accumulates the spread between borrower and supplier interest.
	Reserves *big.Int
	// LastAccrualTime records the unix time when indexes were last refreshed.
	LastAccrualTime uint64
	// Initialized marks whether the market has been created by the admin
	// surface. Operations against an uninitialized market are rejected.
	Initialized bool
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	clone.TotalSupplyShares = cloneBig(m.TotalSupplyShares)
	clone.TotalDebtShares = cloneBig(m.TotalDebtShares)
	clone.SupplyIndex = cloneBig(m.SupplyIndex)
	clone.BorrowIndex = cloneBig(m.BorrowIndex)
	clone.Reserves = cloneBig(m.Reserves)
	return &clone
}

func (m *Market) ensureDefaults() {
	if m.TotalSupplyShares == nil {
		m.TotalSupplyShares = big.NewInt(0)
	}
	if m.TotalDebtShares == nil {
		m.TotalDebtShares = big.NewInt(0)
	}
	if m.SupplyIndex == nil || m.SupplyIndex.Sign() == 0 {
		m.SupplyIndex = new(big.Int).Set(ray)
	}
	if m.BorrowIndex == nil || m.BorrowIndex.Sign() == 0 {
		m.BorrowIndex = new(big.Int).Set(ray)
	}
	if m.Reserves == nil {
		m.Reserves = big.NewInt(0)
	}
}

// Position stores the per-user share balances for one market. Asset values are
// derived as shares * index / RAY and never persisted.
type Position struct {
	Asset        string
	User         [20]byte
	SupplyShares *big.Int
	DebtShares   *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.SupplyShares = cloneBig(p.SupplyShares)
	clone.DebtShares = cloneBig(p.DebtShares)
	return &clone
}

func (p *Position) ensureDefaults() {
	if p.SupplyShares == nil {
		p.SupplyShares = big.NewInt(0)
	}
	if p.DebtShares == nil {
		p.DebtShares = big.NewInt(0)
	}
}
