package lending

import (
	"math/big"

	"hublend/core/events"
	nativecommon "hublend/native/common"
)

// Settlement entry points. These mirror the direct operations but move funds
// between the module vault and a relayer instead of the caller: the user-side
// transfer already happened on the spoke domain and is attested by the batch
// being applied. Only the settlement coordinator invokes them, always against
// an overlay state so a failed batch leaves no trace.

// SettlementCreditSupply mints supply shares for a bridged deposit. The vault
// balance grows by the bridged amount so conservation against the material
// balance holds.
func (e *Engine) SettlementCreditSupply(user [20]byte, asset string, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	e.accrue(market)

	minted := sharesDown(amount, market.SupplyIndex)
	if minted.Sign() == 0 {
		return nil, ErrInvalidAmount
	}

	if err := e.credit(e.moduleAddress, asset, amount); err != nil {
		return nil, err
	}

	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	pos.SupplyShares = new(big.Int).Add(pos.SupplyShares, minted)
	market.TotalSupplyShares = new(big.Int).Add(market.TotalSupplyShares, minted)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}
	e.emit(events.Supplied{Asset: asset, User: user, Amount: amount, Shares: minted}.Event())
	return minted, nil
}

// SettlementCreditRepay reduces the user's debt by a bridged repayment,
// capped at the outstanding amount. The repaid value is returned.
func (e *Engine) SettlementCreditRepay(user [20]byte, asset string, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	e.accrue(market)

	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	outstanding := assetsFromShares(pos.DebtShares, market.BorrowIndex)
	repay := cloneBig(amount)
	if repay.Cmp(outstanding) > 0 {
		repay = outstanding
	}
	if repay.Sign() == 0 {
		// Deposit exceeds debt entirely or no debt exists; nothing to settle
		// against, but the deposit itself stays on the spoke side.
		return big.NewInt(0), nil
	}

	if err := e.credit(e.moduleAddress, asset, repay); err != nil {
		return nil, err
	}

	e.reduceDebt(market, pos, repay, outstanding)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}
	e.emit(events.Repaid{Asset: asset, User: user, Amount: repay}.Event())
	return repay, nil
}

// SettlementFinalizeBorrow mints debt covering a payout the relayer fronted on
// the spoke domain and reimburses the relayer amount plus fee from the vault.
func (e *Engine) SettlementFinalizeBorrow(user [20]byte, asset string, amount, fee *big.Int, relayer [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	e.accrue(market)

	total := cloneBig(amount)
	if fee != nil && fee.Sign() > 0 {
		total.Add(total, fee)
	}

	// The lock behind this finalize is consumed before the ledger call, so
	// whatever is still reserved belongs to other active locks and the fee
	// portion must not eat into it.
	liquidity, err := e.AvailableLiquidity(asset)
	if err != nil {
		return err
	}
	if liquidity.Cmp(total) < 0 {
		return ErrInsufficientLiquidity
	}

	minted := sharesUp(total, market.BorrowIndex)

	if err := e.debit(e.moduleAddress, asset, total); err != nil {
		return err
	}
	if err := e.credit(relayer, asset, total); err != nil {
		return err
	}

	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return err
	}
	pos.DebtShares = new(big.Int).Add(pos.DebtShares, minted)
	market.TotalDebtShares = new(big.Int).Add(market.TotalDebtShares, minted)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.emit(events.Borrowed{Asset: asset, User: user, Amount: total, Shares: minted}.Event())
	return nil
}

// SettlementFinalizeWithdraw burns supply shares covering a payout the relayer
// fronted on the spoke domain and reimburses the relayer amount plus fee.
func (e *Engine) SettlementFinalizeWithdraw(user [20]byte, asset string, amount, fee *big.Int, relayer [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	e.accrue(market)

	total := cloneBig(amount)
	if fee != nil && fee.Sign() > 0 {
		total.Add(total, fee)
	}

	burned := sharesUp(total, market.SupplyIndex)
	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return err
	}
	if pos.SupplyShares.Cmp(burned) < 0 {
		return ErrInsufficientShares
	}

	// The lock behind this finalize is consumed before the ledger call, so
	// whatever is still reserved belongs to other active locks and the fee
	// portion must not eat into it.
	liquidity, err := e.AvailableLiquidity(asset)
	if err != nil {
		return err
	}
	if liquidity.Cmp(total) < 0 {
		return ErrInsufficientLiquidity
	}

	if err := e.debit(e.moduleAddress, asset, total); err != nil {
		return err
	}
	if err := e.credit(relayer, asset, total); err != nil {
		return err
	}

	pos.SupplyShares = new(big.Int).Sub(pos.SupplyShares, burned)
	market.TotalSupplyShares = new(big.Int).Sub(market.TotalSupplyShares, burned)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.emit(events.Withdrawn{Asset: asset, User: user, Amount: total, Shares: burned}.Event())
	return nil
}
