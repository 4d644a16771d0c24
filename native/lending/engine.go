package lending

import (
	"errors"
	"math/big"
	"time"

	"hublend/core/events"
	"hublend/core/types"
	nativecommon "hublend/native/common"
)

var (
	ErrNilState              = errors.New("lending engine: state not configured")
	ErrMarketExists          = errors.New("lending engine: market already initialized")
	ErrMarketNotFound        = errors.New("lending engine: market not initialized")
	ErrInvalidAmount         = errors.New("lending engine: amount must be positive")
	ErrInsufficientBalance   = errors.New("lending engine: insufficient balance")
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	ErrInsufficientShares    = errors.New("lending engine: insufficient shares")
	ErrNoDebtToRepay         = errors.New("lending engine: no outstanding debt to repay")
	ErrNotLiquidatable       = errors.New("lending engine: borrower not eligible for liquidation")
)

const moduleName = "lending"

// EngineState is the persistence surface the ledger engine mutates. A market
// record exists per asset, a position per (asset, user), and material asset
// balances are tracked per address the way a vault account would hold them.
type EngineState interface {
	GetMarket(asset string) (*Market, error)
	PutMarket(market *Market) error
	MarketAssets() ([]string, error)
	GetPosition(asset string, user [20]byte) (*Position, error)
	PutPosition(position *Position) error
	Balance(addr [20]byte, asset string) (*big.Int, error)
	SetBalance(addr [20]byte, asset string, amount *big.Int) error
	ReservedLiquidity(asset string) (*big.Int, error)
}

// RiskChecker gates balance-affecting operations on portfolio health. The
// risk engine implements it; the indirection keeps this package free of
// valuation concerns.
type RiskChecker interface {
	CanSupply(user [20]byte, asset string, amount *big.Int) error
	CanBorrow(user [20]byte, asset string, amount *big.Int) error
	CanWithdraw(user [20]byte, asset string, amount *big.Int) error
	Liquidatable(user [20]byte) (bool, error)
	SeizeAmount(debtAsset, collateralAsset string, repay *big.Int) (*big.Int, error)
}

// Engine orchestrates the share/index accounting for every market. All
// mutating entry points accrue interest first so indexes are never stale.
type Engine struct {
	state         EngineState
	moduleAddress [20]byte
	rates         RateModel
	risk          RiskChecker
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	nowFn         func() int64
}

// NewEngine constructs a ledger engine holding liquidity under the supplied
// module vault address.
func NewEngine(moduleAddr [20]byte) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state EngineState) { e.state = state }

// WithState returns a shallow copy of the engine bound to a different state
// backend. The settlement coordinator uses it to run finalization against a
// buffered overlay.
func (e *Engine) WithState(state EngineState) *Engine {
	clone := *e
	clone.state = state
	return &clone
}

// SetRateModel configures the interest rate model consulted during accrual.
func (e *Engine) SetRateModel(model RateModel) {
	if e == nil {
		return
	}
	e.rates = model
}

// SetRiskChecker wires the risk engine consulted by borrow/withdraw paths.
func (e *Engine) SetRiskChecker(risk RiskChecker) {
	if e == nil {
		return
	}
	e.risk = risk
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the vault address holding pooled liquidity.
func (e *Engine) ModuleAddress() [20]byte { return e.moduleAddress }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

type ledgerEvent struct {
	evt *types.Event
}

func (l ledgerEvent) EventType() string {
	if l.evt == nil {
		return ""
	}
	return l.evt.Type
}

func (l ledgerEvent) Event() *types.Event { return l.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: evt})
}

// InitializeMarket creates the market record for an asset. It fails when the
// market already exists; markets are never deleted.
func (e *Engine) InitializeMarket(asset string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	existing, err := e.state.GetMarket(asset)
	if err != nil {
		return err
	}
	if existing != nil && existing.Initialized {
		return ErrMarketExists
	}
	market := &Market{Asset: asset, LastAccrualTime: uint64(e.now()), Initialized: true}
	market.ensureDefaults()
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.emit(events.MarketInitialized{Asset: asset}.Event())
	return nil
}

func (e *Engine) loadMarket(asset string) (*Market, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	market, err := e.state.GetMarket(asset)
	if err != nil {
		return nil, err
	}
	if market == nil || !market.Initialized {
		return nil, ErrMarketNotFound
	}
	market.ensureDefaults()
	return market, nil
}

func (e *Engine) loadPosition(asset string, user [20]byte) (*Position, error) {
	pos, err := e.state.GetPosition(asset, user)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Asset: asset, User: user}
	}
	pos.ensureDefaults()
	return pos, nil
}

// accrue advances both indexes for the elapsed wall-clock period and books the
// borrower/supplier interest spread into reserves. Zero elapsed time is a
// no-op, which makes accrual idempotent within a single transition.
func (e *Engine) accrue(market *Market) {
	now := uint64(e.now())
	if now <= market.LastAccrualTime {
		return
	}
	elapsed := now - market.LastAccrualTime

	debtAssets := assetsFromShares(market.TotalDebtShares, market.BorrowIndex)
	supplyAssets := assetsFromShares(market.TotalSupplyShares, market.SupplyIndex)
	if debtAssets.Sign() == 0 || supplyAssets.Sign() == 0 || e.rates == nil {
		market.LastAccrualTime = now
		return
	}

	utilisation := new(big.Int).Mul(debtAssets, ray)
	utilisation.Quo(utilisation, supplyAssets)

	borrowRate := e.rates.BorrowRate(market.Asset, utilisation)
	supplyRate := e.rates.SupplyRate(market.Asset, utilisation)

	market.BorrowIndex = rayMul(market.BorrowIndex, indexFactor(borrowRate, elapsed))
	market.SupplyIndex = rayMul(market.SupplyIndex, indexFactor(supplyRate, elapsed))

	elapsedInt := new(big.Int).SetUint64(elapsed)
	debtInterest := rayMul(debtAssets, new(big.Int).Mul(borrowRate, elapsedInt))
	supplyInterest := rayMul(supplyAssets, new(big.Int).Mul(supplyRate, elapsedInt))
	if debtInterest.Cmp(supplyInterest) > 0 {
		spread := new(big.Int).Sub(debtInterest, supplyInterest)
		market.Reserves = new(big.Int).Add(market.Reserves, spread)
	}

	market.LastAccrualTime = now
}

// AccrueInterest refreshes the indexes for an asset without any other effect.
func (e *Engine) AccrueInterest(asset string) error {
	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	e.accrue(market)
	return e.state.PutMarket(market)
}

func (e *Engine) balance(addr [20]byte, asset string) (*big.Int, error) {
	bal, err := e.state.Balance(addr, asset)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = big.NewInt(0)
	}
	return bal, nil
}

func (e *Engine) credit(addr [20]byte, asset string, amount *big.Int) error {
	bal, err := e.balance(addr, asset)
	if err != nil {
		return err
	}
	return e.state.SetBalance(addr, asset, new(big.Int).Add(bal, amount))
}

func (e *Engine) debit(addr [20]byte, asset string, amount *big.Int) error {
	bal, err := e.balance(addr, asset)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return e.state.SetBalance(addr, asset, new(big.Int).Sub(bal, amount))
}

// AvailableLiquidity is the material balance of the asset held by the module
// vault less capacity already claimed by active locks. Every payout path must
// check it so a reservation cannot be double-spent by a direct operation.
func (e *Engine) AvailableLiquidity(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	bal, err := e.balance(e.moduleAddress, asset)
	if err != nil {
		return nil, err
	}
	reserved, err := e.state.ReservedLiquidity(asset)
	if err != nil {
		return nil, err
	}
	if reserved == nil {
		reserved = big.NewInt(0)
	}
	liquidity := new(big.Int).Sub(bal, reserved)
	if liquidity.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return liquidity, nil
}

// Supply moves the amount from the supplier into the module vault and mints
// supply shares rounded down against the current index.
func (e *Engine) Supply(user [20]byte, asset string, amount *big.Int) (*big.Int, error) {
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

	if e.risk != nil {
		if err := e.risk.CanSupply(user, asset, amount); err != nil {
			return nil, err
		}
	}

	minted := sharesDown(amount, market.SupplyIndex)
	if minted.Sign() == 0 {
		return nil, ErrInvalidAmount
	}

	if err := e.debit(user, asset, amount); err != nil {
		return nil, err
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

// Withdraw releases the requested amount back to the supplier, burning shares
// rounded up so the burned claim always covers the assets paid out.
func (e *Engine) Withdraw(user [20]byte, asset string, amount *big.Int) (*big.Int, error) {
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

	burned := sharesUp(amount, market.SupplyIndex)
	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	if pos.SupplyShares.Cmp(burned) < 0 {
		return nil, ErrInsufficientShares
	}
	if e.risk != nil {
		if err := e.risk.CanWithdraw(user, asset, amount); err != nil {
			return nil, err
		}
	}
	liquidity, err := e.AvailableLiquidity(asset)
	if err != nil {
		return nil, err
	}
	if liquidity.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	if err := e.debit(e.moduleAddress, asset, amount); err != nil {
		return nil, err
	}
	if err := e.credit(user, asset, amount); err != nil {
		return nil, err
	}

	pos.SupplyShares = new(big.Int).Sub(pos.SupplyShares, burned)
	market.TotalSupplyShares = new(big.Int).Sub(market.TotalSupplyShares, burned)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}
	e.emit(events.Withdrawn{Asset: asset, User: user, Amount: amount, Shares: burned}.Event())
	return burned, nil
}

// Borrow pays the amount out of the module vault and mints debt shares rounded
// up so the borrower owes at least what was paid out.
func (e *Engine) Borrow(user [20]byte, asset string, amount *big.Int) (*big.Int, error) {
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

	if e.risk != nil {
		if err := e.risk.CanBorrow(user, asset, amount); err != nil {
			return nil, err
		}
	}
	liquidity, err := e.AvailableLiquidity(asset)
	if err != nil {
		return nil, err
	}
	if liquidity.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	minted := sharesUp(amount, market.BorrowIndex)

	if err := e.debit(e.moduleAddress, asset, amount); err != nil {
		return nil, err
	}
	if err := e.credit(user, asset, amount); err != nil {
		return nil, err
	}

	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	pos.DebtShares = new(big.Int).Add(pos.DebtShares, minted)
	market.TotalDebtShares = new(big.Int).Add(market.TotalDebtShares, minted)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}
	e.emit(events.Borrowed{Asset: asset, User: user, Amount: amount, Shares: minted}.Event())
	return minted, nil
}

// Repay settles debt from the borrower's balance, capped at the outstanding
// amount. The actual amount repaid is returned.
func (e *Engine) Repay(user [20]byte, asset string, amount *big.Int) (*big.Int, error) {
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
	if outstanding.Sign() == 0 {
		return nil, ErrNoDebtToRepay
	}
	repay := cloneBig(amount)
	if repay.Cmp(outstanding) > 0 {
		repay = outstanding
	}

	if err := e.debit(user, asset, repay); err != nil {
		return nil, err
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

// reduceDebt burns debt shares for a repaid amount. A full repayment zeroes
// the share balance exactly so interest dust cannot strand a position.
func (e *Engine) reduceDebt(market *Market, pos *Position, repay, outstanding *big.Int) {
	var burned *big.Int
	if repay.Cmp(outstanding) >= 0 {
		burned = cloneBig(pos.DebtShares)
	} else {
		burned = sharesDown(repay, market.BorrowIndex)
		if burned.Cmp(pos.DebtShares) > 0 {
			burned = cloneBig(pos.DebtShares)
		}
	}
	pos.DebtShares = new(big.Int).Sub(pos.DebtShares, burned)
	market.TotalDebtShares = new(big.Int).Sub(market.TotalDebtShares, burned)
	if market.TotalDebtShares.Sign() < 0 {
		market.TotalDebtShares = big.NewInt(0)
	}
}

// Liquidate lets a third party repay an unhealthy borrower's debt in exchange
// for discounted collateral. Repay is capped at outstanding debt and seizure
// at the borrower's actual collateral balance.
func (e *Engine) Liquidate(liquidator, user [20]byte, debtAsset string, repayAmount *big.Int, collateralAsset string) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if repayAmount == nil || repayAmount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	debtMarket, err := e.loadMarket(debtAsset)
	if err != nil {
		return nil, nil, err
	}
	collMarket, err := e.loadMarket(collateralAsset)
	if err != nil {
		return nil, nil, err
	}
	e.accrue(debtMarket)
	e.accrue(collMarket)

	if e.risk == nil {
		return nil, nil, ErrNotLiquidatable
	}
	eligible, err := e.risk.Liquidatable(user)
	if err != nil {
		return nil, nil, err
	}
	if !eligible {
		return nil, nil, ErrNotLiquidatable
	}

	debtPos, err := e.loadPosition(debtAsset, user)
	if err != nil {
		return nil, nil, err
	}
	outstanding := assetsFromShares(debtPos.DebtShares, debtMarket.BorrowIndex)
	if outstanding.Sign() == 0 {
		return nil, nil, ErrNoDebtToRepay
	}
	repay := cloneBig(repayAmount)
	if repay.Cmp(outstanding) > 0 {
		repay = outstanding
	}

	seize, err := e.risk.SeizeAmount(debtAsset, collateralAsset, repay)
	if err != nil {
		return nil, nil, err
	}

	collPos, err := e.loadPosition(collateralAsset, user)
	if err != nil {
		return nil, nil, err
	}
	collateralAssets := assetsFromShares(collPos.SupplyShares, collMarket.SupplyIndex)
	if seize.Cmp(collateralAssets) > 0 {
		seize = collateralAssets
	}
	if seize.Sign() == 0 {
		return nil, nil, ErrInsufficientShares
	}

	liquidity, err := e.AvailableLiquidity(collateralAsset)
	if err != nil {
		return nil, nil, err
	}
	if liquidity.Cmp(seize) < 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	if err := e.debit(liquidator, debtAsset, repay); err != nil {
		return nil, nil, err
	}
	if err := e.credit(e.moduleAddress, debtAsset, repay); err != nil {
		return nil, nil, err
	}
	if err := e.debit(e.moduleAddress, collateralAsset, seize); err != nil {
		return nil, nil, err
	}
	if err := e.credit(liquidator, collateralAsset, seize); err != nil {
		return nil, nil, err
	}

	e.reduceDebt(debtMarket, debtPos, repay, outstanding)

	burned := sharesUp(seize, collMarket.SupplyIndex)
	if burned.Cmp(collPos.SupplyShares) > 0 {
		burned = cloneBig(collPos.SupplyShares)
	}
	collPos.SupplyShares = new(big.Int).Sub(collPos.SupplyShares, burned)
	collMarket.TotalSupplyShares = new(big.Int).Sub(collMarket.TotalSupplyShares, burned)

	if err := e.state.PutPosition(debtPos); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutPosition(collPos); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutMarket(debtMarket); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutMarket(collMarket); err != nil {
		return nil, nil, err
	}
	e.emit(events.Liquidated{
		DebtAsset:       debtAsset,
		CollateralAsset: collateralAsset,
		User:            user,
		Liquidator:      liquidator,
		Repaid:          repay,
		Seized:          seize,
	}.Event())
	return repay, seize, nil
}
