package risk

import (
	"errors"
	"math/big"
)

var (
	ErrNilLedger         = errors.New("risk engine: ledger view not configured")
	ErrAssetDisabled     = errors.New("risk engine: asset disabled")
	ErrParamsNotFound    = errors.New("risk engine: asset parameters not configured")
	ErrPriceUnavailable  = errors.New("risk engine: price unavailable")
	ErrSupplyCapExceeded = errors.New("risk engine: supply cap exceeded")
	ErrBorrowCapExceeded = errors.New("risk engine: borrow cap exceeded")
	ErrHealthCheckFailed = errors.New("risk engine: health factor below 1")
)

var (
	basisPoints = big.NewInt(10_000)
	healthScale = mustBigInt("1000000000000000000") // 1e18
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// PriceOracle resolves the price of an asset in the common valuation unit,
// scaled by 1e8.
type PriceOracle interface {
	GetPrice(asset string) (*big.Int, error)
}

// LedgerView is the read surface of the ledger the risk engine values.
type LedgerView interface {
	Assets() ([]string, error)
	SupplyAssets(user [20]byte, asset string) (*big.Int, error)
	DebtAssets(user [20]byte, asset string) (*big.Int, error)
	TotalSupplyAssets(asset string) (*big.Int, error)
	TotalDebtAssets(asset string) (*big.Int, error)
}

// ReservationView exposes the capacity already claimed by active locks. A
// pending lock spends borrow headroom and pins collateral before it is
// realized, which is what stops the same capacity being claimed twice.
type ReservationView interface {
	ReservedDebt(user [20]byte, asset string) (*big.Int, error)
	ReservedWithdraw(user [20]byte, asset string) (*big.Int, error)
}

// AssetParams groups the governance-controlled limits for one asset.
type AssetParams struct {
	// Enabled gates all new exposure to the asset.
	Enabled bool
	// Decimals scales amounts to the common valuation unit.
	Decimals uint8
	// MaxLTVBps is the loan-to-value ratio new borrows are checked against.
	MaxLTVBps uint64
	// LiquidationThresholdBps is the LTV at which positions become
	// liquidatable. Always >= MaxLTVBps.
	LiquidationThresholdBps uint64
	// LiquidationBonusBps is the seizure discount granted to liquidators.
	LiquidationBonusBps uint64
	// SupplyCap bounds total market supply; zero or nil means uncapped.
	SupplyCap *big.Int
	// BorrowCap bounds total market debt; zero or nil means uncapped.
	BorrowCap *big.Int
}

// Engine values portfolios from ledger state, oracle prices and reservation
// state. It holds no mutable accounting of its own.
type Engine struct {
	ledger       LedgerView
	reservations ReservationView
	oracle       PriceOracle
	params       map[string]AssetParams
}

func NewEngine() *Engine {
	return &Engine{params: make(map[string]AssetParams)}
}

func (e *Engine) SetLedger(view LedgerView)            { e.ledger = view }
func (e *Engine) SetReservations(view ReservationView) { e.reservations = view }
func (e *Engine) SetOracle(oracle PriceOracle)         { e.oracle = oracle }
func (e *Engine) SetAssetParams(asset string, p AssetParams) {
	if e.params == nil {
		e.params = make(map[string]AssetParams)
	}
	e.params[asset] = p
}

// OracleBackend returns the configured price oracle.
func (e *Engine) OracleBackend() PriceOracle { return e.oracle }

// AssetParamsFor returns the configured parameters for an asset.
func (e *Engine) AssetParamsFor(asset string) (AssetParams, error) {
	p, ok := e.params[asset]
	if !ok {
		return AssetParams{}, ErrParamsNotFound
	}
	return p, nil
}

func (e *Engine) price(asset string) (*big.Int, error) {
	if e.oracle == nil {
		return nil, ErrPriceUnavailable
	}
	price, err := e.oracle.GetPrice(asset)
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	return price, nil
}

// value converts an asset amount to the common 1e8-scaled valuation unit.
func value(amount, price *big.Int, decimals uint8) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(amount, price)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return v.Quo(v, scale)
}

// portfolio aggregates the collateral and debt valuation of a user. The
// collateral side is weighted by the per-asset bps selected by borrowLimit
// (MaxLTV for new borrows, liquidation threshold for health). Reserved
// withdrawals reduce collateral; reserved debt adds to the debt side. The
// extra* arguments let capability checks evaluate a hypothetical position.
func (e *Engine) portfolio(user [20]byte, borrowLimit bool, extraDebtAsset string, extraDebt *big.Int, lessCollAsset string, lessColl *big.Int) (collateral, debt *big.Int, err error) {
	if e.ledger == nil {
		return nil, nil, ErrNilLedger
	}
	assets, err := e.ledger.Assets()
	if err != nil {
		return nil, nil, err
	}
	collateral = big.NewInt(0)
	debt = big.NewInt(0)
	for _, asset := range assets {
		params, ok := e.params[asset]
		if !ok {
			continue
		}
		price, err := e.price(asset)
		if err != nil {
			return nil, nil, err
		}

		supply, err := e.ledger.SupplyAssets(user, asset)
		if err != nil {
			return nil, nil, err
		}
		supply = new(big.Int).Set(supply)
		if e.reservations != nil {
			reserved, err := e.reservations.ReservedWithdraw(user, asset)
			if err != nil {
				return nil, nil, err
			}
			if reserved != nil {
				supply.Sub(supply, reserved)
			}
		}
		if lessColl != nil && asset == lessCollAsset {
			supply.Sub(supply, lessColl)
		}
		if supply.Sign() > 0 {
			weight := params.LiquidationThresholdBps
			if borrowLimit {
				weight = params.MaxLTVBps
			}
			weighted := new(big.Int).Mul(value(supply, price, params.Decimals), new(big.Int).SetUint64(weight))
			weighted.Quo(weighted, basisPoints)
			collateral.Add(collateral, weighted)
		}

		owed, err := e.ledger.DebtAssets(user, asset)
		if err != nil {
			return nil, nil, err
		}
		owed = new(big.Int).Set(owed)
		if e.reservations != nil {
			reserved, err := e.reservations.ReservedDebt(user, asset)
			if err != nil {
				return nil, nil, err
			}
			if reserved != nil {
				owed.Add(owed, reserved)
			}
		}
		if extraDebt != nil && asset == extraDebtAsset {
			owed.Add(owed, extraDebt)
		}
		if owed.Sign() > 0 {
			debt.Add(debt, value(owed, price, params.Decimals))
		}
	}
	return collateral, debt, nil
}

// HealthFactor returns the 1e18-scaled ratio of risk-adjusted collateral to
// debt. A nil result means the user carries no debt (infinite health).
func (e *Engine) HealthFactor(user [20]byte) (*big.Int, error) {
	collateral, debt, err := e.portfolio(user, false, "", nil, "", nil)
	if err != nil {
		return nil, err
	}
	if debt.Sign() == 0 {
		return nil, nil
	}
	hf := new(big.Int).Mul(collateral, healthScale)
	return hf.Quo(hf, debt), nil
}

// Liquidatable reports whether the user's health factor is below 1.0. Zero
// debt is never liquidatable.
func (e *Engine) Liquidatable(user [20]byte) (bool, error) {
	hf, err := e.HealthFactor(user)
	if err != nil {
		return false, err
	}
	if hf == nil {
		return false, nil
	}
	return hf.Cmp(healthScale) < 0, nil
}

func healthy(collateral, debt *big.Int) bool {
	if debt.Sign() == 0 {
		return true
	}
	hf := new(big.Int).Mul(collateral, healthScale)
	hf.Quo(hf, debt)
	return hf.Cmp(healthScale) >= 0
}

// CanSupply checks the enabled flag and the market supply cap.
func (e *Engine) CanSupply(_ [20]byte, asset string, amount *big.Int) error {
	params, ok := e.params[asset]
	if !ok {
		return ErrParamsNotFound
	}
	if !params.Enabled {
		return ErrAssetDisabled
	}
	if params.SupplyCap != nil && params.SupplyCap.Sign() > 0 {
		total, err := e.ledger.TotalSupplyAssets(asset)
		if err != nil {
			return err
		}
		projected := new(big.Int).Add(total, amount)
		if projected.Cmp(params.SupplyCap) > 0 {
			return ErrSupplyCapExceeded
		}
	}
	return nil
}

// CanBorrow checks the enabled flag, the borrow cap, and that the position
// stays within its LTV-implied limit after taking on the new debt. Reserved
// debt from pending locks already counts against the limit.
func (e *Engine) CanBorrow(user [20]byte, asset string, amount *big.Int) error {
	params, ok := e.params[asset]
	if !ok {
		return ErrParamsNotFound
	}
	if !params.Enabled {
		return ErrAssetDisabled
	}
	if params.BorrowCap != nil && params.BorrowCap.Sign() > 0 {
		total, err := e.ledger.TotalDebtAssets(asset)
		if err != nil {
			return err
		}
		projected := new(big.Int).Add(total, amount)
		if projected.Cmp(params.BorrowCap) > 0 {
			return ErrBorrowCapExceeded
		}
	}
	collateral, debt, err := e.portfolio(user, true, asset, amount, "", nil)
	if err != nil {
		return err
	}
	if !healthy(collateral, debt) {
		return ErrHealthCheckFailed
	}
	return nil
}

// CanWithdraw checks the enabled flag and that the position stays healthy
// after removing the collateral. Reserved withdrawals are already excluded
// from the collateral side.
func (e *Engine) CanWithdraw(user [20]byte, asset string, amount *big.Int) error {
	params, ok := e.params[asset]
	if !ok {
		return ErrParamsNotFound
	}
	if !params.Enabled {
		return ErrAssetDisabled
	}
	collateral, debt, err := e.portfolio(user, false, "", nil, asset, amount)
	if err != nil {
		return err
	}
	if !healthy(collateral, debt) {
		return ErrHealthCheckFailed
	}
	return nil
}

// AssetEnabled reports whether new exposure to the asset is allowed.
func (e *Engine) AssetEnabled(asset string) error {
	params, ok := e.params[asset]
	if !ok {
		return ErrParamsNotFound
	}
	if !params.Enabled {
		return ErrAssetDisabled
	}
	return nil
}

// CheckBorrowHealth verifies the user's position stays within its LTV limit
// with all reservations in place. The lock engine calls it after placing a
// tentative reservation, so no hypothetical amount is needed here.
func (e *Engine) CheckBorrowHealth(user [20]byte) error {
	collateral, debt, err := e.portfolio(user, true, "", nil, "", nil)
	if err != nil {
		return err
	}
	if !healthy(collateral, debt) {
		return ErrHealthCheckFailed
	}
	return nil
}

// CheckWithdrawHealth verifies the user stays above the liquidation threshold
// with reserved withdrawals excluded from collateral.
func (e *Engine) CheckWithdrawHealth(user [20]byte) error {
	collateral, debt, err := e.portfolio(user, false, "", nil, "", nil)
	if err != nil {
		return err
	}
	if !healthy(collateral, debt) {
		return ErrHealthCheckFailed
	}
	return nil
}

// SeizeAmount converts a repaid debt amount into the collateral units seized
// during liquidation, including the collateral asset's liquidation bonus.
func (e *Engine) SeizeAmount(debtAsset, collateralAsset string, repay *big.Int) (*big.Int, error) {
	debtParams, ok := e.params[debtAsset]
	if !ok {
		return nil, ErrParamsNotFound
	}
	collParams, ok := e.params[collateralAsset]
	if !ok {
		return nil, ErrParamsNotFound
	}
	debtPrice, err := e.price(debtAsset)
	if err != nil {
		return nil, err
	}
	collPrice, err := e.price(collateralAsset)
	if err != nil {
		return nil, err
	}

	// repay * debtPrice / 10^debtDec is the repaid value; divide by the
	// collateral price and rescale to collateral units, then apply the bonus.
	seize := new(big.Int).Mul(repay, debtPrice)
	seize.Mul(seize, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(collParams.Decimals)), nil))
	seize.Mul(seize, new(big.Int).SetUint64(10_000+collParams.LiquidationBonusBps))
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(debtParams.Decimals)), nil)
	den.Mul(den, collPrice)
	den.Mul(den, basisPoints)
	return seize.Quo(seize, den), nil
}
