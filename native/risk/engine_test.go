package risk

import (
	"errors"
	"math/big"
	"testing"
)

var (
	alice = [20]byte{0x01}
	bob   = [20]byte{0x02}
)

type mockLedger struct {
	assets []string
	supply map[string]map[[20]byte]*big.Int
	debt   map[string]map[[20]byte]*big.Int
	totalS map[string]*big.Int
	totalD map[string]*big.Int
}

func newMockLedger(assets ...string) *mockLedger {
	l := &mockLedger{
		assets: assets,
		supply: make(map[string]map[[20]byte]*big.Int),
		debt:   make(map[string]map[[20]byte]*big.Int),
		totalS: make(map[string]*big.Int),
		totalD: make(map[string]*big.Int),
	}
	for _, asset := range assets {
		l.supply[asset] = make(map[[20]byte]*big.Int)
		l.debt[asset] = make(map[[20]byte]*big.Int)
	}
	return l
}

func (l *mockLedger) setSupply(user [20]byte, asset string, amount int64) {
	l.supply[asset][user] = big.NewInt(amount)
}

func (l *mockLedger) setDebt(user [20]byte, asset string, amount int64) {
	l.debt[asset][user] = big.NewInt(amount)
}

func (l *mockLedger) Assets() ([]string, error) { return l.assets, nil }

func (l *mockLedger) SupplyAssets(user [20]byte, asset string) (*big.Int, error) {
	if v, ok := l.supply[asset][user]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (l *mockLedger) DebtAssets(user [20]byte, asset string) (*big.Int, error) {
	if v, ok := l.debt[asset][user]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (l *mockLedger) TotalSupplyAssets(asset string) (*big.Int, error) {
	if v, ok := l.totalS[asset]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (l *mockLedger) TotalDebtAssets(asset string) (*big.Int, error) {
	if v, ok := l.totalD[asset]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

type mockReservations struct {
	debt     map[string]*big.Int
	withdraw map[string]*big.Int
}

func (r *mockReservations) ReservedDebt(user [20]byte, asset string) (*big.Int, error) {
	if r.debt == nil {
		return big.NewInt(0), nil
	}
	if v, ok := r.debt[asset]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (r *mockReservations) ReservedWithdraw(user [20]byte, asset string) (*big.Int, error) {
	if r.withdraw == nil {
		return big.NewInt(0), nil
	}
	if v, ok := r.withdraw[asset]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

// unit price, no decimal rescale, 50% borrow LTV, 80% liquidation threshold.
func newTestEngine(ledger *mockLedger) *Engine {
	engine := NewEngine()
	engine.SetLedger(ledger)
	oracle := NewStaticOracle()
	for _, asset := range ledger.assets {
		oracle.SetPrice(asset, big.NewInt(100_000_000))
		engine.SetAssetParams(asset, AssetParams{
			Enabled:                 true,
			Decimals:                0,
			MaxLTVBps:               5_000,
			LiquidationThresholdBps: 8_000,
			LiquidationBonusBps:     500,
		})
	}
	engine.SetOracle(oracle)
	return engine
}

func TestHealthFactorNoDebtIsNil(t *testing.T) {
	ledger := newMockLedger("USDX")
	ledger.setSupply(alice, "USDX", 1_000)
	engine := newTestEngine(ledger)

	hf, err := engine.HealthFactor(alice)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if hf != nil {
		t.Fatalf("expected nil health factor without debt, got %s", hf)
	}
	liq, err := engine.Liquidatable(alice)
	if err != nil {
		t.Fatalf("liquidatable: %v", err)
	}
	if liq {
		t.Fatal("zero debt must never be liquidatable")
	}
}

func TestHealthFactorUsesLiquidationThreshold(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 1_000)
	ledger.setDebt(alice, "USDX", 400)
	engine := newTestEngine(ledger)

	// 1000 collateral at 80% threshold against 400 debt: hf = 2.0.
	hf, err := engine.HealthFactor(alice)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(2), healthScale)
	if hf.Cmp(want) != 0 {
		t.Fatalf("expected hf %s, got %s", want, hf)
	}

	liq, err := engine.Liquidatable(alice)
	if err != nil {
		t.Fatalf("liquidatable: %v", err)
	}
	if liq {
		t.Fatal("healthy position flagged liquidatable")
	}
}

func TestLiquidatableBelowThreshold(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 1_000)
	ledger.setDebt(alice, "USDX", 900)
	engine := newTestEngine(ledger)

	// 800 risk-adjusted collateral against 900 debt: hf < 1.
	liq, err := engine.Liquidatable(alice)
	if err != nil {
		t.Fatalf("liquidatable: %v", err)
	}
	if !liq {
		t.Fatal("underwater position not flagged liquidatable")
	}
}

func TestCanBorrowEnforcesLTVLimit(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 1_000)
	engine := newTestEngine(ledger)

	// 50% LTV on 1000 collateral allows exactly 500.
	if err := engine.CanBorrow(alice, "USDX", big.NewInt(500)); err != nil {
		t.Fatalf("borrow at limit should pass: %v", err)
	}
	if err := engine.CanBorrow(alice, "USDX", big.NewInt(501)); !errors.Is(err, ErrHealthCheckFailed) {
		t.Fatalf("expected ErrHealthCheckFailed above limit, got %v", err)
	}
}

func TestCanBorrowDisabledAsset(t *testing.T) {
	ledger := newMockLedger("USDX")
	engine := newTestEngine(ledger)
	engine.SetAssetParams("USDX", AssetParams{Enabled: false})

	if err := engine.CanBorrow(alice, "USDX", big.NewInt(1)); !errors.Is(err, ErrAssetDisabled) {
		t.Fatalf("expected ErrAssetDisabled, got %v", err)
	}
	if err := engine.CanBorrow(alice, "NOPE", big.NewInt(1)); !errors.Is(err, ErrParamsNotFound) {
		t.Fatalf("expected ErrParamsNotFound, got %v", err)
	}
}

func TestCanBorrowRespectsBorrowCap(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 10_000)
	ledger.totalD["USDX"] = big.NewInt(950)
	engine := newTestEngine(ledger)
	engine.SetAssetParams("USDX", AssetParams{
		Enabled:                 true,
		MaxLTVBps:               5_000,
		LiquidationThresholdBps: 8_000,
		BorrowCap:               big.NewInt(1_000),
	})

	if err := engine.CanBorrow(alice, "USDX", big.NewInt(50)); err != nil {
		t.Fatalf("borrow within cap: %v", err)
	}
	if err := engine.CanBorrow(alice, "USDX", big.NewInt(51)); !errors.Is(err, ErrBorrowCapExceeded) {
		t.Fatalf("expected ErrBorrowCapExceeded, got %v", err)
	}
}

func TestCanSupplyRespectsSupplyCap(t *testing.T) {
	ledger := newMockLedger("USDX")
	ledger.totalS["USDX"] = big.NewInt(90)
	engine := newTestEngine(ledger)
	engine.SetAssetParams("USDX", AssetParams{
		Enabled:   true,
		SupplyCap: big.NewInt(100),
	})

	if err := engine.CanSupply(alice, "USDX", big.NewInt(10)); err != nil {
		t.Fatalf("supply within cap: %v", err)
	}
	if err := engine.CanSupply(alice, "USDX", big.NewInt(11)); !errors.Is(err, ErrSupplyCapExceeded) {
		t.Fatalf("expected ErrSupplyCapExceeded, got %v", err)
	}
}

func TestCanWithdrawProtectsCollateral(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 1_000)
	ledger.setDebt(alice, "USDX", 400)
	engine := newTestEngine(ledger)

	// Withdrawing down to 500 collateral keeps 80% threshold coverage of 400.
	if err := engine.CanWithdraw(alice, "GOLD", big.NewInt(500)); err != nil {
		t.Fatalf("withdraw within headroom: %v", err)
	}
	if err := engine.CanWithdraw(alice, "GOLD", big.NewInt(600)); !errors.Is(err, ErrHealthCheckFailed) {
		t.Fatalf("expected ErrHealthCheckFailed, got %v", err)
	}
}

func TestReservationsCountAgainstHeadroom(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 1_000)
	engine := newTestEngine(ledger)
	engine.SetReservations(&mockReservations{debt: map[string]*big.Int{"USDX": big.NewInt(400)}})

	// Reserved debt of 400 leaves only 100 of the 500 borrow limit.
	if err := engine.CanBorrow(alice, "USDX", big.NewInt(100)); err != nil {
		t.Fatalf("borrow within remaining headroom: %v", err)
	}
	if err := engine.CanBorrow(alice, "USDX", big.NewInt(101)); !errors.Is(err, ErrHealthCheckFailed) {
		t.Fatalf("expected ErrHealthCheckFailed with reserved debt, got %v", err)
	}
}

func TestReservedWithdrawReducesCollateral(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(alice, "GOLD", 1_000)
	ledger.setDebt(alice, "USDX", 400)
	engine := newTestEngine(ledger)
	engine.SetReservations(&mockReservations{withdraw: map[string]*big.Int{"GOLD": big.NewInt(600)}})

	// Only 400 collateral remains visible: 320 risk-adjusted against 400 debt.
	if err := engine.CheckWithdrawHealth(alice); !errors.Is(err, ErrHealthCheckFailed) {
		t.Fatalf("expected ErrHealthCheckFailed with pinned collateral, got %v", err)
	}
}

func TestCheckBorrowHealthUsesReservations(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	ledger.setSupply(bob, "GOLD", 1_000)
	engine := newTestEngine(ledger)

	if err := engine.CheckBorrowHealth(bob); err != nil {
		t.Fatalf("no debt, no reservations: %v", err)
	}
	engine.SetReservations(&mockReservations{debt: map[string]*big.Int{"USDX": big.NewInt(600)}})
	if err := engine.CheckBorrowHealth(bob); !errors.Is(err, ErrHealthCheckFailed) {
		t.Fatalf("expected ErrHealthCheckFailed over LTV, got %v", err)
	}
}

func TestSeizeAmountAppliesBonusAndRescale(t *testing.T) {
	ledger := newMockLedger("USDX", "GOLD")
	engine := newTestEngine(ledger)
	oracle := engine.OracleBackend().(*StaticOracle)
	oracle.SetPrice("GOLD", big.NewInt(200_000_000))

	// Repaying 100 USDX at price 1.0 buys 50 GOLD at price 2.0 plus a 5% bonus.
	seize, err := engine.SeizeAmount("USDX", "GOLD", big.NewInt(100))
	if err != nil {
		t.Fatalf("seize amount: %v", err)
	}
	if seize.Cmp(big.NewInt(52)) != 0 {
		t.Fatalf("expected 52 (50 * 1.05), got %s", seize)
	}
}

func TestPriceUnavailable(t *testing.T) {
	ledger := newMockLedger("USDX")
	ledger.setSupply(alice, "USDX", 10)
	ledger.setDebt(alice, "USDX", 1)
	engine := newTestEngine(ledger)
	engine.OracleBackend().(*StaticOracle).SetPrice("USDX", nil)

	if _, err := engine.HealthFactor(alice); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestAssetEnabled(t *testing.T) {
	ledger := newMockLedger("USDX")
	engine := newTestEngine(ledger)

	if err := engine.AssetEnabled("USDX"); err != nil {
		t.Fatalf("enabled asset: %v", err)
	}
	engine.SetAssetParams("USDX", AssetParams{Enabled: false})
	if err := engine.AssetEnabled("USDX"); !errors.Is(err, ErrAssetDisabled) {
		t.Fatalf("expected ErrAssetDisabled, got %v", err)
	}
}
