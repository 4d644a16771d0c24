package lending

import (
	"math/big"
	"testing"
)

func halfRay() *big.Int { return new(big.Int).Quo(ray, big.NewInt(2)) }

func TestKinkModelBaseRateAtZeroUtilisation(t *testing.T) {
	model := NewKinkModel(0.02, 0.15, 0.6, 0.8, 1_000)

	rate := model.BorrowRate("USDX", big.NewInt(0))
	if rate.Cmp(model.Base) != 0 {
		t.Fatalf("zero utilisation rate %s, want base %s", rate, model.Base)
	}
	if supply := model.SupplyRate("USDX", big.NewInt(0)); supply.Sign() != 0 {
		t.Fatalf("supply rate at zero utilisation: %s", supply)
	}
}

func TestKinkModelSlopeSteepensAboveKink(t *testing.T) {
	model := NewKinkModel(0.02, 0.15, 0.6, 0.8, 1_000)

	atKink := model.BorrowRate("USDX", cloneBig(model.Kink))
	below := model.BorrowRate("USDX", halfRay())
	above := model.BorrowRate("USDX", new(big.Int).Set(ray))

	if below.Cmp(atKink) >= 0 {
		t.Fatalf("rate not increasing: %s at 50%% vs %s at kink", below, atKink)
	}
	if above.Cmp(atKink) <= 0 {
		t.Fatalf("rate flat above kink: %s vs %s", above, atKink)
	}

	// The marginal rate above the kink must exceed the one below it.
	belowSlope := new(big.Int).Sub(atKink, below)
	aboveSlope := new(big.Int).Sub(above, atKink)
	// Normalize per unit of utilisation: below spans 0.3 RAY, above 0.2 RAY.
	belowSlope.Mul(belowSlope, big.NewInt(2))
	aboveSlope.Mul(aboveSlope, big.NewInt(3))
	if aboveSlope.Cmp(belowSlope) <= 0 {
		t.Fatalf("slope did not steepen past the kink: %s vs %s", aboveSlope, belowSlope)
	}
}

func TestKinkModelSupplyBelowBorrow(t *testing.T) {
	model := NewKinkModel(0.02, 0.15, 0.6, 0.8, 1_000)
	u := halfRay()

	borrow := model.BorrowRate("USDX", u)
	supply := model.SupplyRate("USDX", u)
	if supply.Cmp(borrow) >= 0 {
		t.Fatalf("supply rate %s not below borrow rate %s", supply, borrow)
	}

	// Without a spread the supply rate equals borrow*utilisation exactly.
	noSpread := NewKinkModel(0.02, 0.15, 0.6, 0.8, 0)
	want := rayMul(noSpread.BorrowRate("USDX", u), u)
	if got := noSpread.SupplyRate("USDX", u); got.Cmp(want) != 0 {
		t.Fatalf("zero-spread supply rate %s, want %s", got, want)
	}
}

func TestModelSetDispatch(t *testing.T) {
	flat := NewKinkModel(0.10, 0, 0, 0.8, 0)
	set := NewModelSet(DefaultKinkModel)
	set.SetModel("GOLD", flat)

	u := halfRay()
	if got := set.BorrowRate("GOLD", u); got.Cmp(flat.BorrowRate("GOLD", u)) != 0 {
		t.Fatalf("dedicated model not used: %s", got)
	}
	if got := set.BorrowRate("USDX", u); got.Cmp(DefaultKinkModel.BorrowRate("USDX", u)) != 0 {
		t.Fatalf("fallback model not used: %s", got)
	}

	set.SetModel("GOLD", nil)
	if got := set.BorrowRate("GOLD", u); got.Cmp(DefaultKinkModel.BorrowRate("GOLD", u)) != 0 {
		t.Fatalf("removed model still used: %s", got)
	}
}

func TestShareRoundingFavoursProtocol(t *testing.T) {
	// An index of 1.5 RAY makes 10 assets worth 6.66 shares.
	index := new(big.Int).Mul(ray, big.NewInt(3))
	index.Quo(index, big.NewInt(2))

	down := sharesDown(big.NewInt(10), index)
	up := sharesUp(big.NewInt(10), index)
	if down.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("sharesDown = %s, want 6", down)
	}
	if up.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("sharesUp = %s, want 7", up)
	}

	// Converting back never returns more assets than the shares are worth.
	if assets := assetsFromShares(down, index); assets.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("assetsFromShares(6) = %s, want 9", assets)
	}

	// An exact division rounds identically in both directions.
	even := sharesDown(big.NewInt(3), index)
	if even.Cmp(sharesUp(big.NewInt(3), index)) != 0 || even.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("exact division disagreed: %s", even)
	}
}

func TestIndexFactor(t *testing.T) {
	if got := indexFactor(nil, 100); got.Cmp(ray) != 0 {
		t.Fatalf("nil rate factor %s, want RAY", got)
	}
	if got := indexFactor(big.NewInt(5), 0); got.Cmp(ray) != 0 {
		t.Fatalf("zero elapsed factor %s, want RAY", got)
	}
	rate := big.NewInt(1_000)
	want := new(big.Int).Add(ray, big.NewInt(10_000))
	if got := indexFactor(rate, 10); got.Cmp(want) != 0 {
		t.Fatalf("factor %s, want %s", got, want)
	}
}
