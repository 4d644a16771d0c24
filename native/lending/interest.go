package lending

import "math/big"

const secondsPerYear = 31_536_000

// RateModel resolves the per-second borrow and supply rates for a market at
// the supplied utilisation. Rates and utilisation are RAY-scaled.
type RateModel interface {
	BorrowRate(asset string, utilisation *big.Int) *big.Int
	SupplyRate(asset string, utilisation *big.Int) *big.Int
}

// KinkModel implements the standard two-slope interest curve: a shallow slope
// below the kink utilisation and a steep slope above it. All rate fields are
// per-second values scaled by RAY; Kink is a RAY-scaled utilisation ratio.
// SpreadBps is the share of borrow interest withheld from suppliers, which the
// accrual loop books into market reserves.
type KinkModel struct {
	Base      *big.Int
	Slope1    *big.Int
	Slope2    *big.Int
	Kink      *big.Int
	SpreadBps uint64
}

// NewKinkModel constructs a kink model from annual rates expressed as
// decimals (a 2% base APR is 0.02) and a kink utilisation ratio (0.8 = 80%).
func NewKinkModel(baseAPR, slope1APR, slope2APR, kink float64, spreadBps uint64) *KinkModel {
	return &KinkModel{
		Base:      perSecondRay(baseAPR),
		Slope1:    perSecondRay(slope1APR),
		Slope2:    perSecondRay(slope2APR),
		Kink:      ratioRay(kink),
		SpreadBps: spreadBps,
	}
}

func perSecondRay(annual float64) *big.Int {
	rat := new(big.Rat).SetFloat64(annual)
	if rat == nil || rat.Sign() <= 0 {
		return big.NewInt(0)
	}
	rat.Quo(rat, new(big.Rat).SetUint64(secondsPerYear))
	rat.Mul(rat, new(big.Rat).SetInt(ray))
	return new(big.Int).Quo(rat.Num(), rat.Denom())
}

func ratioRay(ratio float64) *big.Int {
	rat := new(big.Rat).SetFloat64(ratio)
	if rat == nil || rat.Sign() <= 0 {
		return big.NewInt(0)
	}
	rat.Mul(rat, new(big.Rat).SetInt(ray))
	return new(big.Int).Quo(rat.Num(), rat.Denom())
}

// Clone returns a deep copy of the model.
func (m *KinkModel) Clone() *KinkModel {
	if m == nil {
		return nil
	}
	return &KinkModel{
		Base:      cloneBig(m.Base),
		Slope1:    cloneBig(m.Slope1),
		Slope2:    cloneBig(m.Slope2),
		Kink:      cloneBig(m.Kink),
		SpreadBps: m.SpreadBps,
	}
}

// BorrowRate returns base + slope1*u below the kink and adds slope2 on the
// excess utilisation above it.
func (m *KinkModel) BorrowRate(_ string, utilisation *big.Int) *big.Int {
	if m == nil {
		return big.NewInt(0)
	}
	rate := cloneBig(m.Base)
	if utilisation == nil || utilisation.Sign() <= 0 {
		return rate
	}
	kink := cloneBig(m.Kink)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		return rate.Add(rate, rayMul(m.Slope1, utilisation))
	}
	rate.Add(rate, rayMul(m.Slope1, kink))
	excess := new(big.Int).Sub(utilisation, kink)
	return rate.Add(rate, rayMul(m.Slope2, excess))
}

// SupplyRate is the borrow rate earned pro rata by suppliers at the current
// utilisation, less the protocol spread.
func (m *KinkModel) SupplyRate(asset string, utilisation *big.Int) *big.Int {
	if m == nil || utilisation == nil || utilisation.Sign() <= 0 {
		return big.NewInt(0)
	}
	rate := rayMul(m.BorrowRate(asset, utilisation), utilisation)
	spread := m.SpreadBps
	if spread > 10_000 {
		spread = 10_000
	}
	if spread == 0 {
		return rate
	}
	keep := new(big.Int).SetUint64(10_000 - spread)
	rate.Mul(rate, keep)
	return rate.Quo(rate, basisPoints)
}

// DefaultKinkModel mirrors a conservative money-market curve: 2% base,
// 15% slope to an 80% kink, 60% slope beyond it, 10% reserve spread.
var DefaultKinkModel = NewKinkModel(0.02, 0.15, 0.6, 0.8, 1_000)

// ModelSet dispatches to a per-asset rate model, falling back to a default
// for assets without a dedicated curve.
type ModelSet struct {
	models   map[string]RateModel
	fallback RateModel
}

func NewModelSet(fallback RateModel) *ModelSet {
	if fallback == nil {
		fallback = DefaultKinkModel
	}
	return &ModelSet{models: make(map[string]RateModel), fallback: fallback}
}

// SetModel installs the rate model for one asset.
func (s *ModelSet) SetModel(asset string, model RateModel) {
	if model == nil {
		delete(s.models, asset)
		return
	}
	s.models[asset] = model
}

func (s *ModelSet) resolve(asset string) RateModel {
	if model, ok := s.models[asset]; ok {
		return model
	}
	return s.fallback
}

func (s *ModelSet) BorrowRate(asset string, utilisation *big.Int) *big.Int {
	return s.resolve(asset).BorrowRate(asset, utilisation)
}

func (s *ModelSet) SupplyRate(asset string, utilisation *big.Int) *big.Int {
	return s.resolve(asset).SupplyRate(asset, utilisation)
}
