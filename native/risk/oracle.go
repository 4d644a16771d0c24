package risk

import (
	"math/big"
	"sync"
)

// StaticOracle serves operator-configured reference prices. It backs
// deployments without a live feed and every test; prices are 1e8-scaled.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]*big.Int
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]*big.Int)}
}

// SetPrice installs or replaces the price for an asset. Non-positive prices
// remove the entry, which makes the asset unpriceable.
func (o *StaticOracle) SetPrice(asset string, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if price == nil || price.Sign() <= 0 {
		delete(o.prices, asset)
		return
	}
	o.prices[asset] = new(big.Int).Set(price)
}

func (o *StaticOracle) GetPrice(asset string) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return new(big.Int).Set(price), nil
}
