package lending

import "math/big"

// Read-only views consumed by the risk engine and the gateway. Values are
// derived from the stored indexes; callers that need fresh indexes run inside
// an operation that accrued first.

// Assets lists the initialized markets.
func (e *Engine) Assets() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.MarketAssets()
}

// SupplyAssets returns the asset value of the user's supply shares.
func (e *Engine) SupplyAssets(user [20]byte, asset string) (*big.Int, error) {
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	return assetsFromShares(pos.SupplyShares, market.SupplyIndex), nil
}

// DebtAssets returns the asset value of the user's debt shares.
func (e *Engine) DebtAssets(user [20]byte, asset string) (*big.Int, error) {
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	return assetsFromShares(pos.DebtShares, market.BorrowIndex), nil
}

// TotalSupplyAssets returns the market-wide supplied value.
func (e *Engine) TotalSupplyAssets(asset string) (*big.Int, error) {
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	return assetsFromShares(market.TotalSupplyShares, market.SupplyIndex), nil
}

// TotalDebtAssets returns the market-wide outstanding debt value.
func (e *Engine) TotalDebtAssets(asset string) (*big.Int, error) {
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	return assetsFromShares(market.TotalDebtShares, market.BorrowIndex), nil
}

// Market returns a copy of the stored market record.
func (e *Engine) Market(asset string) (*Market, error) {
	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	return market.Clone(), nil
}

// Position returns a copy of the user's stored position for an asset.
func (e *Engine) Position(user [20]byte, asset string) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.loadPosition(asset, user)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}
