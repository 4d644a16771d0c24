package state

import (
	"errors"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"hublend/native/lending"
	"hublend/storage"
)

var errNegativeBalance = errors.New("state: balance must not be negative")

// storedMarket is the persisted shape of a market record. Big integers are
// kept as pointers so RLP renders absent values as zero.
type storedMarket struct {
	Asset             string
	TotalSupplyShares *big.Int
	TotalDebtShares   *big.Int
	SupplyIndex       *big.Int
	BorrowIndex       *big.Int
	Reserves          *big.Int
	LastAccrualTime   uint64
	Initialized       bool
}

type storedPosition struct {
	Asset        string
	User         [20]byte
	SupplyShares *big.Int
	DebtShares   *big.Int
}

// GetMarket returns the stored market for an asset, or nil when absent.
func (m *Manager) GetMarket(asset string) (*lending.Market, error) {
	var rec storedMarket
	ok, err := m.getRLP([]byte(prefixMarket+asset), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Market{
		Asset:             rec.Asset,
		TotalSupplyShares: rec.TotalSupplyShares,
		TotalDebtShares:   rec.TotalDebtShares,
		SupplyIndex:       rec.SupplyIndex,
		BorrowIndex:       rec.BorrowIndex,
		Reserves:          rec.Reserves,
		LastAccrualTime:   rec.LastAccrualTime,
		Initialized:       rec.Initialized,
	}, nil
}

// PutMarket persists a market record and keeps the asset index current.
func (m *Manager) PutMarket(market *lending.Market) error {
	if market == nil || market.Asset == "" {
		return errors.New("state: market must name an asset")
	}
	rec := storedMarket{
		Asset:             market.Asset,
		TotalSupplyShares: market.TotalSupplyShares,
		TotalDebtShares:   market.TotalDebtShares,
		SupplyIndex:       market.SupplyIndex,
		BorrowIndex:       market.BorrowIndex,
		Reserves:          market.Reserves,
		LastAccrualTime:   market.LastAccrualTime,
		Initialized:       market.Initialized,
	}
	if err := m.putRLP([]byte(prefixMarket+market.Asset), rec); err != nil {
		return err
	}
	return m.indexMarketAsset(market.Asset)
}

func (m *Manager) indexMarketAsset(asset string) error {
	assets, err := m.MarketAssets()
	if err != nil {
		return err
	}
	for _, existing := range assets {
		if existing == asset {
			return nil
		}
	}
	assets = append(assets, asset)
	sort.Strings(assets)
	return m.putRLP([]byte(prefixMarketIndex), assets)
}

// MarketAssets lists every asset with a market record, sorted for a stable
// iteration order.
func (m *Manager) MarketAssets() ([]string, error) {
	var assets []string
	if _, err := m.getRLP([]byte(prefixMarketIndex), &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// GetPosition returns the stored position, or nil when the user has none.
func (m *Manager) GetPosition(asset string, user [20]byte) (*lending.Position, error) {
	var rec storedPosition
	ok, err := m.getRLP(assetAddrKey(prefixPosition, asset, user), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Position{
		Asset:        rec.Asset,
		User:         rec.User,
		SupplyShares: rec.SupplyShares,
		DebtShares:   rec.DebtShares,
	}, nil
}

func (m *Manager) PutPosition(position *lending.Position) error {
	if position == nil || position.Asset == "" {
		return errors.New("state: position must name an asset")
	}
	rec := storedPosition{
		Asset:        position.Asset,
		User:         position.User,
		SupplyShares: position.SupplyShares,
		DebtShares:   position.DebtShares,
	}
	return m.putRLP(assetAddrKey(prefixPosition, position.Asset, position.User), rec)
}

// Balance returns the material asset balance held by an address.
func (m *Manager) Balance(addr [20]byte, asset string) (*big.Int, error) {
	raw, err := m.db.Get(assetAddrKey(prefixBalance, asset, addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return new(uint256.Int).SetBytes(raw).ToBig(), nil
}

// SetBalance overwrites the material asset balance of an address. Balances
// are unsigned; callers enforce sufficiency before debiting.
func (m *Manager) SetBalance(addr [20]byte, asset string, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return errNegativeBalance
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return errors.New("state: balance overflows uint256")
	}
	return m.db.Put(assetAddrKey(prefixBalance, asset, addr), value.Bytes())
}
