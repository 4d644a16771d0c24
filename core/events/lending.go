package events

import (
	"encoding/hex"
	"math/big"

	"hublend/core/types"
	"hublend/crypto"
)

const (
	TypeMarketInitialized = "lending.market_initialized"
	TypeSupplied          = "lending.supplied"
	TypeWithdrawn         = "lending.withdrawn"
	TypeBorrowed          = "lending.borrowed"
	TypeRepaid            = "lending.repaid"
	TypeLiquidated        = "lending.liquidated"
)

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addrAttr(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.NewAddress(crypto.HubPrefix, addr[:]).String()
}

func idAttr(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

type MarketInitialized struct {
	Asset string
}

func (MarketInitialized) EventType() string { return TypeMarketInitialized }

func (e MarketInitialized) Event() *types.Event {
	return &types.Event{
		Type:       TypeMarketInitialized,
		Attributes: map[string]string{"asset": e.Asset},
	}
}

type Supplied struct {
	Asset  string
	User   [20]byte
	Amount *big.Int
	Shares *big.Int
}

func (Supplied) EventType() string { return TypeSupplied }

func (e Supplied) Event() *types.Event {
	return &types.Event{
		Type: TypeSupplied,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"user":   addrAttr(e.User),
			"amount": bigAttr(e.Amount),
			"shares": bigAttr(e.Shares),
		},
	}
}

type Withdrawn struct {
	Asset  string
	User   [20]byte
	Amount *big.Int
	Shares *big.Int
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeWithdrawn,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"user":   addrAttr(e.User),
			"amount": bigAttr(e.Amount),
			"shares": bigAttr(e.Shares),
		},
	}
}

type Borrowed struct {
	Asset  string
	User   [20]byte
	Amount *big.Int
	Shares *big.Int
}

func (Borrowed) EventType() string { return TypeBorrowed }

func (e Borrowed) Event() *types.Event {
	return &types.Event{
		Type: TypeBorrowed,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"user":   addrAttr(e.User),
			"amount": bigAttr(e.Amount),
			"shares": bigAttr(e.Shares),
		},
	}
}

type Repaid struct {
	Asset  string
	User   [20]byte
	Amount *big.Int
}

func (Repaid) EventType() string { return TypeRepaid }

func (e Repaid) Event() *types.Event {
	return &types.Event{
		Type: TypeRepaid,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"user":   addrAttr(e.User),
			"amount": bigAttr(e.Amount),
		},
	}
}

type Liquidated struct {
	DebtAsset       string
	CollateralAsset string
	User            [20]byte
	Liquidator      [20]byte
	Repaid          *big.Int
	Seized          *big.Int
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidated,
		Attributes: map[string]string{
			"debtAsset":       e.DebtAsset,
			"collateralAsset": e.CollateralAsset,
			"user":            addrAttr(e.User),
			"liquidator":      addrAttr(e.Liquidator),
			"repaid":          bigAttr(e.Repaid),
			"seized":          bigAttr(e.Seized),
		},
	}
}
