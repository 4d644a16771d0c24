package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// MarketConfig describes one asset market: risk limits, the interest model
// and a static reference price for deployments without a live oracle feed.
type MarketConfig struct {
	Asset                   string `yaml:"asset"`
	Decimals                uint8  `yaml:"decimals"`
	MaxLTVBps               uint64 `yaml:"maxLtvBps"`
	LiquidationThresholdBps uint64 `yaml:"liquidationThresholdBps"`
	LiquidationBonusBps     uint64 `yaml:"liquidationBonusBps"`
	SupplyCap               string `yaml:"supplyCap"`
	BorrowCap               string `yaml:"borrowCap"`
	// Price is the static reference price scaled by 1e8.
	Price string `yaml:"price"`

	Interest InterestConfig `yaml:"interest"`
}

// InterestConfig parameterizes the kinked rate model with annualized rates.
type InterestConfig struct {
	BaseAPR   float64 `yaml:"baseApr"`
	Slope1APR float64 `yaml:"slope1Apr"`
	Slope2APR float64 `yaml:"slope2Apr"`
	Kink      float64 `yaml:"kink"`
	SpreadBps uint64  `yaml:"spreadBps"`
}

// MarketsFile is the on-disk market catalogue the daemon loads at startup.
type MarketsFile struct {
	Markets []MarketConfig `yaml:"markets"`
}

// LoadMarkets parses and validates the YAML market catalogue.
func LoadMarkets(path string) (*MarketsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file MarketsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("markets file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(file.Markets))
	for i := range file.Markets {
		m := &file.Markets[i]
		if m.Asset == "" {
			return nil, fmt.Errorf("markets file %s: entry %d missing asset", path, i)
		}
		if seen[m.Asset] {
			return nil, fmt.Errorf("markets file %s: duplicate asset %s", path, m.Asset)
		}
		seen[m.Asset] = true
		if m.LiquidationThresholdBps < m.MaxLTVBps {
			return nil, fmt.Errorf("markets file %s: %s liquidation threshold below max LTV", path, m.Asset)
		}
		for _, field := range []struct {
			name  string
			value string
		}{{"supplyCap", m.SupplyCap}, {"borrowCap", m.BorrowCap}, {"price", m.Price}} {
			if field.value == "" {
				continue
			}
			if _, ok := new(big.Int).SetString(field.value, 10); !ok {
				return nil, fmt.Errorf("markets file %s: %s has invalid %s", path, m.Asset, field.name)
			}
		}
	}
	return &file, nil
}

// BigAmount parses a decimal amount field, returning nil for the empty
// string.
func BigAmount(value string) *big.Int {
	if value == "" {
		return nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil
	}
	return amount
}
