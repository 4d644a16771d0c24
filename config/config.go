package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	MarketsFile   string `toml:"MarketsFile"`

	HubDomainID   uint64 `toml:"HubDomainID"`
	SpokeDomainID uint64 `toml:"SpokeDomainID"`
	ModuleVault   string `toml:"ModuleVault"`
	AdminAddress  string `toml:"AdminAddress"`

	LockWindowSeconds   uint64 `toml:"LockWindowSeconds"`
	RelayQuotaPerEpoch  uint32 `toml:"RelayQuotaPerEpoch"`
	RelayQuotaEpochSecs uint32 `toml:"RelayQuotaEpochSecs"`

	AuthJWTSecret   string  `toml:"AuthJWTSecret"`
	RateLimitPerSec float64 `toml:"RateLimitPerSec"`
	RateLimitBurst  int     `toml:"RateLimitBurst"`

	AuditDatabase string `toml:"AuditDatabase"`

	LogFile          string `toml:"LogFile"`
	LogMaxSizeMB     int    `toml:"LogMaxSizeMB"`
	LogMaxBackups    int    `toml:"LogMaxBackups"`
	LogMaxAgeDays    int    `toml:"LogMaxAgeDays"`
	OTLPEndpoint     string `toml:"OTLPEndpoint"`
	OTLPInsecure     bool   `toml:"OTLPInsecure"`
	TelemetryTrace   bool   `toml:"TelemetryTrace"`
	TelemetryMetrics bool   `toml:"TelemetryMetrics"`
}

// Load reads the node configuration, writing a default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if strings.TrimSpace(cfg.ModuleVault) == "" {
		return nil, fmt.Errorf("config file %s must set ModuleVault", path)
	}
	if cfg.HubDomainID == cfg.SpokeDomainID {
		return nil, fmt.Errorf("config file %s must use distinct hub and spoke domain ids", path)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8680"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./hublend-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.MarketsFile) == "" {
		cfg.MarketsFile = "./markets.yaml"
	}
	if cfg.LockWindowSeconds == 0 {
		cfg.LockWindowSeconds = 1800
	}
	if cfg.RelayQuotaPerEpoch == 0 {
		cfg.RelayQuotaPerEpoch = 600
	}
	if cfg.RelayQuotaEpochSecs == 0 {
		cfg.RelayQuotaEpochSecs = 3600
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		HubDomainID:   1,
		SpokeDomainID: 2,
	}
	cfg.applyDefaults()

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
