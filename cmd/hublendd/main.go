package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hublend/audit"
	"hublend/config"
	"hublend/core/events"
	"hublend/core/state"
	"hublend/crypto"
	"hublend/gateway"
	gwmiddleware "hublend/gateway/middleware"
	nativecommon "hublend/native/common"
	"hublend/native/lending"
	"hublend/native/lock"
	"hublend/native/risk"
	"hublend/native/settlement"
	"hublend/observability"
	"hublend/observability/logging"
	"hublend/observability/otel"
	"hublend/storage"
)

func main() {
	configPath := flag.String("config", "./hublend.toml", "path to the node configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "hublendd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var fileCfg *logging.FileConfig
	if cfg.LogFile != "" {
		fileCfg = &logging.FileConfig{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
		}
	}
	logger := logging.Setup("hublendd", cfg.Environment, fileCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "hublendd",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			Metrics:     cfg.TelemetryMetrics,
			Traces:      cfg.TelemetryTrace,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	var db storage.Database
	if cfg.DataDir == ":memory:" {
		db = storage.NewMemDB()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		db = ldb
	}
	defer db.Close()

	manager := state.NewManager(db)

	vaultAddr, err := crypto.DecodeAddress(cfg.ModuleVault)
	if err != nil {
		return fmt.Errorf("parse module vault: %w", err)
	}
	if cfg.AdminAddress != "" {
		adminAddr, err := crypto.DecodeAddress(cfg.AdminAddress)
		if err != nil {
			return fmt.Errorf("parse admin address: %w", err)
		}
		if err := manager.GrantRole(state.RoleAdmin, adminAddr.Raw()); err != nil {
			return fmt.Errorf("grant admin role: %w", err)
		}
	}

	var emitter events.Emitter = events.NoopEmitter{}
	var auditStore *audit.Store
	if cfg.AuditDatabase != "" {
		auditStore, err = audit.Open(cfg.AuditDatabase, logger)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer auditStore.Close()
		emitter = events.MultiEmitter{auditStore}
	}

	oracle := risk.NewStaticOracle()
	riskEngine := risk.NewEngine()
	riskEngine.SetOracle(oracle)
	riskEngine.SetReservations(manager)

	rates := lending.NewModelSet(lending.DefaultKinkModel)
	ledger := lending.NewEngine(vaultAddr.Raw())
	ledger.SetState(manager)
	ledger.SetRateModel(rates)
	ledger.SetRiskChecker(riskEngine)
	ledger.SetPauses(manager)
	ledger.SetEmitter(emitter)
	riskEngine.SetLedger(ledger)

	authority := lock.NewAuthority(manager, cfg.HubDomainID, cfg.SpokeDomainID)
	locks := lock.NewEngine(authority)
	locks.SetState(manager)
	locks.SetRiskChecker(riskEngine)
	locks.SetLiquidityView(ledger)
	locks.SetPauses(manager)
	locks.SetEmitter(emitter)
	locks.SetLockWindow(time.Duration(cfg.LockWindowSeconds) * time.Second)

	settler := settlement.NewEngine(cfg.HubDomainID, cfg.SpokeDomainID)
	settler.SetState(manager)
	settler.SetOverlays(manager)
	settler.SetLedger(ledger)
	settler.SetLocks(locks)
	settler.SetVerifier(settlement.CommitmentVerifier{})
	settler.SetRelayQuota(nativecommon.Quota{
		MaxRequestsPerEpoch: cfg.RelayQuotaPerEpoch,
		EpochSeconds:        cfg.RelayQuotaEpochSecs,
	})
	settler.SetPauses(manager)
	settler.SetEmitter(emitter)

	if err := installMarkets(cfg, ledger, riskEngine, oracle, rates); err != nil {
		return err
	}

	handler := gateway.New(gateway.Config{
		Ledger:     ledger,
		Risk:       riskEngine,
		Locks:      locks,
		Settlement: settler,
		State:      manager,
		Audit:      auditStore,
		Auth: gwmiddleware.AuthConfig{
			Enabled:    cfg.AuthJWTSecret != "",
			HMACSecret: cfg.AuthJWTSecret,
		},
		RateLimit: gwmiddleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		Metrics:   observability.Metrics(),
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress, "hubDomain", cfg.HubDomainID, "spokeDomain", cfg.SpokeDomainID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// installMarkets loads the market catalogue and seeds any market the state
// does not know yet. Risk parameters, prices and rate curves are refreshed on
// every start so the file remains the source of truth for governance knobs.
func installMarkets(cfg *config.Config, ledger *lending.Engine, riskEngine *risk.Engine, oracle *risk.StaticOracle, rates *lending.ModelSet) error {
	markets, err := config.LoadMarkets(cfg.MarketsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load markets: %w", err)
	}
	for _, m := range markets.Markets {
		if err := ledger.InitializeMarket(m.Asset); err != nil && !errors.Is(err, lending.ErrMarketExists) {
			return fmt.Errorf("initialize market %s: %w", m.Asset, err)
		}
		riskEngine.SetAssetParams(m.Asset, risk.AssetParams{
			Enabled:                 true,
			Decimals:                m.Decimals,
			MaxLTVBps:               m.MaxLTVBps,
			LiquidationThresholdBps: m.LiquidationThresholdBps,
			LiquidationBonusBps:     m.LiquidationBonusBps,
			SupplyCap:               config.BigAmount(m.SupplyCap),
			BorrowCap:               config.BigAmount(m.BorrowCap),
		})
		if price := config.BigAmount(m.Price); price != nil {
			oracle.SetPrice(m.Asset, price)
		}
		if m.Interest != (config.InterestConfig{}) {
			rates.SetModel(m.Asset, lending.NewKinkModel(
				m.Interest.BaseAPR,
				m.Interest.Slope1APR,
				m.Interest.Slope2APR,
				m.Interest.Kink,
				m.Interest.SpreadBps,
			))
		}
	}
	return nil
}
