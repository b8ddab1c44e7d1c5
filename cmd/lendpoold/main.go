package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lendpool/config"
	"lendpool/core/events"
	coretypes "lendpool/core/types"
	"lendpool/crypto"
	"lendpool/native/auction"
	nativecommon "lendpool/native/common"
	"lendpool/native/lending"
	"lendpool/observability/logging"
	"lendpool/rpc"
	"lendpool/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	dataDir := flag.String("data-dir", "", "override the configured data directory")
	flag.Parse()

	if err := run(*configPath, *dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "lendpoold: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dataDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logger := logging.Setup("lendpoold", cfg.Env)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "pool"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	state := storage.NewState(db)

	poolAddr := moduleAddress("lending/pool")
	auctionAddr := moduleAddress("auction/vault")

	nativeAsset, err := lending.NormalizeAsset(cfg.NativeAsset)
	if err != nil {
		return fmt.Errorf("normalize NativeAsset: %w", err)
	}

	emitter := &logEmitter{log: logger}

	ledger := lending.NewLedger(cfg.Lending.InterestRateBps)
	ledger.SetState(state)
	ledger.SetEmitter(emitter)

	risk := lending.NewRiskEngine(ledger, state, cfg.Lending.CollateralRatioPercent)

	auctions := auction.NewEngine(auctionAddr, nativeAsset, cfg.AuctionDurationSeconds)
	auctions.SetState(state)
	auctions.SetTransfer(state)
	auctions.SetEmitter(emitter)

	pool := lending.NewEngine(poolAddr, auctionAddr, cfg.Lending)
	pool.SetState(state)
	pool.SetLedger(ledger)
	pool.SetRiskEngine(risk)
	pool.SetTransfer(state)
	pool.SetOracle(state)
	pool.SetPriceStore(state)
	pool.SetAuctioneer(auctions)
	pool.SetEmitter(emitter)
	pool.SetRewardAsset(nativeAsset)

	var adminAuth nativecommon.Authorizer
	if admin := strings.TrimSpace(cfg.AdminAddress); admin != "" {
		adminAddr, err := crypto.DecodeAddress(admin)
		if err != nil {
			return fmt.Errorf("decode AdminAddress: %w", err)
		}
		adminAuth = nativecommon.NewSingleOwner(adminAddr)
		pool.SetAuthorizer(adminAuth)
		auctions.SetAuthorizer(nativecommon.NewAllowList(adminAddr, poolAddr))
	} else {
		// Without an admin every authorized operation is refused; the pool
		// still serves deposits, borrows, repayments and bids.
		logger.Warn("no AdminAddress configured; administrative operations disabled")
		auctions.SetAuthorizer(nativecommon.NewAllowList(poolAddr))
	}

	server := rpc.NewServer(pool, auctions, state, adminAuth, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// moduleAddress derives a deterministic custody address from an ASCII tag.
func moduleAddress(tag string) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	copy(raw, tag)
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

// logEmitter mirrors engine events into the structured log.
type logEmitter struct {
	log *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.log == nil || evt == nil {
		return
	}
	carrier, ok := evt.(interface{ Event() *coretypes.Event })
	if !ok {
		l.log.Info("event", "type", evt.EventType())
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	args := make([]any, 0, 2*len(payload.Attributes)+2)
	args = append(args, "type", payload.Type)
	for key, value := range payload.Attributes {
		args = append(args, key, value)
	}
	l.log.Info("event", args...)
}
