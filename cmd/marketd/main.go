package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Namit1867/NFT-Marketplace/config"
	"github.com/Namit1867/NFT-Marketplace/core/events"
	coretypes "github.com/Namit1867/NFT-Marketplace/core/types"
	"github.com/Namit1867/NFT-Marketplace/native/market"
	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
	"github.com/Namit1867/NFT-Marketplace/observability/logging"
	"github.com/Namit1867/NFT-Marketplace/observability/metrics"
	"github.com/Namit1867/NFT-Marketplace/rpc"
	"github.com/Namit1867/NFT-Marketplace/state"
	"github.com/Namit1867/NFT-Marketplace/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("marketd", cfg.Environment, logging.Options{
		FilePath:   cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
	})

	var db storage.Database
	if strings.EqualFold(cfg.Environment, "local") {
		db = storage.NewMemDB()
		logger.Warn("Running with in-memory storage; state is lost on exit")
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		db = leveldb
	}
	defer db.Close()

	st := state.NewMarketState(db)

	admin := resolveAddress(cfg.Admin, "market/admin")
	treasury := resolveAddress(cfg.Treasury, "market/treasury")
	vaultAddr := moduleAddress("market/vault")
	marketAddr := moduleAddress("market/engine")
	stableAddr := moduleAddress("market/stablecoin")

	// Reference in-process ledgers stand in for the chain's token contracts.
	registry := token.NewMemRegistry()
	native := token.NewCoinLedger()
	stable := token.NewLedger20()
	registry.RegisterContract(stableAddr)
	registry.Register721(moduleAddress("market/collection/721"), token.NewLedger721())
	registry.Register1155(moduleAddress("market/collection/1155"), token.NewLedger1155())

	emitter := newLogEmitter(logger, metrics.Market())

	escrow := vault.NewEngine(admin, vaultAddr)
	escrow.SetState(st)
	escrow.SetRegistry(registry)
	escrow.SetNativeLedger(native)
	escrow.SetEmitter(emitter)

	marketplace := market.NewEngine(admin, marketAddr)
	marketplace.SetState(st)
	marketplace.SetVault(escrow, vaultAddr)
	marketplace.SetMode(escrow.ModeSwitch())
	marketplace.SetRegistry(registry)
	marketplace.SetStablecoin(stable)
	marketplace.SetEmitter(emitter)

	if err := escrow.RotateStablecoin(admin, stableAddr, stable); err != nil {
		panic(fmt.Sprintf("Failed to wire stablecoin: %v", err))
	}
	if err := escrow.RotateMarketplace(admin, marketAddr, marketplace); err != nil {
		panic(fmt.Sprintf("Failed to wire marketplace: %v", err))
	}
	if err := escrow.SetAuthorized(admin, marketAddr, true); err != nil {
		panic(fmt.Sprintf("Failed to authorize marketplace: %v", err))
	}
	if err := marketplace.SetTreasury(admin, treasury); err != nil {
		panic(fmt.Sprintf("Failed to set treasury: %v", err))
	}
	if err := marketplace.SetTradeFeeBps(admin, cfg.TradeFeeBps); err != nil {
		panic(fmt.Sprintf("Failed to set trade fee: %v", err))
	}
	if err := marketplace.SetAuctionFeeBps(admin, cfg.AuctionFeeBps); err != nil {
		panic(fmt.Sprintf("Failed to set auction fee: %v", err))
	}
	if err := marketplace.SetBidTimeBuffer(admin, cfg.BidTimeBuffer); err != nil {
		panic(fmt.Sprintf("Failed to set bid time buffer: %v", err))
	}

	server := rpc.NewServer(marketplace, escrow)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("RPC server listening", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	logger.Info("Marketplace node started",
		slog.String("admin", hex.EncodeToString(admin[:])),
		slog.String("treasury", hex.EncodeToString(treasury[:])),
		slog.String("vault", hex.EncodeToString(vaultAddr[:])),
		slog.String("market", hex.EncodeToString(marketAddr[:])),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("RPC shutdown failed", slog.Any("error", err))
	}
}

// resolveAddress parses a configured address, falling back to a deterministic
// module address when the setting is empty.
func resolveAddress(configured, label string) [20]byte {
	if strings.TrimSpace(configured) == "" {
		return moduleAddress(label)
	}
	addr, err := config.ParseAddress(configured)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse %s address: %v", label, err))
	}
	return addr
}

func moduleAddress(label string) [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte(label))
	copy(addr[:], hash[len(hash)-20:])
	return addr
}

// logEmitter logs every engine event and feeds the Prometheus counters.
type logEmitter struct {
	logger  *slog.Logger
	metrics *metrics.MarketMetrics
}

func newLogEmitter(logger *slog.Logger, m *metrics.MarketMetrics) *logEmitter {
	return &logEmitter{logger: logger, metrics: m}
}

func (l *logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *coretypes.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for k, v := range payload.Attributes {
				attrs = append(attrs, slog.String(k, v))
			}
		}
	}
	l.logger.Info("event", attrs...)
	l.observe(evt.EventType())
}

func (l *logEmitter) observe(eventType string) {
	switch eventType {
	case market.EventTypeSalePurchased:
		l.metrics.ObserveSettlement("sale")
	case market.EventTypeAuctionFinished:
		l.metrics.ObserveSettlement("auction")
	case market.EventTypeAuctionBoughtOut:
		l.metrics.ObserveSettlement("buyout")
	case market.EventTypeBidPlaced:
		l.metrics.ObserveBid()
	case vault.EventTypeAssetDeposited:
		l.metrics.ObserveDeposit()
	case vault.EventTypeAssetReleased:
		l.metrics.ObserveRelease()
	case vault.EventTypeAssetEmergencyWithdrawn:
		l.metrics.ObserveEmergencyWithdrawal("asset")
	case vault.EventTypeCurrencyEmergencyWithdrawn:
		l.metrics.ObserveEmergencyWithdrawal("currency")
	}
}
