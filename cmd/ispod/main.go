package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DEGAorg/DEGA-ETH-ISPO/config"
	"github.com/DEGAorg/DEGA-ETH-ISPO/core"
	"github.com/DEGAorg/DEGA-ETH-ISPO/integrations/steth"
	"github.com/DEGAorg/DEGA-ETH-ISPO/native/ispo"
	"github.com/DEGAorg/DEGA-ETH-ISPO/observability/logging"
	"github.com/DEGAorg/DEGA-ETH-ISPO/rpc"
	"github.com/DEGAorg/DEGA-ETH-ISPO/storage"
)

const operatorKeyEnv = "ISPO_OPERATOR_KEY"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ISPO_ENV"))
	logger := logging.Setup("ispod", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatal(logger, "load config", err)
	}

	vault, err := dialVault(cfg)
	if err != nil {
		fatal(logger, "connect vault", err)
	}
	defer vault.Close()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		fatal(logger, "open database", err)
	}

	node := core.NewNode(db, vault, common.HexToAddress(cfg.PoolAddress), logger)
	defer node.Close()

	if err := seedDepositCap(cfg, node.Engine()); err != nil {
		fatal(logger, "apply deposit cap", err)
	}

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "address", cfg.MetricsAddress)
	}

	server := rpc.NewServer(node)
	go func() {
		logger.Info("serving json-rpc", "address", cfg.RPCAddress, "network", cfg.NetworkName)
		if err := server.Start(cfg.RPCAddress); err != nil {
			fatal(logger, "rpc server", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
}

func dialVault(cfg *config.Config) (*steth.Client, error) {
	if cfg.VaultRPCURL == "" {
		return nil, fmt.Errorf("VaultRPCURL is required")
	}
	if cfg.VaultContract == "" {
		return nil, fmt.Errorf("VaultContract is required")
	}
	keyHex := strings.TrimSpace(os.Getenv(operatorKeyEnv))
	if keyHex == "" {
		return nil, fmt.Errorf("%s must hold the operator private key", operatorKeyEnv)
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}
	return steth.Dial(cfg.VaultRPCURL, common.HexToAddress(cfg.VaultContract), key, big.NewInt(cfg.ChainID))
}

// seedDepositCap applies the configured cap once, leaving any cap that was
// later adjusted over RPC untouched.
func seedDepositCap(cfg *config.Config, engine *ispo.Engine) error {
	cap, err := cfg.ParseMaxTotalDeposit()
	if err != nil {
		return err
	}
	if cap == nil || cap.Sign() <= 0 {
		return nil
	}
	params, err := engine.PoolParams()
	if err != nil {
		return err
	}
	if params.MaxTotalDeposit != nil && params.MaxTotalDeposit.Sign() > 0 {
		return nil
	}
	return engine.SetMaxTotalDeposit(cap)
}

func fatal(logger *slog.Logger, stage string, err error) {
	logger.Error(stage, "error", err)
	os.Exit(1)
}
