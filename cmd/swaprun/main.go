// ====================================
// File: cmd/swaprun/main.go
// ====================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-orchestrator/internal/config"
	"github.com/rovshanmuradov/swap-orchestrator/internal/dexclient"
	"github.com/rovshanmuradov/swap-orchestrator/internal/logging"
	"github.com/rovshanmuradov/swap-orchestrator/internal/orchestrator"
	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
	"github.com/rovshanmuradov/swap-orchestrator/internal/utils"
	"github.com/rovshanmuradov/swap-orchestrator/internal/walletsrc"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	walletsPath := flag.String("wallets", "configs/wallets.csv", "Path to wallet CSV file")
	requestPath := flag.String("request", "configs/request.json", "Path to swap request JSON file")
	reportPath := flag.String("report", "", "Path to write the run report JSON (stdout if empty)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	req, err := loadRequest(*requestPath)
	if err != nil {
		appLogger.Fatal("failed to load swap request", zap.Error(err))
	}

	rpcEndpoint := cfg.RPCList[0]
	wallets, err := walletsrc.Load(*walletsPath, rpcEndpoint)
	if err != nil {
		appLogger.Fatal("failed to load wallets", zap.Error(err))
	}

	client := dexclient.New(cfg.AggregatorBaseURL, cfg.HTTPTimeout(), appLogger.Logger)

	orch, err := orchestrator.New(orchestrator.Config{
		WalletSource: wallets,
		DexClient:    client,
		Logger:       appLogger.Logger,
	})
	if err != nil {
		appLogger.Fatal("failed to construct orchestrator", zap.Error(err))
	}

	bus, outcome := orch.StartRun(rootCtx, req)

	program := tea.NewProgram(newProgressModel(bus.Subscribe()))
	if _, err := program.Run(); err != nil {
		utils.HandleError(appLogger.Logger, err, "progress renderer exited with error")
	}

	result := <-outcome
	if result.Err != nil {
		utils.HandleError(appLogger.Logger, result.Err, "run ended with error")
	}

	if err := writeReport(result.Report, *reportPath); err != nil {
		appLogger.Fatal("failed to write run report", zap.Error(err))
	}
}

func loadRequest(path string) (swap.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return swap.Request{}, err
	}
	var req swap.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return swap.Request{}, err
	}
	return req, nil
}

func writeReport(report swap.RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
