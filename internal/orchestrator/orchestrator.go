// =================================
// File: internal/orchestrator/orchestrator.go
// =================================
// Package orchestrator wires AmountPlanner, SwapRunner, Scheduler,
// ProgressBus and ResultAggregator into one run. It is the only
// component holding a dependency graph: Orchestrator -> Scheduler ->
// SwapRunner -> DexClient; events flow back through the ProgressBus
// channel rather than through calls, per the design notes' one-way
// dependency graph.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-orchestrator/internal/aggregator"
	"github.com/rovshanmuradov/swap-orchestrator/internal/planner"
	"github.com/rovshanmuradov/swap-orchestrator/internal/progressbus"
	"github.com/rovshanmuradov/swap-orchestrator/internal/runner"
	"github.com/rovshanmuradov/swap-orchestrator/internal/scheduler"
	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
	"github.com/rovshanmuradov/swap-orchestrator/internal/walletsrc"
)

// DexClient is the subset of dexclient.Client the orchestrator wires
// into the runner for each wallet.
type DexClient interface {
	runner.DexClient
}

// Config is the explicit dependency bundle for one Orchestrator; no
// module-level state is held anywhere in this package, per the design
// notes' replacement for global mutable singletons.
type Config struct {
	WalletSource walletsrc.Source
	DexClient    DexClient
	Logger       *zap.Logger
	EventBuffer  int // per-subscriber ProgressBus channel capacity
}

// Orchestrator runs one swap.Request to completion against a wallet
// fleet and returns the resulting RunReport.
type Orchestrator struct {
	wallets   walletsrc.Source
	dexClient DexClient
	logger    *zap.Logger
	eventBuf  int
}

// New builds an Orchestrator from an explicit Config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.WalletSource == nil {
		return nil, fmt.Errorf("orchestrator: wallet source is required")
	}
	if cfg.DexClient == nil {
		return nil, fmt.Errorf("orchestrator: dex client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = 256
	}
	return &Orchestrator{
		wallets:   cfg.WalletSource,
		dexClient: cfg.DexClient,
		logger:    logger.Named("orchestrator"),
		eventBuf:  buf,
	}, nil
}

// Outcome is what a started run eventually produces.
type Outcome struct {
	Report swap.RunReport
	Err    error
}

// StartRun validates req, constructs the run's ProgressBus and begins
// execution in the background, returning the bus immediately so a
// caller can Subscribe before any event is published. The returned
// channel receives exactly one Outcome once the run reaches a terminal
// report; the bus is closed at that point too.
func (o *Orchestrator) StartRun(ctx context.Context, req swap.Request) (*progressbus.Bus, <-chan Outcome) {
	runID := uuid.New().String()
	runLogger := o.logger.With(zap.String("run_id", runID))
	bus := progressbus.New(o.eventBuf, runLogger)
	outcome := make(chan Outcome, 1)

	go func() {
		report, err := o.run(ctx, req, runID, runLogger, bus)
		bus.Close()
		outcome <- Outcome{Report: report, Err: err}
		close(outcome)
	}()

	return bus, outcome
}

// Run is a synchronous convenience wrapper over StartRun for callers
// that do not need to consume progress events as they happen.
func (o *Orchestrator) Run(ctx context.Context, req swap.Request) (swap.RunReport, error) {
	_, outcome := o.StartRun(ctx, req)
	result := <-outcome
	return result.Report, result.Err
}

func (o *Orchestrator) run(ctx context.Context, req swap.Request, runID string, runLogger *zap.Logger, bus *progressbus.Bus) (swap.RunReport, error) {
	startedAt := time.Now()
	agg := aggregator.New(runID, startedAt)

	if err := req.Validate(); err != nil {
		runLogger.Warn("run aborted: invalid configuration", zap.Error(err))
		return swap.RunReport{
			RunID:               runID,
			Status:              swap.RunAbortedConfig,
			StartedAt:           startedAt,
			EndedAt:             time.Now(),
			ErrorClassification: map[swap.ErrorKind]int{swap.ErrKindConfig: 1},
		}, err
	}

	entries := o.wallets.List()
	balances := make([]planner.Balance, len(entries))
	for i, e := range entries {
		amount, err := o.wallets.Balance(ctx, e.Address, req.InputToken.Mint)
		if err != nil {
			runLogger.Warn("run aborted: balance snapshot failed",
				zap.Int("wallet_index", e.Index), zap.Error(err))
			return swap.RunReport{
				RunID:               runID,
				Status:              swap.RunAbortedConfig,
				StartedAt:           startedAt,
				EndedAt:             time.Now(),
				ErrorClassification: map[swap.ErrorKind]int{swap.ErrKindConfig: 1},
			}, fmt.Errorf("balance snapshot for wallet %d: %w", e.Index, err)
		}
		balances[i] = planner.Balance{
			Wallet: swap.Wallet{Index: e.Index, Address: e.Address, HasSigningKey: true},
			Amount: amount,
		}
	}

	plans, err := planner.Plan(req, balances, runID)
	if err != nil {
		runLogger.Warn("run aborted: planning failed", zap.Error(err))
		return swap.RunReport{
			RunID:               runID,
			Status:              swap.RunAbortedConfig,
			StartedAt:           startedAt,
			EndedAt:             time.Now(),
			ErrorClassification: map[swap.ErrorKind]int{swap.ErrKindConfig: 1},
		}, err
	}

	keyProviders := make(map[int]runner.PrivateKeyProvider, len(entries))
	for _, e := range entries {
		provider := e.PrivateKeyProvider
		keyProviders[e.Index] = func() (string, error) {
			key, err := provider()
			if err != nil {
				return "", err
			}
			return key.String(), nil
		}
	}

	swapRunner := runner.New(o.dexClient, runLogger)

	// Scheduler.Run invokes runWallet concurrently from multiple
	// goroutines under parallel/batch modes. The Aggregator is not
	// goroutine-safe, so receipts are sent over a channel and folded in
	// by a single consumer (agg.Drain) rather than added directly here.
	receiptCh := make(chan swap.Receipt, len(plans))
	drainDone := make(chan struct{})
	go func() {
		agg.Drain(receiptCh)
		close(drainDone)
	}()

	runWallet := func(ctx context.Context, plan swap.WalletPlan) swap.Receipt {
		receipt := swapRunner.Run(ctx, req, plan, keyProviders[plan.Wallet.Index], bus.Publish)
		receiptCh <- receipt
		return receipt
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.RunDeadlineMS > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(req.RunDeadlineMS)*time.Millisecond)
		defer cancel()
	}

	receipts := scheduler.Run(runCtx, req.Mode, plans, runWallet)
	close(receiptCh)
	<-drainDone

	status := swap.RunCompleted
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		status = swap.RunDeadlineExpired
	case ctx.Err() == context.Canceled:
		status = swap.RunCancelled
	}

	report := agg.Finish(status, time.Now())

	runLogger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("success", report.Totals.Success),
		zap.Int("failed", report.Totals.Failed),
		zap.Int("skipped", report.Totals.Skipped),
		zap.Int("receipts", len(receipts)))

	return report, nil
}
