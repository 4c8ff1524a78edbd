// =================================
// File: internal/scheduler/scheduler.go
// =================================
// Package scheduler implements the three dispatch disciplines a
// swap.Request.Mode selects between: sequential (one wallet after
// another with a fixed delay), parallel{N} (an errgroup bounded to N
// concurrent SwapRunners), and batch{B,D} (contiguous groups of B
// wallets run concurrently, with a D-millisecond pause between groups).
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

// RunWallet executes one wallet's plan to a terminal Receipt.
type RunWallet func(ctx context.Context, plan swap.WalletPlan) swap.Receipt

// Run dispatches plans (already sorted by ascending Wallet.Index) per
// mode and returns their receipts in wallet-index order. Run never
// initiates a new execute call once ctx is cancelled; already-submitted
// executions still run to completion and produce a receipt.
func Run(ctx context.Context, mode swap.Mode, plans []swap.WalletPlan, run RunWallet) []swap.Receipt {
	switch mode.Kind {
	case swap.ModeSequential:
		return runSequential(ctx, mode, plans, run)
	case swap.ModeParallel:
		return runParallel(ctx, mode, plans, run)
	case swap.ModeBatch:
		return runBatch(ctx, mode, plans, run)
	default:
		receipts := make([]swap.Receipt, len(plans))
		for i, p := range plans {
			receipts[i] = swap.Receipt{
				WalletIndex: p.Wallet.Index,
				Status:      swap.StatusFailed,
				ErrorKind:   swap.ErrKindConfig,
				ErrorDetail: "unknown scheduling mode",
			}
		}
		return receipts
	}
}

// runSequential runs each wallet's plan to completion before starting the
// next, pausing DelayMS between wallets; wallet i's terminal event
// precedes wallet i+1's first event by construction.
func runSequential(ctx context.Context, mode swap.Mode, plans []swap.WalletPlan, run RunWallet) []swap.Receipt {
	receipts := make([]swap.Receipt, len(plans))
	delay := time.Duration(mode.DelayMS) * time.Millisecond

	for i, plan := range plans {
		if ctx.Err() != nil {
			receipts[i] = skippedReceipt(plan)
			continue
		}
		receipts[i] = run(ctx, plan)
		if i < len(plans)-1 && delay > 0 {
			sleep(ctx, delay)
		}
	}
	return receipts
}

// runParallel bounds in-flight SwapRunners to MaxConcurrent using an
// errgroup with a buffered semaphore channel, so at no instant do more
// than N runners hold an in-flight execute call.
func runParallel(ctx context.Context, mode swap.Mode, plans []swap.WalletPlan, run RunWallet) []swap.Receipt {
	receipts := make([]swap.Receipt, len(plans))
	sem := make(chan struct{}, mode.MaxConcurrent)
	g, gCtx := errgroup.WithContext(ctx)

	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			if gCtx.Err() != nil {
				receipts[i] = skippedReceipt(plan)
				return nil
			}
			sem <- struct{}{}
			defer func() { <-sem }()
			receipts[i] = run(gCtx, plan)
			return nil
		})
	}
	_ = g.Wait()
	return receipts
}

// runBatch runs contiguous groups of BatchSize wallets concurrently,
// pausing BatchMS between groups.
func runBatch(ctx context.Context, mode swap.Mode, plans []swap.WalletPlan, run RunWallet) []swap.Receipt {
	receipts := make([]swap.Receipt, len(plans))
	delay := time.Duration(mode.BatchMS) * time.Millisecond

	for start := 0; start < len(plans); start += mode.BatchSize {
		end := start + mode.BatchSize
		if end > len(plans) {
			end = len(plans)
		}
		batch := plans[start:end]

		if ctx.Err() != nil {
			for i, plan := range batch {
				receipts[start+i] = skippedReceipt(plan)
			}
			continue
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i, plan := range batch {
			i, plan := i, plan
			g.Go(func() error {
				receipts[start+i] = run(gCtx, plan)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(plans) && delay > 0 {
			sleep(ctx, delay)
		}
	}
	return receipts
}

func skippedReceipt(plan swap.WalletPlan) swap.Receipt {
	return swap.Receipt{
		WalletIndex: plan.Wallet.Index,
		Status:      swap.StatusSkipped,
		InputAmount: plan.InputAmount,
		ErrorDetail: "run cancelled before this wallet started",
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
