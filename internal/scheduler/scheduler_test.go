package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/swap-orchestrator/internal/scheduler"
	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

func plans(n int) []swap.WalletPlan {
	out := make([]swap.WalletPlan, n)
	for i := range out {
		out[i] = swap.WalletPlan{Wallet: swap.Wallet{Index: i}, Verdict: swap.VerdictOK, InputAmount: 1}
	}
	return out
}

func TestSequentialOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []int

	run := func(ctx context.Context, plan swap.WalletPlan) swap.Receipt {
		mu.Lock()
		order = append(order, plan.Wallet.Index)
		mu.Unlock()
		return swap.Receipt{WalletIndex: plan.Wallet.Index, Status: swap.StatusSuccess}
	}

	mode := swap.Mode{Kind: swap.ModeSequential, DelayMS: 0}
	receipts := scheduler.Run(context.Background(), mode, plans(4), run)

	require.Len(t, receipts, 4)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestParallelBounds(t *testing.T) {
	var inFlight atomic.Int32
	var maxObserved atomic.Int32

	run := func(ctx context.Context, plan swap.WalletPlan) swap.Receipt {
		cur := inFlight.Add(1)
		for {
			prev := maxObserved.Load()
			if cur <= prev || maxObserved.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return swap.Receipt{WalletIndex: plan.Wallet.Index, Status: swap.StatusSuccess}
	}

	mode := swap.Mode{Kind: swap.ModeParallel, MaxConcurrent: 2}
	receipts := scheduler.Run(context.Background(), mode, plans(6), run)

	require.Len(t, receipts, 6)
	assert.LessOrEqual(t, int(maxObserved.Load()), 2)
}

func TestBatchPausesBetweenGroups(t *testing.T) {
	var mu sync.Mutex
	var completions []time.Time

	run := func(ctx context.Context, plan swap.WalletPlan) swap.Receipt {
		mu.Lock()
		completions = append(completions, time.Now())
		mu.Unlock()
		return swap.Receipt{WalletIndex: plan.Wallet.Index, Status: swap.StatusSuccess}
	}

	mode := swap.Mode{Kind: swap.ModeBatch, BatchSize: 2, BatchMS: 100}
	start := time.Now()
	receipts := scheduler.Run(context.Background(), mode, plans(4), run)

	require.Len(t, receipts, 4)
	require.Len(t, completions, 4)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestCancellationProducesSkippedReceipts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := func(ctx context.Context, plan swap.WalletPlan) swap.Receipt {
		t.Fatal("run should not be invoked after cancellation")
		return swap.Receipt{}
	}

	mode := swap.Mode{Kind: swap.ModeSequential}
	receipts := scheduler.Run(ctx, mode, plans(3), run)

	require.Len(t, receipts, 3)
	for _, r := range receipts {
		assert.Equal(t, swap.StatusSkipped, r.Status)
	}
}
