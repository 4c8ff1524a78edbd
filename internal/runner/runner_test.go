package runner_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/swap-orchestrator/internal/runner"
	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

type fakeClient struct {
	quoteCalls   atomic.Int32
	executeCalls atomic.Int32

	quoteErrsBeforeOK   int
	executeErrsBeforeOK int
	executeErrKind      swap.ErrorKind
}

func (f *fakeClient) Quote(ctx context.Context, req swap.Request, amount uint64) (swap.Quote, error) {
	n := f.quoteCalls.Add(1)
	if int(n) <= f.quoteErrsBeforeOK {
		return swap.Quote{}, swap.NewClassifiedError(swap.ErrKindTransport, "transient", nil)
	}
	return swap.Quote{InAmount: amount, OutAmount: amount - 1, PriceImpactBps: 50}, nil
}

func (f *fakeClient) Execute(ctx context.Context, quote swap.Quote, key string, req swap.Request) (runner.ExecuteResult, error) {
	n := f.executeCalls.Add(1)
	if int(n) <= f.executeErrsBeforeOK {
		kind := f.executeErrKind
		if kind == "" {
			kind = swap.ErrKindSlippage
		}
		return runner.ExecuteResult{}, swap.NewClassifiedError(kind, "rejected", nil)
	}
	return runner.ExecuteResult{TransactionID: "TX123", NewBalance: 1}, nil
}

func okKeyProvider() (string, error) { return "key", nil }

func TestRunnerSkipsNonAdmittedPlan(t *testing.T) {
	r := runner.New(&fakeClient{}, zaptest.NewLogger(t))
	plan := swap.WalletPlan{Wallet: swap.Wallet{Index: 0}, Verdict: swap.VerdictBelowMinimum}
	var events []swap.LifecycleEvent

	receipt := r.Run(context.Background(), swap.Request{}, plan, okKeyProvider, func(e swap.LifecycleEvent) {
		events = append(events, e)
	})

	assert.Equal(t, swap.StatusSkipped, receipt.Status)
	assert.Equal(t, 0, receipt.Attempts)
	require.Len(t, events, 1)
	assert.Equal(t, swap.EventSkipped, events[0].Kind)
}

func TestRunnerSucceedsFirstTry(t *testing.T) {
	client := &fakeClient{}
	r := runner.New(client, zaptest.NewLogger(t))
	plan := swap.WalletPlan{Wallet: swap.Wallet{Index: 1}, Verdict: swap.VerdictOK, InputAmount: 100}
	req := swap.Request{MaxRetries: 2, RetryBackoffBaseMS: 1}

	receipt := r.Run(context.Background(), req, plan, okKeyProvider, func(swap.LifecycleEvent) {})

	assert.Equal(t, swap.StatusSuccess, receipt.Status)
	assert.Equal(t, 1, receipt.Attempts)
	assert.Equal(t, "TX123", receipt.TxID)
	require.NotNil(t, receipt.OutputAmount)
	assert.Equal(t, uint64(99), *receipt.OutputAmount)
}

func TestRunnerRetriesSlippageThenSucceeds(t *testing.T) {
	client := &fakeClient{executeErrsBeforeOK: 1, executeErrKind: swap.ErrKindSlippage}
	r := runner.New(client, zaptest.NewLogger(t))
	plan := swap.WalletPlan{Wallet: swap.Wallet{Index: 2}, Verdict: swap.VerdictOK, InputAmount: 100}
	req := swap.Request{MaxRetries: 2, RetryBackoffBaseMS: 1}

	receipt := r.Run(context.Background(), req, plan, okKeyProvider, func(swap.LifecycleEvent) {})

	assert.Equal(t, swap.StatusSuccess, receipt.Status)
	assert.GreaterOrEqual(t, receipt.Attempts, 2)
}

func TestRunnerRetryBudgetExhausted(t *testing.T) {
	client := &fakeClient{executeErrsBeforeOK: 10, executeErrKind: swap.ErrKindSlippage}
	r := runner.New(client, zaptest.NewLogger(t))
	plan := swap.WalletPlan{Wallet: swap.Wallet{Index: 3}, Verdict: swap.VerdictOK, InputAmount: 100}
	req := swap.Request{MaxRetries: 2, RetryBackoffBaseMS: 1}

	receipt := r.Run(context.Background(), req, plan, okKeyProvider, func(swap.LifecycleEvent) {})

	assert.Equal(t, swap.StatusFailed, receipt.Status)
	assert.Equal(t, swap.ErrKindSlippage, receipt.ErrorKind)
	assert.Equal(t, req.MaxRetries+1, receipt.Attempts)
	assert.LessOrEqual(t, int(client.executeCalls.Load()), req.MaxRetries+1)
}

func TestRunnerNonRetryableFailsImmediately(t *testing.T) {
	client := &fakeClient{executeErrsBeforeOK: 10, executeErrKind: swap.ErrKindVerification}
	r := runner.New(client, zaptest.NewLogger(t))
	plan := swap.WalletPlan{Wallet: swap.Wallet{Index: 4}, Verdict: swap.VerdictOK, InputAmount: 100}
	req := swap.Request{MaxRetries: 3, RetryBackoffBaseMS: 1}

	receipt := r.Run(context.Background(), req, plan, okKeyProvider, func(swap.LifecycleEvent) {})

	assert.Equal(t, swap.StatusFailed, receipt.Status)
	assert.Equal(t, 1, receipt.Attempts)
}
