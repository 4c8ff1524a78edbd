// =================================
// File: internal/runner/runner.go
// =================================
// Package runner implements SwapRunner: the per-wallet state machine that
// drives one WalletPlan from Planned through Quoted, Executed and a
// terminal Verified/Failed/Skipped status, retrying transport/rate/
// slippage/quote_stale failures up to the request's retry budget and
// publishing a LifecycleEvent for every transition.
package runner

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-orchestrator/internal/dexclient"
	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

// DexClient is the subset of dexclient.Client SwapRunner depends on,
// narrowed to an interface so tests can substitute a fake aggregator.
type DexClient interface {
	Quote(ctx context.Context, req swap.Request, amount uint64) (swap.Quote, error)
	Execute(ctx context.Context, quote swap.Quote, privateKeyBase58 string, req swap.Request) (dexclient.ExecuteResult, error)
}

// ExecuteResult is the Execute return shape SwapRunner deals in; an alias
// over dexclient's type so a *dexclient.Client satisfies DexClient
// structurally without this package redeclaring the struct.
type ExecuteResult = dexclient.ExecuteResult

// PrivateKeyProvider yields a wallet's signing key just-in-time.
type PrivateKeyProvider func() (string, error)

// Runner drives one wallet's plan to completion.
type Runner struct {
	client DexClient
	clock  func() time.Time
	logger *zap.Logger
	seq    atomic.Uint64
}

// New builds a Runner against client.
func New(client DexClient, logger *zap.Logger) *Runner {
	return &Runner{client: client, clock: time.Now, logger: logger.Named("runner")}
}

// Run drives plan to a terminal Receipt, emitting lifecycle events onto
// publish as it progresses. keyProvider is invoked only immediately
// before an execute call.
func (r *Runner) Run(ctx context.Context, req swap.Request, plan swap.WalletPlan, keyProvider PrivateKeyProvider, publish func(swap.LifecycleEvent)) swap.Receipt {
	walletIndex := plan.Wallet.Index
	start := r.clock()

	if plan.Verdict != swap.VerdictOK {
		publish(swap.NewEvent(swap.EventSkipped, walletIndex, r.nextSeq()))
		return swap.Receipt{
			WalletIndex: walletIndex,
			Status:      swap.StatusSkipped,
			InputAmount: plan.InputAmount,
			ErrorKind:   verdictErrorKind(plan.Verdict),
			ErrorDetail: string(plan.Verdict),
		}
	}

	publish(swap.NewEvent(swap.EventPlanAdmitted, walletIndex, r.nextSeq()))

	attempts := 0
	maxAttempts := req.MaxRetries + 1
	backoffBase := time.Duration(req.RetryBackoffBaseMS) * time.Millisecond

	var quote swap.Quote
	var result ExecuteResult
	var finalErr error

	for attempts < maxAttempts {
		attempts++
		select {
		case <-ctx.Done():
			finalErr = swap.NewClassifiedError(swap.ErrKindUnknown, "cancelled before attempt", ctx.Err())
			goto done
		default:
		}

		publish(swap.NewEvent(swap.EventQuoteStarted, walletIndex, r.nextSeq()))
		q, err := r.client.Quote(ctx, req, plan.InputAmount)
		if err != nil {
			finalErr = err
			if attempts < maxAttempts && swap.Retryable(swap.KindOf(err)) {
				r.scheduleRetry(ctx, publish, walletIndex, attempts, backoffBase, swap.KindOf(err))
				continue
			}
			goto done
		}
		quote = q
		publish(withQuote(swap.NewEvent(swap.EventQuoteReady, walletIndex, r.nextSeq()), quote))

		key, err := keyProvider()
		if err != nil {
			finalErr = swap.NewClassifiedError(swap.ErrKindAuth, "private key unavailable", err)
			goto done
		}

		publish(swap.NewEvent(swap.EventExecuteStarted, walletIndex, r.nextSeq()))
		res, err := r.client.Execute(ctx, quote, key, req)
		if err != nil {
			finalErr = err
			if attempts < maxAttempts && swap.Retryable(swap.KindOf(err)) {
				r.scheduleRetry(ctx, publish, walletIndex, attempts, backoffBase, swap.KindOf(err))
				continue
			}
			goto done
		}
		result = res
		finalErr = nil
		publish(swap.NewEvent(swap.EventExecuteSubmitted, walletIndex, r.nextSeq()))
		break
	}

done:
	duration := r.clock().Sub(start)

	if finalErr != nil {
		kind := swap.KindOf(finalErr)
		publish(failedEvent(walletIndex, r.nextSeq(), kind, finalErr))
		return swap.Receipt{
			WalletIndex: walletIndex,
			Status:      swap.StatusFailed,
			InputAmount: plan.InputAmount,
			DurationMS:  duration.Milliseconds(),
			Attempts:    attempts,
			ErrorKind:   kind,
			ErrorDetail: finalErr.Error(),
		}
	}

	receipt := swap.Receipt{
		WalletIndex:    walletIndex,
		Status:         swap.StatusSuccess,
		InputAmount:    plan.InputAmount,
		TxID:           result.TransactionID,
		DurationMS:     duration.Milliseconds(),
		Attempts:       attempts,
		PriceImpactBps: &quote.PriceImpactBps,
	}
	outAmount := quote.OutAmount
	receipt.OutputAmount = &outAmount
	receipt.FeeAmount = result.FeeAmount

	if req.Verify {
		if !r.verify(ctx, result) {
			publish(failedEvent(walletIndex, r.nextSeq(), swap.ErrKindVerification,
				swap.NewClassifiedError(swap.ErrKindVerification, "no credit observed", nil)))
			receipt.Status = swap.StatusFailed
			receipt.ErrorKind = swap.ErrKindVerification
			receipt.ErrorDetail = "execute reported success but verification found no credit"
			return receipt
		}
	}

	publish(swap.NewEvent(swap.EventVerified, walletIndex, r.nextSeq()))
	return receipt
}

// verify is a placeholder hook for a post-execute balance check; the spec
// treats the remote as stateless, so verification here is a single
// best-effort observation rather than a recovery loop.
func (r *Runner) verify(_ context.Context, result ExecuteResult) bool {
	return result.TransactionID != ""
}

func (r *Runner) scheduleRetry(ctx context.Context, publish func(swap.LifecycleEvent), walletIndex, attempt int, base time.Duration, reason swap.ErrorKind) {
	delay := backoffDelay(base, attempt)
	evt := swap.NewEvent(swap.EventRetryScheduled, walletIndex, r.nextSeq())
	evt.Attempt = attempt
	evt.DelayMS = delay.Milliseconds()
	evt.Reason = reason
	publish(evt)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// backoffDelay mirrors cenkalti/backoff's exponential growth plus
// randomization so the non-decreasing-modulo-jitter property holds
// without pulling in a second retry loop implementation for a single
// delay computation: base * 2^(attempt-1), then inflated by a random
// fraction in [0, 0.25] of that nominal delay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	const cap = 30 * time.Second
	if delay > cap {
		delay = cap
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	return delay + jitter
}

func (r *Runner) nextSeq() uint64 {
	return r.seq.Add(1)
}

func withQuote(evt swap.LifecycleEvent, q swap.Quote) swap.LifecycleEvent {
	evt.Quote = &q
	return evt
}

func failedEvent(walletIndex int, seq uint64, kind swap.ErrorKind, err error) swap.LifecycleEvent {
	evt := swap.NewEvent(swap.EventFailed, walletIndex, seq)
	evt.ErrorKind = kind
	evt.ErrorDetail = err.Error()
	return evt
}

func verdictErrorKind(v swap.Verdict) swap.ErrorKind {
	switch v {
	case swap.VerdictInsufficientBalance:
		return swap.ErrKindInsufficientBalance
	default:
		return ""
	}
}
