// =================================
// File: internal/aggregator/aggregator.go
// =================================
// Package aggregator implements ResultAggregator: it folds a run's
// terminal receipts (attempt counts included, as carried on each receipt)
// into the canonical RunReport (it does not consume lifecycle events),
// maintaining the invariants the spec's testable properties require (report closure, volume conservation,
// input-weighted average price impact, idempotent replay).
package aggregator

import (
	"time"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

// Aggregator accumulates receipts for one run. The zero value is ready
// to use.
type Aggregator struct {
	runID     string
	startedAt time.Time
	receipts  []swap.Receipt
}

// New starts a fresh Aggregator for runID, stamping the run start time.
func New(runID string, startedAt time.Time) *Aggregator {
	return &Aggregator{runID: runID, startedAt: startedAt}
}

// Add records one wallet's terminal receipt. Receipts may arrive in any
// order; the final report sorts them by wallet index. Add is not
// goroutine-safe: callers running wallets concurrently must route
// receipts through Drain instead of calling Add from multiple
// goroutines.
func (a *Aggregator) Add(r swap.Receipt) {
	a.receipts = append(a.receipts, r)
}

// Drain is the Aggregator's single consumer loop: it ranges over
// receipts, calling Add for each, until the channel is closed. Callers
// that dispatch wallets concurrently (parallel/batch scheduling) must
// send receipts onto a channel and run Drain in exactly one goroutine
// rather than calling Add directly from worker goroutines.
func (a *Aggregator) Drain(receipts <-chan swap.Receipt) {
	for r := range receipts {
		a.Add(r)
	}
}

// Finish computes the RunReport for status at endedAt. Calling Finish
// twice (idempotent replay) with the same receipts yields byte-identical
// totals and classification, modulo timestamps.
func (a *Aggregator) Finish(status swap.RunStatus, endedAt time.Time) swap.RunReport {
	sorted := make([]swap.Receipt, len(a.receipts))
	copy(sorted, a.receipts)
	insertionSortByWalletIndex(sorted)

	totals := computeTotals(sorted, endedAt.Sub(a.startedAt))
	classification := classify(sorted)

	return swap.RunReport{
		RunID:               a.runID,
		Status:              status,
		StartedAt:           a.startedAt,
		EndedAt:             endedAt,
		Totals:              totals,
		Receipts:            sorted,
		ErrorClassification: classification,
	}
}

// computeTotals folds receipts into Totals, enforcing volume
// conservation (failed/skipped contribute zero) and the input-weighted
// average price impact over successes only.
func computeTotals(receipts []swap.Receipt, duration time.Duration) swap.Totals {
	var totals swap.Totals
	totals.DurationMS = duration.Milliseconds()

	var weightedImpactSum float64
	var impactWeightTotal uint64

	for _, r := range receipts {
		switch r.Status {
		case swap.StatusSuccess:
			totals.Success++
			totals.InputVolume += r.InputAmount
			if r.OutputAmount != nil {
				totals.OutputVolume += *r.OutputAmount
			}
			if r.FeeAmount != nil {
				totals.FeesCollected += *r.FeeAmount
			}
			if r.PriceImpactBps != nil {
				weightedImpactSum += float64(r.InputAmount) * float64(*r.PriceImpactBps)
				impactWeightTotal += r.InputAmount
			}
		case swap.StatusFailed:
			totals.Failed++
		case swap.StatusSkipped:
			totals.Skipped++
		}
	}

	if impactWeightTotal > 0 {
		avg := weightedImpactSum / float64(impactWeightTotal)
		totals.AveragePriceImpactBps = &avg
	}

	return totals
}

// classify buckets failed receipts by ErrorKind so operators can triage
// failures by cause. Skipped receipts are excluded even when they carry
// an ErrorKind (e.g. a below-minimum or insufficient-balance verdict) —
// error_classification covers failures only, not admission decisions.
func classify(receipts []swap.Receipt) map[swap.ErrorKind]int {
	out := make(map[swap.ErrorKind]int)
	for _, r := range receipts {
		if r.Status != swap.StatusFailed {
			continue
		}
		if r.ErrorKind == "" {
			continue
		}
		out[r.ErrorKind]++
	}
	return out
}

// insertionSortByWalletIndex is a tiny stable sort; run sizes are bounded
// by fleet size (tens to low hundreds of wallets), so an O(n^2) sort
// keeps this package dependency-free without mattering for performance.
func insertionSortByWalletIndex(receipts []swap.Receipt) {
	for i := 1; i < len(receipts); i++ {
		for j := i; j > 0 && receipts[j].WalletIndex < receipts[j-1].WalletIndex; j-- {
			receipts[j], receipts[j-1] = receipts[j-1], receipts[j]
		}
	}
}
