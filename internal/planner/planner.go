// =================================
// File: internal/planner/planner.go
// =================================
// Package planner implements AmountPlanner: given a swap.Request's
// Strategy and a balance snapshot for the selected fleet, it computes one
// WalletPlan per wallet. Planning is a pure function of its inputs for
// fixed/percentage/custom; random draws are seeded from the run id so a
// replay with the same id reproduces the same plan.
package planner

import (
	"fmt"
	"math/rand/v2"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

// Balance is one wallet's available input-token balance, in base units.
type Balance struct {
	Wallet  swap.Wallet
	Amount  uint64
}

// Plan computes a WalletPlan for every wallet in balances, in the order
// given. runID seeds the random strategy's PCG generator so planning is
// deterministic given the run id, per the spec's determinism property.
func Plan(req swap.Request, balances []Balance, runID string) ([]swap.WalletPlan, error) {
	if req.Strategy.Kind == swap.StrategyCustom && len(req.Strategy.Amounts) != len(balances) {
		return nil, fmt.Errorf("custom strategy amounts length %d does not match selected wallet count %d",
			len(req.Strategy.Amounts), len(balances))
	}

	amounts, err := amountsFor(req.Strategy, balances, runID)
	if err != nil {
		return nil, err
	}

	plans := make([]swap.WalletPlan, len(balances))
	for i, bal := range balances {
		amount := amounts[i]
		plans[i] = swap.WalletPlan{
			Wallet:      bal.Wallet,
			InputAmount: amount,
			Verdict:     admit(amount, bal.Amount, req.MinimumInputAmount),
		}
	}
	return plans, nil
}

// admit decides the per-wallet verdict from the requested amount against
// the wallet's available balance and the run's configured minimum. A
// requested amount of zero is not special-cased: it falls out of the
// below_minimum check like any other amount under the floor.
func admit(requested, available, minimum uint64) swap.Verdict {
	if requested < minimum {
		return swap.VerdictBelowMinimum
	}
	if requested > available {
		return swap.VerdictInsufficientBalance
	}
	return swap.VerdictOK
}

// amountsFor resolves the raw requested input amount per wallet before
// admission is checked against the balance snapshot.
func amountsFor(strategy swap.Strategy, balances []Balance, runID string) ([]uint64, error) {
	switch strategy.Kind {
	case swap.StrategyFixed:
		out := make([]uint64, len(balances))
		for i := range out {
			out[i] = strategy.Base
		}
		return out, nil

	case swap.StrategyPercentage:
		out := make([]uint64, len(balances))
		for i, bal := range balances {
			out[i] = uint64(float64(bal.Amount) * strategy.Fraction)
		}
		return out, nil

	case swap.StrategyCustom:
		out := make([]uint64, len(balances))
		copy(out, strategy.Amounts)
		return out, nil

	case swap.StrategyRandom:
		rng := rand.New(rand.NewPCG(seedFromRunID(runID), 0))
		out := make([]uint64, len(balances))
		span := strategy.Max - strategy.Min
		for i := range out {
			if span == 0 {
				out[i] = strategy.Min
				continue
			}
			out[i] = strategy.Min + rng.Uint64N(span+1)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown strategy kind %q", strategy.Kind)
	}
}

// seedFromRunID derives a deterministic PCG seed from the run id's bytes,
// so the same run id always reproduces the same random-strategy plan.
func seedFromRunID(runID string) uint64 {
	var seed uint64
	for i := 0; i < len(runID); i++ {
		seed = seed*31 + uint64(runID[i])
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
