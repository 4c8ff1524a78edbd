package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/swap-orchestrator/internal/planner"
	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

func wallets(n int) []planner.Balance {
	out := make([]planner.Balance, n)
	for i := range out {
		out[i] = planner.Balance{Wallet: swap.Wallet{Index: i, Address: "addr"}, Amount: 1_000_000_000}
	}
	return out
}

func TestPlanFixedAllSucceed(t *testing.T) {
	req := swap.Request{
		Strategy:           swap.Strategy{Kind: swap.StrategyFixed, Base: 100_000_000},
		MinimumInputAmount: 1,
	}
	plans, err := planner.Plan(req, wallets(3), "run-1")
	require.NoError(t, err)
	require.Len(t, plans, 3)
	for _, p := range plans {
		assert.Equal(t, swap.VerdictOK, p.Verdict)
		assert.Equal(t, uint64(100_000_000), p.InputAmount)
	}
}

func TestPlanPercentageInsufficientAndBelowMinimum(t *testing.T) {
	balances := []planner.Balance{
		{Wallet: swap.Wallet{Index: 0}, Amount: 1_000_000_000},
		{Wallet: swap.Wallet{Index: 1}, Amount: 0},
		{Wallet: swap.Wallet{Index: 2}, Amount: 500_000_000},
	}
	req := swap.Request{
		Strategy:           swap.Strategy{Kind: swap.StrategyPercentage, Fraction: 0.5},
		MinimumInputAmount: 10_000_000,
	}
	plans, err := planner.Plan(req, balances, "run-2")
	require.NoError(t, err)
	require.Len(t, plans, 3)

	assert.Equal(t, swap.VerdictOK, plans[0].Verdict)
	assert.Equal(t, uint64(500_000_000), plans[0].InputAmount)

	assert.Equal(t, swap.VerdictBelowMinimum, plans[1].Verdict)
	assert.Equal(t, uint64(0), plans[1].InputAmount)

	assert.Equal(t, swap.VerdictOK, plans[2].Verdict)
	assert.Equal(t, uint64(250_000_000), plans[2].InputAmount)

	var inputVolume uint64
	for _, p := range plans {
		if p.Verdict == swap.VerdictOK {
			inputVolume += p.InputAmount
		}
	}
	assert.Equal(t, uint64(750_000_000), inputVolume)
}

func TestPlanCustomLengthMismatch(t *testing.T) {
	req := swap.Request{
		Strategy: swap.Strategy{Kind: swap.StrategyCustom, Amounts: []uint64{100, 200}},
	}
	_, err := planner.Plan(req, wallets(3), "run-3")
	assert.Error(t, err)
}

func TestPlanRandomDeterministicGivenRunID(t *testing.T) {
	req := swap.Request{
		Strategy: swap.Strategy{Kind: swap.StrategyRandom, Min: 50_000_000, Max: 250_000_000},
	}
	first, err := planner.Plan(req, wallets(4), "fixed-run-id")
	require.NoError(t, err)
	second, err := planner.Plan(req, wallets(4), "fixed-run-id")
	require.NoError(t, err)

	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].InputAmount, second[i].InputAmount)
		assert.GreaterOrEqual(t, first[i].InputAmount, uint64(50_000_000))
		assert.LessOrEqual(t, first[i].InputAmount, uint64(250_000_000))
	}

	third, err := planner.Plan(req, wallets(4), "different-run-id")
	require.NoError(t, err)
	differs := false
	for i := range first {
		if first[i].InputAmount != third[i].InputAmount {
			differs = true
			break
		}
	}
	assert.True(t, differs, "different run ids should usually produce different random plans")
}
