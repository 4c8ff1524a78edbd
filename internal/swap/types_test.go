package swap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

func TestStrategyValidate(t *testing.T) {
	cases := []struct {
		name    string
		s       swap.Strategy
		wantErr bool
	}{
		{"fixed ok", swap.Strategy{Kind: swap.StrategyFixed, Base: 100}, false},
		{"percentage ok", swap.Strategy{Kind: swap.StrategyPercentage, Fraction: 0.5}, false},
		{"percentage zero", swap.Strategy{Kind: swap.StrategyPercentage, Fraction: 0}, true},
		{"percentage over one", swap.Strategy{Kind: swap.StrategyPercentage, Fraction: 1.5}, true},
		{"random ok", swap.Strategy{Kind: swap.StrategyRandom, Min: 10, Max: 20}, false},
		{"random inverted", swap.Strategy{Kind: swap.StrategyRandom, Min: 20, Max: 10}, true},
		{"custom ok", swap.Strategy{Kind: swap.StrategyCustom, Amounts: []uint64{1, 2}}, false},
		{"custom empty", swap.Strategy{Kind: swap.StrategyCustom, Amounts: nil}, true},
		{"unknown kind", swap.Strategy{Kind: "bogus"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModeValidate(t *testing.T) {
	cases := []struct {
		name    string
		m       swap.Mode
		wantErr bool
	}{
		{"sequential ok", swap.Mode{Kind: swap.ModeSequential, DelayMS: 0}, false},
		{"sequential negative delay", swap.Mode{Kind: swap.ModeSequential, DelayMS: -1}, true},
		{"parallel ok", swap.Mode{Kind: swap.ModeParallel, MaxConcurrent: 2}, false},
		{"parallel zero concurrency", swap.Mode{Kind: swap.ModeParallel, MaxConcurrent: 0}, true},
		{"batch ok", swap.Mode{Kind: swap.ModeBatch, BatchSize: 2, BatchMS: 100}, false},
		{"batch zero size", swap.Mode{Kind: swap.ModeBatch, BatchSize: 0, BatchMS: 100}, true},
		{"batch negative delay", swap.Mode{Kind: swap.ModeBatch, BatchSize: 1, BatchMS: -1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.m.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	base := swap.Request{
		Operation:          swap.OperationBuy,
		SlippageBps:        50,
		MaxRetries:         2,
		RetryBackoffBaseMS: 500,
		Strategy:           swap.Strategy{Kind: swap.StrategyFixed, Base: 10},
		Mode:               swap.Mode{Kind: swap.ModeSequential},
	}
	assert.NoError(t, base.Validate())

	badOp := base
	badOp.Operation = "hold"
	assert.Error(t, badOp.Validate())

	badSlippage := base
	badSlippage.SlippageBps = 10001
	assert.Error(t, badSlippage.Validate())

	badBackoff := base
	badBackoff.RetryBackoffBaseMS = 0
	assert.Error(t, badBackoff.Validate())
}

func TestQuoteStale(t *testing.T) {
	q := swap.Quote{FetchedAt: time.Now().Add(-20 * time.Second)}
	assert.True(t, q.Stale(10*time.Second))
	assert.False(t, q.Stale(time.Minute))
}
