// Package swap holds the data model shared by every component of the
// multi-wallet swap orchestrator: tokens, wallets, the run-level request,
// per-wallet plans, quotes, receipts, lifecycle events and the run report.
package swap

import (
	"fmt"
	"time"
)

// Token is an immutable description of an SPL token. Symbol is an optional
// alias; Mint is the canonical identifier used on the wire.
type Token struct {
	Symbol   string
	Mint     string
	Decimals int
}

// Wallet identifies one fleet member. Index is stable within a run and used
// as the scheduler's tie-breaker and ordering key.
type Wallet struct {
	Index         int
	Address       string
	HasSigningKey bool
}

// Operation labels a run; it never changes planning or execution logic.
type Operation string

const (
	OperationBuy  Operation = "buy"
	OperationSell Operation = "sell"
)

// StrategyKind tags the variant held by a Strategy.
type StrategyKind string

const (
	StrategyFixed      StrategyKind = "fixed"
	StrategyPercentage StrategyKind = "percentage"
	StrategyRandom     StrategyKind = "random"
	StrategyCustom     StrategyKind = "custom"
)

// Strategy is a validated tagged union over the four amount-distribution
// strategies named in the spec. Exactly one set of fields is meaningful,
// selected by Kind; Validate enforces that at construction time so the
// rest of the core only ever sees fully-typed values.
type Strategy struct {
	Kind StrategyKind

	// StrategyFixed
	Base uint64

	// StrategyPercentage
	Fraction float64

	// StrategyRandom
	Min, Max uint64

	// StrategyCustom
	Amounts []uint64
}

// Validate checks the strategy's own invariants (not wallet-count agreement,
// which AmountPlanner checks once the fleet size is known).
func (s Strategy) Validate() error {
	switch s.Kind {
	case StrategyFixed:
		return nil
	case StrategyPercentage:
		if s.Fraction <= 0 || s.Fraction > 1 {
			return fmt.Errorf("percentage strategy: fraction %.6f out of (0,1]", s.Fraction)
		}
		return nil
	case StrategyRandom:
		if s.Min > s.Max {
			return fmt.Errorf("random strategy: min %d greater than max %d", s.Min, s.Max)
		}
		return nil
	case StrategyCustom:
		if len(s.Amounts) == 0 {
			return fmt.Errorf("custom strategy: amounts must not be empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
}

// ModeKind tags the variant held by a Mode.
type ModeKind string

const (
	ModeSequential ModeKind = "sequential"
	ModeParallel   ModeKind = "parallel"
	ModeBatch      ModeKind = "batch"
)

// Mode is a validated tagged union over the three scheduling disciplines.
type Mode struct {
	Kind ModeKind

	// ModeSequential
	DelayMS int

	// ModeParallel
	MaxConcurrent int

	// ModeBatch
	BatchSize int
	BatchMS   int
}

func (m Mode) Validate() error {
	switch m.Kind {
	case ModeSequential:
		if m.DelayMS < 0 {
			return fmt.Errorf("sequential mode: delay_ms must be >= 0")
		}
		return nil
	case ModeParallel:
		if m.MaxConcurrent < 1 {
			return fmt.Errorf("parallel mode: max_concurrent must be >= 1")
		}
		return nil
	case ModeBatch:
		if m.BatchSize < 1 {
			return fmt.Errorf("batch mode: size must be >= 1")
		}
		if m.BatchMS < 0 {
			return fmt.Errorf("batch mode: delay_ms must be >= 0")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode kind %q", m.Kind)
	}
}

// Request is the run-level, immutable-after-validation description of a
// swap operation to fan out across a fleet of wallets.
type Request struct {
	Operation           Operation
	InputToken          Token
	OutputToken         Token
	Strategy            Strategy
	Mode                Mode
	SlippageBps         int
	Verify              bool
	MaxRetries          int
	RetryBackoffBaseMS  int
	CollectFee          bool
	MinimumInputAmount  uint64
	RunDeadlineMS       int // 0 means no deadline
}

// Validate enforces the range invariants from the spec that do not depend
// on the fleet snapshot (wallet-count agreement for StrategyCustom is
// checked by AmountPlanner once the selected wallet set is known).
func (r Request) Validate() error {
	if r.Operation != OperationBuy && r.Operation != OperationSell {
		return fmt.Errorf("operation must be buy or sell, got %q", r.Operation)
	}
	if r.SlippageBps < 0 || r.SlippageBps > 10000 {
		return fmt.Errorf("slippage_bps must be in [0, 10000], got %d", r.SlippageBps)
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if r.RetryBackoffBaseMS <= 0 {
		return fmt.Errorf("retry_backoff_base_ms must be > 0")
	}
	if r.RunDeadlineMS < 0 {
		return fmt.Errorf("run_deadline_ms must be >= 0")
	}
	if err := r.Strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}
	if err := r.Mode.Validate(); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}
	return nil
}

// Verdict is the AmountPlanner's admission decision for one wallet.
type Verdict string

const (
	VerdictOK                 Verdict = "ok"
	VerdictInsufficientBalance Verdict = "insufficient_balance"
	VerdictBelowMinimum       Verdict = "below_minimum"
	VerdictSkip               Verdict = "skip"
)

// WalletPlan is the per-wallet amount decision, created once per wallet per
// run and never mutated after admission.
type WalletPlan struct {
	Wallet      Wallet
	InputAmount uint64
	Verdict     Verdict
}

// Quote is a short-lived, per-attempt price quote from the DEX aggregator.
type Quote struct {
	InAmount       uint64
	OutAmount      uint64
	RouteID        string
	PriceImpactBps int
	FetchedAt      time.Time
}

// Stale reports whether the quote is older than window.
func (q Quote) Stale(window time.Duration) bool {
	return time.Since(q.FetchedAt) > window
}

// ReceiptStatus is the terminal status of one wallet's run.
type ReceiptStatus string

const (
	StatusSuccess ReceiptStatus = "success"
	StatusFailed  ReceiptStatus = "failed"
	StatusSkipped ReceiptStatus = "skipped"
)

// ErrorKind classifies why a wallet's run did not succeed.
type ErrorKind string

const (
	ErrKindTransport           ErrorKind = "transport"
	ErrKindRateLimited         ErrorKind = "rate_limited"
	ErrKindQuote               ErrorKind = "quote"
	ErrKindSlippage            ErrorKind = "slippage"
	ErrKindQuoteStale          ErrorKind = "quote_stale"
	ErrKindInsufficientBalance ErrorKind = "insufficient_balance"
	ErrKindAuth                ErrorKind = "auth"
	ErrKindVerification        ErrorKind = "verification"
	ErrKindConfig              ErrorKind = "config"
	ErrKindUnknown             ErrorKind = "unknown"
)

// Receipt is the terminal, immutable record of one wallet's run.
type Receipt struct {
	WalletIndex    int
	Status         ReceiptStatus
	InputAmount    uint64
	OutputAmount   *uint64
	TxID           string
	FeeAmount      *uint64
	PriceImpactBps *int
	DurationMS     int64
	Attempts       int
	ErrorKind      ErrorKind
	ErrorDetail    string
}

// RunStatus is the terminal disposition of the whole run.
type RunStatus string

const (
	RunCompleted      RunStatus = "completed"
	RunDeadlineExpired RunStatus = "deadline_expired"
	RunCancelled      RunStatus = "cancelled"
	RunAbortedConfig  RunStatus = "aborted_config"
)

// Totals aggregates the successes, failures, skips and volumes of a run.
type Totals struct {
	Success                int
	Failed                 int
	Skipped                int
	InputVolume            uint64
	OutputVolume           uint64
	AveragePriceImpactBps  *float64
	FeesCollected          uint64
	DurationMS             int64
}

// RunReport is the canonical, JSON-serializable output of one run.
type RunReport struct {
	RunID             string
	Status            RunStatus
	StartedAt         time.Time
	EndedAt           time.Time
	Totals            Totals
	Receipts          []Receipt
	ErrorClassification map[ErrorKind]int
}
