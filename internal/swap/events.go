package swap

import "time"

// EventKind enumerates the lifecycle transitions SwapRunner and Scheduler
// publish onto the ProgressBus.
type EventKind string

const (
	EventPlanAdmitted   EventKind = "plan_admitted"
	EventQuoteStarted   EventKind = "quote_started"
	EventQuoteReady     EventKind = "quote_ready"
	EventExecuteStarted EventKind = "execute_started"
	EventExecuteSubmitted EventKind = "execute_submitted"
	EventVerified       EventKind = "verified"
	EventFailed         EventKind = "failed"
	EventSkipped        EventKind = "skipped"
	EventRetryScheduled EventKind = "retry_scheduled"
)

// LifecycleEvent is a tagged union over SwapRunner/Scheduler state
// transitions. Seq is a monotonic sequence number drawn from a counter
// shared by all wallets of a run, so events are totally ordered per wallet
// by Seq; Seq implies no ordering guarantee across wallets, per the spec's
// concurrency model.
type LifecycleEvent struct {
	Kind        EventKind
	WalletIndex int
	Seq         uint64
	At          time.Time

	// EventRetryScheduled
	Attempt int
	DelayMS int64
	Reason  ErrorKind

	// EventFailed / EventSkipped
	ErrorKind   ErrorKind
	ErrorDetail string

	// EventQuoteReady
	Quote *Quote
}

// NewEvent stamps a LifecycleEvent with the current time; Seq is assigned
// by the caller (normally the run-wide sequence counter owned by
// SwapRunner).
func NewEvent(kind EventKind, walletIndex int, seq uint64) LifecycleEvent {
	return LifecycleEvent{Kind: kind, WalletIndex: walletIndex, Seq: seq, At: time.Now()}
}
