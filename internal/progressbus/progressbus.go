// =================================
// File: internal/progressbus/progressbus.go
// =================================
// Package progressbus implements ProgressBus: a single-producer,
// single-consumer channel of swap.LifecycleEvent. Events for one wallet
// are delivered in FIFO (Seq) order; a saturated bus drops an incoming
// non-terminal event rather than blocking the publisher, but terminal
// events (verified/failed/skipped) and retry_scheduled events are never
// dropped.
package progressbus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

func isTerminal(kind swap.EventKind) bool {
	switch kind {
	case swap.EventVerified, swap.EventFailed, swap.EventSkipped:
		return true
	default:
		return false
	}
}

// Bus is a bounded, drop-oldest-non-terminal event channel. The zero
// value is not usable; construct with New.
type Bus struct {
	logger  *zap.Logger
	mu      sync.Mutex
	subs    []chan swap.LifecycleEvent
	closed  bool
	buffer  int
}

// New builds a Bus whose per-subscriber channels are buffered to
// capacity.
func New(capacity int, logger *zap.Logger) *Bus {
	return &Bus{logger: logger.Named("progressbus"), buffer: capacity}
}

// Subscribe returns a channel receiving every event published after this
// call. Callers MUST drain it until Close; the bus never blocks a
// publisher waiting on a slow subscriber for non-terminal events.
func (b *Bus) Subscribe() <-chan swap.LifecycleEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan swap.LifecycleEvent, b.buffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers evt to every subscriber. Terminal and retry_scheduled
// events always succeed, evicting the oldest buffered event for room if
// necessary; other non-terminal events are dropped with a warning log if
// the subscriber's buffer is full.
func (b *Bus) Publish(evt swap.LifecycleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			if isTerminal(evt.Kind) || evt.Kind == swap.EventRetryScheduled {
				b.forceDeliver(ch, evt)
				continue
			}
			b.logger.Warn("progress bus saturated, dropping non-terminal event",
				zap.String("kind", string(evt.Kind)),
				zap.Int("wallet_index", evt.WalletIndex))
		}
	}
}

// forceDeliver makes room for a terminal or retry_scheduled event by
// discarding the oldest buffered entry for that subscriber, then enqueues
// evt.
func (b *Bus) forceDeliver(ch chan swap.LifecycleEvent, evt swap.LifecycleEvent) {
	select {
	case dropped := <-ch:
		b.logger.Warn("progress bus saturated, evicting event to deliver terminal or retry event",
			zap.String("evicted_kind", string(dropped.Kind)),
			zap.Int("wallet_index", dropped.WalletIndex))
	default:
	}
	select {
	case ch <- evt:
	default:
		b.logger.Error("progress bus could not deliver terminal or retry event after eviction",
			zap.String("kind", string(evt.Kind)), zap.Int("wallet_index", evt.WalletIndex))
	}
}

// Close shuts the bus down, closing every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
}
