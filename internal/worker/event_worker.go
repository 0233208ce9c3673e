// Package worker consumes portfolio events and keeps a running activity
// summary that is logged periodically.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"optionsworth/internal/amqp"
	"optionsworth/internal/cache"
	"optionsworth/internal/log"
)

// Summary is a point-in-time view of the consumed events.
type Summary struct {
	Events      int64
	Rejected    int64
	ByOperation map[string]int64
	Sessions    int
	// LastTotal is the most recent total after-tax return per tracked session.
	LastTotal map[string]float64
}

// EventWorker tallies events per operation and remembers the latest total of
// each session it has seen recently.
type EventWorker struct {
	logger *log.Logger

	mu          sync.Mutex
	events      int64
	rejected    int64
	byOperation map[string]int64
	sessions    *cache.LRUCache[float64]
}

// NewEventWorker tracks up to maxSessions sessions, forgetting those silent
// for longer than sessionTTL.
func NewEventWorker(logger *log.Logger, maxSessions int, sessionTTL time.Duration) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		logger:      logger.WithComponent(log.ComponentAMQP),
		byOperation: make(map[string]int64),
		sessions:    cache.NewLRUCache[float64](maxSessions, sessionTTL),
	}
}

var errInvalidEvent = errors.New("invalid portfolio event")

// HandleEvent records one event. Events without a session or operation are
// counted as rejected and not retried.
func (w *EventWorker) HandleEvent(ctx context.Context, ev *amqp.PortfolioEvent) error {
	if err := validate(ev); err != nil {
		w.mu.Lock()
		w.rejected++
		w.mu.Unlock()
		w.logger.WarnContext(ctx, "Dropping portfolio event", log.FieldError, err)
		return nil
	}

	w.mu.Lock()
	w.events++
	w.byOperation[ev.Operation]++
	w.mu.Unlock()
	w.sessions.Set(ev.SessionID, ev.Total)

	args := []any{
		log.FieldSessionID, ev.SessionID,
		log.FieldOperation, ev.Operation,
		log.FieldTotal, ev.Total,
		log.FieldGrantCount, ev.GrantCount,
	}
	if ev.Index != nil {
		args = append(args, log.FieldGrantIndex, *ev.Index)
	}
	if ev.Field != "" && ev.Value != nil {
		args = append(args, log.FieldField, ev.Field, log.FieldValue, *ev.Value)
	}
	w.logger.InfoContext(ctx, "Portfolio event", args...)
	return nil
}

func validate(ev *amqp.PortfolioEvent) error {
	switch {
	case ev == nil:
		return fmt.Errorf("%w: empty message", errInvalidEvent)
	case ev.SessionID == "":
		return fmt.Errorf("%w: missing session id", errInvalidEvent)
	case ev.Operation == "":
		return fmt.Errorf("%w: missing operation", errInvalidEvent)
	}
	return nil
}

// Summary returns a copy of the counters.
func (w *EventWorker) Summary() Summary {
	w.mu.Lock()
	s := Summary{
		Events:      w.events,
		Rejected:    w.rejected,
		ByOperation: make(map[string]int64, len(w.byOperation)),
	}
	for op, n := range w.byOperation {
		s.ByOperation[op] = n
	}
	w.mu.Unlock()

	s.LastTotal = w.sessions.Snapshot()
	s.Sessions = len(s.LastTotal)
	return s
}

// Run logs a summary on every tick until ctx is done, expiring idle sessions
// as it goes. It always returns ctx.Err().
func (w *EventWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sessions.CleanExpired()
			w.logSummary(ctx)
		case <-ctx.Done():
			w.logSummary(ctx)
			return ctx.Err()
		}
	}
}

func (w *EventWorker) logSummary(ctx context.Context) {
	s := w.Summary()
	ops := make([]string, 0, len(s.ByOperation))
	for op := range s.ByOperation {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	args := []any{"events", s.Events, "rejected", s.Rejected, "active_sessions", s.Sessions}
	for _, op := range ops {
		args = append(args, "op_"+op, s.ByOperation[op])
	}
	w.logger.InfoContext(ctx, "Event summary", args...)
}
