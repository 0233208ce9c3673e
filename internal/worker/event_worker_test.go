package worker

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsworth/internal/amqp"
	"optionsworth/internal/log"
)

func newTestWorker(t *testing.T) (*EventWorker, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	return NewEventWorker(logger, 100, time.Hour), &buf
}

func TestHandleEvent_Tallies(t *testing.T) {
	w, buf := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, amqp.NewPortfolioEvent("s1", log.OpAddGrant, 0, 2).WithIndex(1)))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewPortfolioEvent("s1", log.OpSetGrantField, 729, 2).WithIndex(0).WithChange("exercise_price", 5)))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewPortfolioEvent("s2", log.OpSetGlobalRate, 12.5, 1).WithChange("market_price", 3)))

	s := w.Summary()
	assert.Equal(t, int64(3), s.Events)
	assert.Equal(t, int64(0), s.Rejected)
	assert.Equal(t, map[string]int64{
		log.OpAddGrant:      1,
		log.OpSetGrantField: 1,
		log.OpSetGlobalRate: 1,
	}, s.ByOperation)
	assert.Equal(t, 2, s.Sessions)
	assert.Equal(t, map[string]float64{"s1": 729, "s2": 12.5}, s.LastTotal)

	out := buf.String()
	assert.Contains(t, out, "msg=\"Portfolio event\"")
	assert.Contains(t, out, "field=exercise_price")
	assert.Contains(t, out, "grant_index=0")
}

func TestHandleEvent_RejectsIncomplete(t *testing.T) {
	w, buf := newTestWorker(t)
	ctx := context.Background()

	assert.NoError(t, w.HandleEvent(ctx, nil))
	assert.NoError(t, w.HandleEvent(ctx, &amqp.PortfolioEvent{Operation: log.OpAddGrant}))
	assert.NoError(t, w.HandleEvent(ctx, &amqp.PortfolioEvent{SessionID: "s1"}))

	s := w.Summary()
	assert.Equal(t, int64(0), s.Events)
	assert.Equal(t, int64(3), s.Rejected)
	assert.Contains(t, buf.String(), "missing session id")
}

func TestSummaryIsACopy(t *testing.T) {
	w, _ := newTestWorker(t)
	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewPortfolioEvent("s1", log.OpImport, 1, 1)))

	s := w.Summary()
	s.ByOperation[log.OpImport] = 99
	assert.Equal(t, int64(1), w.Summary().ByOperation[log.OpImport])
}

func TestRun_LogsSummaryOnStop(t *testing.T) {
	w, buf := newTestWorker(t)
	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewPortfolioEvent("s1", log.OpImport, 1, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Run(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, buf.String(), "Event summary")
	assert.Contains(t, buf.String(), "op_import=1")
}
