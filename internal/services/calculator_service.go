package services

import (
	"context"
	"fmt"

	"optionsworth/internal/amqp"
	"optionsworth/internal/core"
	"optionsworth/internal/log"
	"optionsworth/internal/session"
)

// CalculatorService applies portfolio operations to a session, logs them and
// announces them on the event bus.
type CalculatorService struct {
	publisher Publisher
	logger    *log.Logger
	ops       *log.StructuredLogger
}

func NewCalculatorService(publisher Publisher, logger *log.Logger) *CalculatorService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentCalc)
	return &CalculatorService{
		publisher: publisher,
		logger:    logger,
		ops:       log.NewStructuredLogger(logger),
	}
}

// AddGrant appends a default grant and returns its index.
func (s *CalculatorService) AddGrant(ctx context.Context, sess *session.Session) (int, core.Valuation) {
	index, v := sess.AddGrant()

	s.ops.LogOperation(ctx, sess.ID(), log.OpAddGrant, log.NewFields().WithGrantIndex(index), v)
	s.publish(ctx, amqp.NewPortfolioEvent(sess.ID(), log.OpAddGrant, v.Total, len(v.Grants)).
		WithIndex(index))

	return index, v
}

// SetGrantField changes one input of one grant.
func (s *CalculatorService) SetGrantField(ctx context.Context, sess *session.Session, index int, field core.GrantField, value float64) (core.Valuation, error) {
	v, err := sess.SetGrantField(index, field, value)
	if err != nil {
		return v, fmt.Errorf("set %s of grant %d: %w", field, index, err)
	}

	s.ops.LogOperation(ctx, sess.ID(), log.OpSetGrantField,
		log.NewFields().WithGrantIndex(index).WithChange(string(field), value), v)
	s.publish(ctx, amqp.NewPortfolioEvent(sess.ID(), log.OpSetGrantField, v.Total, len(v.Grants)).
		WithIndex(index).
		WithChange(string(field), value))

	return v, nil
}

// SetGlobalRate changes one rate; every grant is revalued.
func (s *CalculatorService) SetGlobalRate(ctx context.Context, sess *session.Session, field core.RateField, value float64) (core.Valuation, error) {
	v, err := sess.SetGlobalRate(field, value)
	if err != nil {
		return v, fmt.Errorf("set %s: %w", field, err)
	}

	s.ops.LogOperation(ctx, sess.ID(), log.OpSetGlobalRate,
		log.NewFields().WithChange(string(field), value), v)
	s.publish(ctx, amqp.NewPortfolioEvent(sess.ID(), log.OpSetGlobalRate, v.Total, len(v.Grants)).
		WithChange(string(field), value))

	return v, nil
}

// Import replaces the session's portfolio with p.
func (s *CalculatorService) Import(ctx context.Context, sess *session.Session, p *core.Portfolio) core.Valuation {
	v := sess.Replace(p)

	s.ops.LogOperation(ctx, sess.ID(), log.OpImport, log.NewFields(), v)
	s.publish(ctx, amqp.NewPortfolioEvent(sess.ID(), log.OpImport, v.Total, len(v.Grants)))

	return v
}

// publish never fails the caller; the portfolio change already happened.
func (s *CalculatorService) publish(ctx context.Context, ev *amqp.PortfolioEvent) {
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish portfolio event",
			log.FieldSessionID, ev.SessionID,
			log.FieldOperation, ev.Operation,
			log.FieldError, err)
	}
}
