package services

import (
	"context"

	"optionsworth/internal/amqp"
)

// Publisher delivers portfolio events. *amqp.Client implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *amqp.PortfolioEvent) error
}

// NoopPublisher drops every event. Used when AMQP is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, *amqp.PortfolioEvent) error { return nil }

var _ Publisher = (*amqp.Client)(nil)
