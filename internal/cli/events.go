package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"optionsworth/internal/amqp"
	"optionsworth/internal/config"
	"optionsworth/internal/log"
	"optionsworth/internal/worker"
)

type eventsOptions struct {
	queue           string
	summaryInterval time.Duration
	envFile         string
}

func newEventsCommand() *cobra.Command {
	opts := eventsOptions{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Consume portfolio events from AMQP and log an activity summary",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !cfg.EventsEnabled() {
				return errors.New("AMQP_URL is not set, there are no events to consume")
			}
			if opts.summaryInterval <= 0 {
				return errors.New("--summary-interval must be positive")
			}
			return consumeEvents(cmd.Context(), cfg, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.queue, "queue", "", "durable queue to consume from; empty for a temporary queue")
	fs.DurationVar(&opts.summaryInterval, "summary-interval", time.Minute, "how often to log the activity summary")
	fs.StringVar(&opts.envFile, envFileFlag, ".env", "optional env file loaded before the environment")
	return cmd
}

func consumeEvents(parent context.Context, cfg *config.Config, opts eventsOptions) error {
	logger := log.New(log.Config{Level: cfg.Level(), Component: log.ComponentAMQP})
	log.SetDefault(logger)

	ctx, stop := notifyContext(parent)
	defer stop()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewEventWorker(logger, cfg.SessionMax, cfg.SessionTTL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeEvents(gctx, opts.queue, w.HandleEvent)
	})
	g.Go(func() error {
		return w.Run(gctx, opts.summaryInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
