package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"optionsworth/internal/amqp"
	"optionsworth/internal/cache"
	"optionsworth/internal/config"
	apphttp "optionsworth/internal/http"
	"optionsworth/internal/log"
	"optionsworth/internal/middleware/ratelimit"
	"optionsworth/internal/services"
	"optionsworth/internal/session"
)

const (
	portFlag    = "port"
	envFileFlag = "env-file"
)

func newServeCommand() *cobra.Command {
	var (
		port    string
		envFile string
		cfg     *config.Config
	)

	fs := &pflag.FlagSet{}
	fs.StringVarP(&port, portFlag, "p", "", "listen port, overrides PORT")
	fs.StringVar(&envFile, envFileFlag, ".env", "optional env file loaded before the environment")

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web calculator",
		Args:  cobra.ExactArgs(0),
	}
	cmd.Flags().AddFlagSet(fs)

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		if port != "" {
			cfg.Port = port
		}
		return cfg.Validate()
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg)
	}
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := log.New(log.Config{Level: cfg.Level(), Component: log.ComponentApp})
	log.SetDefault(logger)

	ctx, stop := notifyContext(parent)
	defer stop()

	store := session.NewStore(session.Config{
		TTL:          cfg.SessionTTL,
		MaxSessions:  cfg.SessionMax,
		DefaultRates: cfg.DefaultRates(),
	}, logger.WithComponent(log.ComponentSession).Slog())

	janitor := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	janitor.Register(store.Cleaner())

	publisher, closePublisher := newPublisher(ctx, cfg, logger)
	defer closePublisher()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:       ":" + cfg.Port,
		Sessions:   store,
		Calculator: services.NewCalculatorService(publisher, logger.WithComponent(log.ComponentCalc)),
		Logger:     logger,
		RateLimit:  ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMin},
	})
	if err != nil {
		return err
	}

	logger.Info("Starting optionsworth",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"events", cfg.EventsEnabled(),
		"session_ttl", cfg.SessionTTL.String(),
		"version", Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		if err := janitor.Run(gctx, cfg.SessionCleanupInterval); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}

func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newPublisher connects to the broker when one is configured. Events are
// best effort, so an unreachable broker downgrades to a no-op publisher.
func newPublisher(ctx context.Context, cfg *config.Config, logger *log.Logger) (services.Publisher, func()) {
	if !cfg.EventsEnabled() {
		return services.NoopPublisher{}, func() {}
	}

	amqpLogger := logger.WithComponent(log.ComponentAMQP)
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		amqpLogger.Error("AMQP unavailable, portfolio events disabled",
			log.FieldError, err,
			"exchange", cfg.AMQPExchange)
		return services.NoopPublisher{}, func() {}
	}
	return client, func() {
		if err := client.Close(); err != nil {
			amqpLogger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
}
