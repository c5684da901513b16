package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/habitkit/internal/events"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/server"
	"github.com/julianstephens/habitkit/internal/server/postgres"
)

type ServeCmd struct {
	Addr   string `help:"Listen address (overrides settings)."`
	Memory bool   `help:"Keep server state in memory instead of PostgreSQL."`
}

func (c *ServeCmd) Run(ctx *Context) error {
	cfg := ctx.Settings.Server
	addr := c.Addr
	if addr == "" {
		addr = cfg.Addr
	}

	tokens, err := server.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("server.jwt_secret: %w", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store server.Store
	if c.Memory {
		store = server.NewMemoryStore()
	} else {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("server.database_url is required unless --memory is set")
		}
		pg, err := postgres.Open(runCtx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		store = pg
	}
	defer store.Close()

	var publisher events.Publisher = events.Nop{}
	if len(ctx.Settings.Events.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(ctx.Settings.Events.Kafka)
		if err != nil {
			return err
		}
		publisher = kp
	}
	defer publisher.Close()

	srv := server.New(server.Options{
		Store:         store,
		Tokens:        tokens,
		Publisher:     publisher,
		Clock:         ctx.clock(),
		EnableMetrics: cfg.Metrics,
	})

	logger.Info("starting server", "addr", addr, "memory", c.Memory)
	ctx.printf("Listening on %s\n", addr)
	return srv.ListenAndServe(runCtx, addr)
}
