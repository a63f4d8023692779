package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/entry"
	"github.com/effectus/extension-sdk/events"
	"github.com/effectus/extension-sdk/internal/config"
	"github.com/effectus/extension-sdk/internal/logging"
	"github.com/effectus/extension-sdk/internal/schemasources"
	"github.com/effectus/extension-sdk/schema"
	transporthttp "github.com/effectus/extension-sdk/transport/http"
	"github.com/effectus/extension-sdk/transport/websocket"
)

// app is what every subcommand works with
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	bus      *events.Bus
	conn     extension.Connection
	closers  []func() error
}

// newApp loads configuration, logging and schema sources. The transport
// is only dialed when withConn is set.
func newApp(ctx context.Context, withConn bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: schema.NewRegistry(),
		bus:      events.NewBus(logger.Named("events")),
	}
	if err := a.loadSchemas(ctx); err != nil {
		return nil, err
	}
	if withConn {
		if err := a.connect(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) loadSchemas(ctx context.Context) error {
	count, err := schemasources.Apply(ctx, a.registry, a.cfg.SchemaSources, a.logger.Named("schemas"))
	if err != nil {
		return err
	}
	if count > 0 {
		a.logger.Info("schemas loaded",
			zap.Int("documents", count),
			zap.Strings("global_fields", a.registry.GlobalFields()))
	}
	return nil
}

func (a *app) connect(ctx context.Context) error {
	switch a.cfg.Transport.Kind {
	case config.TransportHTTP:
		client, err := transporthttp.NewClient(a.cfg.Transport.HTTP, a.logger.Named("http"))
		if err != nil {
			return err
		}
		a.conn = client
	case config.TransportWebSocket:
		conn, err := websocket.Dial(ctx, a.cfg.Transport.WebSocket, a.bus, a.logger.Named("websocket"))
		if err != nil {
			return err
		}
		a.conn = conn
		a.closers = append(a.closers, conn.Close)
	}
	if a.conn != nil {
		extension.ForwardRegistrations(a.bus, a.conn)
	}
	return nil
}

// loadEntry reads the init payload named by --init; content types from the
// schema sources stand in when the payload names one by uid only.
func (a *app) loadEntry() (*entry.Entry, error) {
	if initPath == "" {
		return nil, fmt.Errorf("--init is required")
	}
	raw, err := os.ReadFile(initPath)
	if err != nil {
		return nil, fmt.Errorf("reading init payload: %w", err)
	}
	init, err := entry.ParseInit(raw)
	if err != nil {
		return nil, err
	}
	if len(init.ContentType.Schema) == 0 {
		if registered, ok := a.registry.ContentType(init.ContentType.UID); ok {
			init.ContentType = registered
		}
	}

	return entry.New(init, a.conn, a.bus,
		entry.WithGlobalFields(a.registry),
		entry.WithLogger(a.logger.Named("entry")))
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	_ = a.logger.Sync()
	return first
}
