package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/adapters/files"
	"github.com/effectus/extension-sdk/entry"
	"github.com/effectus/extension-sdk/events"
	"github.com/effectus/extension-sdk/internal/schemasources"
	"github.com/effectus/extension-sdk/schema"
	transporthttp "github.com/effectus/extension-sdk/transport/http"
)

func createWatchCmd() *cobra.Command {
	var (
		paths      []string
		schemaDirs []string
		followInit bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow host notifications for the entry",
		Long: `Subscribe to save, change, publish and unpublish notifications and print
them as they arrive. Notifications come from the configured transport
(websocket), the Redis, Kafka and AMQP bridges and the webhook. Event
registrations are published back through every bridge.

With --follow-init, edits to the init payload file are replayed as
entrySave notifications. With --schemas, schema files are reloaded when
they change.

Examples:
  entryctl watch --init init.json --path title --path modular_blocks.0.banner
  entryctl watch -c entryctl.yaml --init init.json --follow-init --schemas ./schemas`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.loadEntry()
			if err != nil {
				return err
			}

			w := &watchSession{
				app:       a,
				entry:     e,
				out:       cmd.OutOrStdout(),
				paths:     paths,
				navigator: schema.NewNavigator(a.registry),
			}
			// sources first, so bridges see the registrations subscribe announces
			if err := w.startSources(ctx); err != nil {
				return err
			}
			if err := w.subscribe(); err != nil {
				return err
			}
			if followInit {
				if err := w.followInit(ctx); err != nil {
					return err
				}
			}
			if len(schemaDirs) > 0 {
				if err := w.watchSchemas(ctx, schemaDirs); err != nil {
					return err
				}
			}

			a.logger.Info("watching entry", zap.String("content_type", e.ContentType().UID))
			<-ctx.Done()
			w.wg.Wait()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&paths, "path", nil, "Field path to re-resolve after every notification")
	cmd.Flags().StringSliceVar(&schemaDirs, "schemas", nil, "Schema directories to reload on change")
	cmd.Flags().BoolVar(&followInit, "follow-init", false, "Replay init file edits as entrySave notifications")

	return cmd
}

// watchSession prints notifications for one entry
type watchSession struct {
	app       *app
	entry     *entry.Entry
	navigator *schema.Navigator
	paths     []string

	mu  sync.Mutex
	out io.Writer

	wg sync.WaitGroup
}

func (w *watchSession) subscribe() error {
	for _, sub := range []func(extension.Handler) error{
		w.entry.OnSave, w.entry.OnChange, w.entry.OnPublish, w.entry.OnUnPublish,
	} {
		if err := sub(w.print); err != nil {
			return err
		}
	}
	return nil
}

func (w *watchSession) print(ctx context.Context, event extension.Event) error {
	reports := make([]fieldReport, 0, len(w.paths))
	for _, path := range w.paths {
		reports = append(reports, resolveReport(w.entry, w.navigator, path, false))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "== %s\n", event.Name)
	if len(reports) > 0 {
		return writeReports(w.out, "table", reports)
	}
	return nil
}

func (w *watchSession) startSources(ctx context.Context) error {
	cfg := w.app.cfg.Events
	logger := w.app.logger

	bridges, err := w.openBridges()
	if err != nil {
		return err
	}
	for name, bridge := range bridges {
		w.app.closers = append(w.app.closers, bridge.Close)
		events.Forward(w.app.bus, extension.EventRegister, bridge)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := bridge.Run(ctx); err != nil {
				logger.Error("bridge stopped", zap.String("bridge", name), zap.Error(err))
			}
		}()
	}

	if cfg.WebhookEnabled() {
		hook, err := transporthttp.NewWebhook(cfg.Webhook, w.app.bus, logger.Named("webhook"))
		if err != nil {
			return err
		}
		if err := hook.Start(ctx); err != nil {
			return err
		}
		w.app.closers = append(w.app.closers, func() error {
			return hook.Stop(context.Background())
		})
	}
	return nil
}

// openBridges creates every configured message bridge
func (w *watchSession) openBridges() (map[string]events.Bridge, error) {
	cfg := w.app.cfg.Events
	logger := w.app.logger
	bridges := make(map[string]events.Bridge)

	if cfg.RedisEnabled() {
		bridge, err := events.NewRedisBridge(cfg.Redis, w.app.bus, logger.Named("redis"))
		if err != nil {
			return nil, err
		}
		bridges["redis"] = bridge
	}
	if cfg.KafkaEnabled() {
		bridge, err := events.NewKafkaBridge(cfg.Kafka, w.app.bus, logger.Named("kafka"))
		if err != nil {
			return nil, err
		}
		bridges["kafka"] = bridge
	}
	if cfg.AMQPEnabled() {
		bridge, err := events.NewAMQPBridge(cfg.AMQP, w.app.bus, logger.Named("amqp"))
		if err != nil {
			for _, opened := range bridges {
				opened.Close()
			}
			return nil, err
		}
		bridges["amqp"] = bridge
	}
	return bridges, nil
}

// followInit replays the init file as a save whenever it is written
func (w *watchSession) followInit(ctx context.Context) error {
	watcher, err := files.NewWatcher(files.WatcherConfig{
		Paths:    []string{filepath.Dir(initPath)},
		Patterns: []string{filepath.Base(initPath)},
		Events:   []string{"CREATE", "WRITE"},
	}, w.app.logger.Named("init"))
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_ = watcher.Run(ctx, func(files.FileEvent) {
			raw, err := os.ReadFile(initPath)
			if err != nil {
				w.app.logger.Warn("reading init payload", zap.Error(err))
				return
			}
			init, err := entry.ParseInit(raw)
			if err != nil {
				w.app.logger.Warn("ignoring invalid init payload", zap.Error(err))
				return
			}
			w.app.bus.Emit(ctx, extension.EventEntrySave, map[string]interface{}{
				entry.DataKey:        init.Entry,
				entry.ContentTypeKey: init.ContentType,
			})
		})
	}()
	return nil
}

// watchSchemas re-applies the configured sources when schema files change
func (w *watchSession) watchSchemas(ctx context.Context, dirs []string) error {
	watcher, err := files.NewWatcher(files.WatcherConfig{Paths: dirs, Recursive: true}, w.app.logger.Named("schemas"))
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_ = watcher.Run(ctx, func(event files.FileEvent) {
			count, err := schemasources.Apply(ctx, w.app.registry, w.app.cfg.SchemaSources, w.app.logger.Named("schemas"))
			if err != nil {
				w.app.logger.Warn("schema reload failed", zap.String("trigger", event.Path), zap.Error(err))
				return
			}
			w.app.logger.Info("schemas reloaded", zap.String("trigger", event.Path), zap.Int("documents", count))
		})
	}()
	return nil
}
