package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/cache"
	"github.com/ZanzyTHEbar/taskweave/internal/config"
	"github.com/ZanzyTHEbar/taskweave/internal/configgen"
	"github.com/ZanzyTHEbar/taskweave/internal/eventbus"
	"github.com/ZanzyTHEbar/taskweave/internal/httpcall"
	"github.com/ZanzyTHEbar/taskweave/internal/llm"
	"github.com/ZanzyTHEbar/taskweave/internal/log"
	"github.com/ZanzyTHEbar/taskweave/internal/reasoner"
	"github.com/ZanzyTHEbar/taskweave/internal/tools"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	llm    llm.Client
	bus    *eventbus.ChannelEventBus
	cache  *cache.InMemoryCache
}

func newApp(ctx context.Context, root *Options) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if root.Config != "" {
		cfg.ConfigPath = root.Config
	}
	if root.LogLevel != "" {
		cfg.LogLevel = root.LogLevel
	}

	logger := log.New(cfg.LogLevel)
	bus := eventbus.NewChannelEventBus(eventbus.WithLogger(logger))
	if _, err := bus.SubscribeAll(func(_ context.Context, evt eventbus.Event) error {
		logger.Debug("event", "type", evt.Type(), "source", evt.Source(), "payload", evt.Payload())
		return nil
	}); err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		llm:    llm.New(ctx, cfg.GeminiAPIKey, logger, llm.WithModel(cfg.Model)),
		bus:    bus,
		cache:  cache.NewInMemoryCache(cfg.CacheTTL, cache.WithLogger(logger), cache.WithCleanupInterval(cfg.CacheTTL)),
	}, nil
}

func (a *app) Close() {
	a.cache.Close()
	if err := a.bus.Close(); err != nil {
		a.logger.Debug("event bus close", "error", err)
	}
}

// orchestratorOptions wires the configured backends into every orchestrator.
func (a *app) orchestratorOptions() []taskweave.Option {
	return []taskweave.Option{
		taskweave.WithLLM(a.llm),
		taskweave.WithHTTPClient(httpcall.New(
			httpcall.WithTimeout(a.cfg.RemoteTimeout),
			httpcall.WithRateLimit(a.cfg.RemoteRatePerMinute),
		)),
		taskweave.WithRemoteTimeout(a.cfg.RemoteTimeout),
		taskweave.WithEventBus(a.bus),
		taskweave.WithReasonerFactory(reasoner.NewFactory(a.cfg.GeminiAPIKey, reasoner.WithLogger(a.logger))),
		taskweave.WithLogger(a.logger),
	}
}

func (a *app) document() (taskweave.Document, error) {
	return config.LoadDocument(a.cfg.ConfigPath)
}

// registry returns the tool registry used for config generation.
func (a *app) registry() (*tools.Registry, error) {
	if a.cfg.SchemaPath == "" {
		return tools.Default(), nil
	}
	doc, err := config.LoadDocument(a.cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	return tools.FromDocument(doc)
}

// generator builds a config generator over the registry narrowed to the tools
// matching patterns and tags.
func (a *app) generator(patterns, tags []string) (*configgen.Generator, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	if reg, err = reg.Narrow(patterns, tags); err != nil {
		return nil, err
	}
	return configgen.New(reg, a.llm, configgen.WithCache(a.cache), configgen.WithLogger(a.logger)), nil
}

// writeJSONFile writes v to path. A failed close is reported when the write succeeded.
func writeJSONFile(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return writeJSON(f, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
