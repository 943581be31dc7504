package app

import (
	"context"
	"fmt"

	"github.com/blackwell-systems/examwatch/internal/advisor"
	"github.com/blackwell-systems/examwatch/internal/config"
	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/events"
	"github.com/blackwell-systems/examwatch/internal/logger"
	"github.com/blackwell-systems/examwatch/internal/observability"
	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/retention"
	"github.com/blackwell-systems/examwatch/internal/store"
)

// runtime holds everything a command needs, opened from the loaded config.
type runtime struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *store.DB
	bus       events.Bus
	retention *retention.Provider
	engine    *engine.Engine

	shutdownTracing func(context.Context) error
}

// openRuntime loads config and wires the store, event bus, retention
// provider, optional advisor and engine. Callers must call close.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	output.ConfigureColor(stdout, flagNoColor || !cfg.Output.Color)

	level := cfg.Log.Level
	if flagVerbose {
		level = "debug"
	}
	log, err := logger.New(cfg.Log.Mode, level)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log}

	tracing := cfg.Tracing
	tracing.Version = appVersion
	rt.shutdownTracing = observability.InitTracing(ctx, log, tracing)

	rt.db, err = store.Open(cfg.DBPath(), cfg.Caps)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	rt.bus = openBus(ctx, cfg, log)
	rt.retention = retention.NewProvider(rt.db, cfg.SM2())

	opts := []engine.Option{
		engine.WithRetentionProvider(rt.retention),
		engine.WithBus(rt.bus),
		engine.WithLogger(log),
	}
	if aopts, ok := cfg.AdvisorOptions(); ok {
		claude, err := advisor.New(aopts)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("configuring advisor: %w", err)
		}
		opts = append(opts, engine.WithTextProvider(claude))
	}

	rt.engine, err = engine.New(cfg.EngineConfig(), rt.db, opts...)
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

// openBus connects to Redis when an address is configured. A failed
// connection degrades to an in-process bus.
func openBus(ctx context.Context, cfg *config.Config, log *logger.Logger) events.Bus {
	if cfg.Redis.Addr == "" {
		return events.NewLocalBus()
	}
	bus, err := events.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel, log)
	if err != nil {
		log.Warn("redis unavailable, events stay in-process", "addr", cfg.Redis.Addr, "error", err)
		return events.NewLocalBus()
	}
	return bus
}

func (rt *runtime) close() {
	if rt.engine != nil {
		rt.engine.Stop()
	}
	if rt.bus != nil {
		_ = rt.bus.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
	if rt.shutdownTracing != nil {
		_ = rt.shutdownTracing(context.Background())
	}
	if rt.log != nil {
		rt.log.Sync()
	}
}
