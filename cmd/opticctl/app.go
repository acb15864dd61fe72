package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/opticfit/internal/config"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/database"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// app holds the lazily opened dependencies shared by subcommands.
type app struct {
	loadConfig func() (*config.Config, error)
	openStore  func(ctx context.Context, cfg *config.Config) (store.Store, func(), error)

	cfg     *config.Config
	service *core.Service
	closers []func()
}

func newApp() *app {
	return &app{
		loadConfig: func() (*config.Config, error) { return config.Parse(os.Getenv) },
		openStore:  openPostgres,
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool.Close, nil
}

// config loads the configuration once and applies its logging settings.
func (a *app) config(logLevel string) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	return cfg, nil
}

// catalog returns the catalog service, connecting on first use.
func (a *app) catalog(ctx context.Context) (*core.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	cfg, err := a.config("")
	if err != nil {
		return nil, err
	}
	st, closeFn, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}

	svc, err := core.NewService(st, core.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	a.service = svc
	return svc, nil
}

// cliContext tags audit entries written by a command.
func cliContext(ctx context.Context) context.Context {
	return core.WithRequestMeta(ctx, core.RequestMeta{Actor: "cli", UserAgent: "opticctl"})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
