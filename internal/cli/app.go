package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jbonatakis/testqueue/internal/config"
	"github.com/jbonatakis/testqueue/internal/logging"
	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/store"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// app is everything a command needs once config is resolved.
type app struct {
	cfg     config.ResolvedConfig
	log     *slog.Logger
	support testplan.Support
	store   *store.Store
	svc     *queue.Service
}

func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func openApp() (*app, error) {
	cfg, err := config.LoadConfig(projectRoot())
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log := logging.New(level, os.Stderr)

	support, err := testplan.LoadSupport(cfg.Support.Path)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	log.Debug("store opened", "path", cfg.Store.Path)

	svc := queue.New(st, queue.Options{
		Logger:                log,
		Support:               support,
		RecommendedTargetDays: cfg.Report.RecommendedTargetDays,
	})
	return &app{cfg: cfg, log: log, support: support, store: st, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", "err", err)
	}
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
