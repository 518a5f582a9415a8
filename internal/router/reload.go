package router

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/G1D0/httpkernel/internal/middleware"
)

// HotReloader serves route declarations from a YAML file and, when given a
// poll interval, swaps them atomically whenever the file changes.
//
// An invalid file never replaces a valid one: the previous declarations
// stay active.
type HotReloader struct {
	configPath  string
	interval    time.Duration
	registry    *middleware.Registry
	logger      *slog.Logger
	current     atomic.Pointer[compiled]
	lastModTime time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	onReload    atomic.Pointer[func(error)]
}

// NewHotReloader loads configPath, resolving middleware names against
// registry. If interval is positive the file is polled for changes.
func NewHotReloader(configPath string, interval time.Duration, registry *middleware.Registry, logger *slog.Logger) (*HotReloader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := loadCompiled(configPath, registry)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(configPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	hr := &HotReloader{
		configPath:  configPath,
		interval:    interval,
		registry:    registry,
		logger:      logger,
		lastModTime: info.ModTime(),
		ctx:         ctx,
		cancel:      cancel,
	}
	hr.current.Store(c)

	if interval > 0 {
		go hr.watch()
	}
	return hr, nil
}

// Configure declares the current routes on reg. It is the configurator
// handed to Router.Group.
func (hr *HotReloader) Configure(reg Registrar) {
	hr.current.Load().declare(reg)
}

// Config returns the currently active route file.
func (hr *HotReloader) Config() *RoutesConfig {
	return hr.current.Load().cfg
}

// OnReload sets a hook called after every reload attempt with its error.
// It may be called while the watcher runs.
func (hr *HotReloader) OnReload(fn func(err error)) {
	hr.onReload.Store(&fn)
}

// Close stops the file watcher.
func (hr *HotReloader) Close() error {
	hr.cancel()
	return nil
}

// watch polls the route file for changes.
func (hr *HotReloader) watch() {
	ticker := time.NewTicker(hr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hr.checkAndReload()
		case <-hr.ctx.Done():
			return
		}
	}
}

// checkAndReload reloads the route file if its modification time moved.
func (hr *HotReloader) checkAndReload() {
	info, err := os.Stat(hr.configPath)
	if err != nil {
		hr.logger.Warn("route reload: cannot stat file", "path", hr.configPath, "error", err)
		return
	}

	if !info.ModTime().After(hr.lastModTime) {
		return
	}

	hr.logger.Info("route reload: file changed, reloading", "path", hr.configPath)

	c, err := loadCompiled(hr.configPath, hr.registry)
	hr.lastModTime = info.ModTime()
	if fn := hr.onReload.Load(); fn != nil {
		(*fn)(err)
	}
	if err != nil {
		hr.logger.Error("route reload: invalid route file, keeping old routes", "error", err)
		return
	}

	hr.current.Store(c)

	hr.logger.Info("route reload: routes reloaded", "routes", len(c.cfg.Routes), "groups", len(c.cfg.Groups))
}

func loadCompiled(path string, registry *middleware.Registry) (*compiled, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = middleware.NewRegistry()
	}
	return compile(cfg, registry)
}
