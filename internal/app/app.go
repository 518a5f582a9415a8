// Package app boots an application around the kernel: it registers the
// container, loads the base directory's .env file, runs service hooks and
// serves the route file.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/G1D0/httpkernel/internal/container"
	"github.com/G1D0/httpkernel/internal/kernel"
	"github.com/G1D0/httpkernel/internal/middleware"
	"github.com/G1D0/httpkernel/internal/response"
	"github.com/G1D0/httpkernel/internal/router"
)

// Version of the application kernel.
const Version = "0.1"

// Service is a boot hook. Services are resolved from the container by key
// and loaded once, in order, before the first request.
type Service interface {
	Load(ctx context.Context) error
}

// Application is the process entry point for HTTP requests.
type Application struct {
	container *container.Container
	basePath  string
	logger    *slog.Logger

	routeFile      string
	reloadInterval time.Duration
	registry       *middleware.Registry
	routes         func(router.Registrar)
	onReload       func(error)
	services       []string
	kernelOpts     []kernel.Option

	reloader *router.HotReloader
	kernel   *kernel.Kernel
}

type Option func(*Application)

// WithLogger sets the logger used by the application and its kernel.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// WithRouteFile overrides RoutePath as the route source.
func WithRouteFile(path string) Option {
	return func(a *Application) { a.routeFile = path }
}

// WithReloadInterval polls the route file for changes.
func WithReloadInterval(d time.Duration) Option {
	return func(a *Application) { a.reloadInterval = d }
}

// WithReloadHook is told the result of every route file reload.
func WithReloadHook(fn func(err error)) Option {
	return func(a *Application) { a.onReload = fn }
}

// WithMiddleware sets the registry that route file middleware names are
// resolved against.
func WithMiddleware(reg *middleware.Registry) Option {
	return func(a *Application) { a.registry = reg }
}

// WithRoutes declares routes in code instead of reading the route file.
func WithRoutes(fn func(router.Registrar)) Option {
	return func(a *Application) { a.routes = fn }
}

// WithServices adds service keys to load after those in the services file.
func WithServices(keys ...string) Option {
	return func(a *Application) { a.services = append(a.services, keys...) }
}

// WithKernelOptions passes options through to the kernel.
func WithKernelOptions(opts ...kernel.Option) Option {
	return func(a *Application) { a.kernelOpts = append(a.kernelOpts, opts...) }
}

// New boots an application rooted at basePath.
//
// The container is bound under container.KeyContainer. Variables from
// <basePath>/.env are exported without overriding ones already set; a
// missing file is skipped. Services are then loaded, and finally the routes.
func New(ctx context.Context, c *container.Container, basePath string, opts ...Option) (*Application, error) {
	a := &Application{
		container: c,
		basePath:  strings.TrimRight(basePath, `/\`),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	c.Instance(container.KeyContainer, c)

	if err := LoadEnvironment(a.basePath); err != nil {
		return nil, err
	}
	if err := a.loadServices(ctx); err != nil {
		return nil, err
	}

	routes := a.routes
	if routes == nil {
		path := a.routeFile
		if path == "" {
			path = a.RoutePath()
		}
		hr, err := router.NewHotReloader(path, a.reloadInterval, a.registry, a.logger)
		if err != nil {
			return nil, fmt.Errorf("load routes: %w", err)
		}
		if a.onReload != nil {
			hr.OnReload(a.onReload)
		}
		a.reloader = hr
		routes = hr.Configure
	}

	kopts := append([]kernel.Option{kernel.WithLogger(a.logger)}, a.kernelOpts...)
	a.kernel = kernel.New(c, routes, kopts...)

	a.logger.Info("application booted", "version", Version, "base_path", a.basePath)
	return a, nil
}

// BasePath is the application root without a trailing separator.
func (a *Application) BasePath() string { return a.basePath }

// RoutePath is the default route file.
func (a *Application) RoutePath() string {
	return a.basePath + "/web/routes.yaml"
}

// ServicePath is the services file.
func (a *Application) ServicePath() string {
	return a.basePath + "/app/services.yaml"
}

// Container returns the application's container.
func (a *Application) Container() *container.Container { return a.container }

// Reloader returns the route file reloader, or nil when routes are
// declared in code.
func (a *Application) Reloader() *router.HotReloader { return a.reloader }

// Handle runs the request through the kernel.
func (a *Application) Handle(r *http.Request) (*response.Response, error) {
	return a.kernel.Handle(r)
}

func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.kernel.ServeHTTP(w, r)
}

// Close stops the route file watcher.
func (a *Application) Close() error {
	if a.reloader != nil {
		return a.reloader.Close()
	}
	return nil
}

// LoadEnvironment exports the variables in <basePath>/.env that are not
// already set. A missing file is not an error.
func LoadEnvironment(basePath string) error {
	path := filepath.Join(basePath, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type servicesFile struct {
	Services []string `yaml:"services"`
}

func (a *Application) loadServices(ctx context.Context) error {
	keys, err := readServices(a.ServicePath())
	if err != nil {
		return err
	}
	keys = append(keys, a.services...)

	for _, key := range keys {
		if !a.container.Has(key) {
			a.logger.Debug("service not bound, skipping", "service", key)
			continue
		}
		v, err := a.container.Make(key)
		if err != nil {
			return fmt.Errorf("service %s: %w", key, err)
		}
		svc, ok := v.(Service)
		if !ok {
			a.logger.Debug("not a service, skipping", "service", key, "type", fmt.Sprintf("%T", v))
			continue
		}
		if err := svc.Load(ctx); err != nil {
			return fmt.Errorf("service %s: load: %w", key, err)
		}
		a.logger.Info("service loaded", "service", key)
	}
	return nil
}

func readServices(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var f servicesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Services, nil
}
