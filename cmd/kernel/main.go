package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/G1D0/httpkernel/internal/app"
	"github.com/G1D0/httpkernel/internal/circuitbreaker"
	"github.com/G1D0/httpkernel/internal/config"
	"github.com/G1D0/httpkernel/internal/container"
	"github.com/G1D0/httpkernel/internal/kernel"
	"github.com/G1D0/httpkernel/internal/middleware"
	"github.com/G1D0/httpkernel/internal/observe"
	"github.com/G1D0/httpkernel/internal/ratelimit"
	"github.com/G1D0/httpkernel/internal/router"
	"github.com/G1D0/httpkernel/internal/server"
)

func main() {
	basePath := flag.String("base", ".", "application base directory")
	configPath := flag.String("config", "kernel.yaml", "configuration file")
	flag.Parse()

	if err := run(*basePath, *configPath); err != nil {
		slog.Error("kernel exited", "error", err)
		os.Exit(1)
	}
}

func run(basePath, configPath string) error {
	// The environment file may carry KERNEL_* settings.
	if err := app.LoadEnvironment(basePath); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := observe.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := observe.NewLogger(level)
	slog.SetDefault(logger)

	if cfg.Tracing.Enabled {
		shutdown, err := observe.InitTracer("httpkernel", logger)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observe.NewMetrics(reg)

	limiter := ratelimit.NewPerClient(cfg.RateLimit.Burst, cfg.RateLimit.Rate, 10*time.Minute)
	breakers := circuitbreaker.NewSet(cfg.Breaker.Threshold, cfg.Breaker.Cooldown)
	breakers.OnStateChange = func(route string, s circuitbreaker.State) {
		metrics.CircuitState.WithLabelValues(route).Set(float64(s))
		logger.Warn("circuit state changed", "route", route, "state", s.String())
	}

	mws := middleware.NewRegistry()
	mws.Register("trace", middleware.Tracing())
	mws.Register("log", middleware.Logging(logger))
	mws.Register("throttle", middleware.RateLimitWithKeyFunc(limiter, middleware.ClientIP, func(client string) {
		metrics.RateLimitedTotal.WithLabelValues(client).Inc()
	}))
	mws.Register("breaker", middleware.CircuitBreaker(breakers, nil))

	c := container.New()
	c.Bind(container.KeyRouter, func(container.Resolver) (any, error) {
		return router.NewTable(), nil
	})
	registerControllers(c, logger)

	application, err := app.New(context.Background(), c, basePath,
		app.WithLogger(logger),
		app.WithMiddleware(mws),
		app.WithRouteFile(cfg.Routes.File),
		app.WithReloadInterval(cfg.Routes.ReloadInterval),
		app.WithReloadHook(func(err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			metrics.RouteReloads.WithLabelValues(result).Inc()
		}),
		app.WithKernelOptions(kernel.WithMetrics(metrics)),
	)
	if err != nil {
		limiter.Close()
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Instrument(metrics))
	r.Use(chimw.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "httpkernel")
	})
	r.Method(http.MethodGet, cfg.Metrics.Path, observe.HandlerFor(reg))
	r.Handle("/*", application)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		DrainTimeout: cfg.Server.DrainTimeout,
		Logger:       logger,
	})
	srv.RegisterCloser("rate limiter", limiter)
	srv.RegisterCloser("route reloader", application)

	return srv.ListenAndServe()
}
