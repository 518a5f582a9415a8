package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/G1D0/httpkernel/internal/app"
	"github.com/G1D0/httpkernel/internal/container"
	"github.com/G1D0/httpkernel/internal/response"
)

// registerControllers binds the demo controllers referenced by web/routes.yaml.
func registerControllers(c *container.Container, logger *slog.Logger) {
	c.Instance("home", container.ControllerFunc(home))
	c.Instance("health", container.ControllerFunc(health))
	c.Instance("users.show", container.ControllerFunc(showUser))
	c.Instance("echo", container.ControllerFunc(echo))
	c.Instance("services.banner", banner{logger: logger})
}

func home(ctx context.Context, r container.Resolver, p container.Params) (any, error) {
	return response.JSON(http.StatusOK, nil, map[string]string{
		"name":    "httpkernel",
		"version": app.Version,
	}), nil
}

func health(ctx context.Context, r container.Resolver, p container.Params) (any, error) {
	return response.Text(http.StatusOK, "ok"), nil
}

func showUser(ctx context.Context, r container.Resolver, p container.Params) (any, error) {
	return response.JSON(http.StatusOK, nil, map[string]string{"id": p.Get("id")}), nil
}

// echo returns the JSON request body it was sent.
func echo(ctx context.Context, r container.Resolver, p container.Params) (any, error) {
	v, err := r.Make(container.KeyRequest)
	if err != nil {
		return nil, err
	}
	req := v.(*http.Request)

	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return response.JSON(http.StatusBadRequest, nil, map[string]string{"error": "Body must be JSON."}), nil
	}
	h := response.NewHeaders()
	h.Set("Content-Type", "application/json")
	return response.New(http.StatusOK, h, body), nil
}

// banner is a boot service that announces the kernel version.
type banner struct {
	logger *slog.Logger
}

func (b banner) Load(ctx context.Context) error {
	b.logger.InfoContext(ctx, "httpkernel ready", "version", app.Version)
	return nil
}
