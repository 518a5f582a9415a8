package router

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/G1D0/httpkernel/internal/middleware"
)

// RouteConfig defines a single route in the YAML route file.
type RouteConfig struct {
	Method     string   `yaml:"method,omitempty"`
	Methods    []string `yaml:"methods,omitempty"`
	Path       string   `yaml:"path"`
	Controller string   `yaml:"controller"`
	Middleware []string `yaml:"middleware,omitempty"`
}

// AllMethods returns Method followed by Methods, upper-cased.
func (rc RouteConfig) AllMethods() []string {
	var out []string
	if rc.Method != "" {
		out = append(out, strings.ToUpper(rc.Method))
	}
	for _, m := range rc.Methods {
		out = append(out, strings.ToUpper(m))
	}
	return out
}

// GroupConfig declares routes under a shared prefix and middleware.
type GroupConfig struct {
	Prefix     string        `yaml:"prefix"`
	Middleware []string      `yaml:"middleware,omitempty"`
	Routes     []RouteConfig `yaml:"routes"`
}

// RoutesConfig is the top-level YAML route file.
type RoutesConfig struct {
	Routes []RouteConfig `yaml:"routes"`
	Groups []GroupConfig `yaml:"groups,omitempty"`
}

// LoadConfig reads and parses a YAML route file.
func LoadConfig(path string) (*RoutesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML bytes into a RoutesConfig.
func ParseConfig(data []byte) (*RoutesConfig, error) {
	var cfg RoutesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "CONNECT": true, "OPTIONS": true, "TRACE": true,
}

// validateConfig checks that the route file is semantically valid.
func validateConfig(cfg *RoutesConfig) error {
	total := len(cfg.Routes)
	for _, g := range cfg.Groups {
		total += len(g.Routes)
	}
	if total == 0 {
		return fmt.Errorf("route file must declare at least one route")
	}

	for i, route := range cfg.Routes {
		if err := validateRoute(route); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
	}
	for i, g := range cfg.Groups {
		if !strings.HasPrefix(g.Prefix, "/") {
			return fmt.Errorf("group %d: prefix must start with /", i)
		}
		for j, route := range g.Routes {
			if err := validateRoute(route); err != nil {
				return fmt.Errorf("group %d (%s) route %d: %w", i, g.Prefix, j, err)
			}
		}
	}

	return nil
}

func validateRoute(route RouteConfig) error {
	if route.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !strings.HasPrefix(route.Path, "/") {
		return fmt.Errorf("(%s): path must start with /", route.Path)
	}
	if route.Controller == "" {
		return fmt.Errorf("(%s): controller cannot be empty", route.Path)
	}
	methods := route.AllMethods()
	if len(methods) == 0 {
		return fmt.Errorf("(%s): must have at least one method", route.Path)
	}
	for _, m := range methods {
		if !knownMethods[m] {
			return fmt.Errorf("(%s): unsupported method %q", route.Path, m)
		}
	}
	return nil
}

// compiled is a route file with middleware names resolved.
type compiled struct {
	cfg    *RoutesConfig
	routes []compiledRoute
	groups []compiledGroup
}

type compiledRoute struct {
	methods    []string
	path       string
	controller string
	mws        []middleware.Middleware
}

type compiledGroup struct {
	prefix string
	mws    []middleware.Middleware
	routes []compiledRoute
}

// compile resolves every middleware name against reg.
func compile(cfg *RoutesConfig, reg *middleware.Registry) (*compiled, error) {
	c := &compiled{cfg: cfg}
	for _, rc := range cfg.Routes {
		r, err := compileRoute(rc, reg)
		if err != nil {
			return nil, err
		}
		c.routes = append(c.routes, r)
	}
	for _, gc := range cfg.Groups {
		mws, err := reg.Resolve(gc.Middleware)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", gc.Prefix, err)
		}
		g := compiledGroup{prefix: gc.Prefix, mws: mws}
		for _, rc := range gc.Routes {
			r, err := compileRoute(rc, reg)
			if err != nil {
				return nil, err
			}
			g.routes = append(g.routes, r)
		}
		c.groups = append(c.groups, g)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// check declares the routes on a scratch table. chi panics on patterns it
// cannot parse; that panic is reported as an error here instead of firing
// on every request later.
func (c *compiled) check() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("invalid route pattern: %v", p)
		}
	}()
	c.declare(NewTable())
	return nil
}

func compileRoute(rc RouteConfig, reg *middleware.Registry) (compiledRoute, error) {
	mws, err := reg.Resolve(rc.Middleware)
	if err != nil {
		return compiledRoute{}, fmt.Errorf("route %s: %w", rc.Path, err)
	}
	return compiledRoute{
		methods:    rc.AllMethods(),
		path:       rc.Path,
		controller: rc.Controller,
		mws:        mws,
	}, nil
}

// declare replays the compiled routes onto reg.
func (c *compiled) declare(reg Registrar) {
	for _, r := range c.routes {
		r.declare(reg)
	}
	for _, g := range c.groups {
		routes := g.routes
		reg.Prefix(g.prefix, g.mws, func(sub Registrar) {
			for _, r := range routes {
				r.declare(sub)
			}
		})
	}
}

func (r compiledRoute) declare(reg Registrar) {
	for _, m := range r.methods {
		reg.Handle(m, r.path, r.controller, r.mws...)
	}
}
