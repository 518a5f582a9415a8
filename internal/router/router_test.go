package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/G1D0/httpkernel/internal/middleware"
	"github.com/G1D0/httpkernel/internal/response"
)

func passthrough() middleware.Middleware {
	return middleware.MiddlewareFunc(func(r *http.Request, next middleware.Handler) (*response.Response, error) {
		return next.Handle(r)
	})
}

// --- Config Parsing ---

func TestParseConfigValid(t *testing.T) {
	yaml := `
routes:
  - method: GET
    path: /users/{id}
    controller: users.show
    middleware: [tracing]
  - methods: [post, put]
    path: /users
    controller: users.store
groups:
  - prefix: /admin
    middleware: [auth]
    routes:
      - method: DELETE
        path: /users/{id}
        controller: users.destroy
`
	cfg, err := ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cfg.Routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(cfg.Routes))
	}
	if cfg.Routes[0].Path != "/users/{id}" {
		t.Fatalf("expected /users/{id}, got %s", cfg.Routes[0].Path)
	}
	if got := cfg.Routes[1].AllMethods(); len(got) != 2 || got[0] != "POST" || got[1] != "PUT" {
		t.Fatalf("expected [POST PUT], got %v", got)
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0].Routes[0].Controller != "users.destroy" {
		t.Fatal("group should be parsed")
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":       `routes: []`,
		"no path":     "routes:\n  - method: GET\n    path: \"\"\n    controller: c\n",
		"relative":    "routes:\n  - method: GET\n    path: users\n    controller: c\n",
		"no ctrl":     "routes:\n  - method: GET\n    path: /\n",
		"no method":   "routes:\n  - path: /\n    controller: c\n",
		"bad method":  "routes:\n  - method: FETCH\n    path: /\n    controller: c\n",
		"bad prefix":  "groups:\n  - prefix: admin\n    routes:\n      - method: GET\n        path: /\n        controller: c\n",
		"not yaml":    "routes: [",
		"group route": "groups:\n  - prefix: /a\n    routes:\n      - method: GET\n        path: /\n",
	}
	for name, yaml := range tests {
		if _, err := ParseConfig([]byte(yaml)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCompileRejectsUnknownMiddleware(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
routes:
  - method: GET
    path: /
    controller: home
    middleware: [missing]
`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := compile(cfg, middleware.NewRegistry()); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected unknown middleware error, got %v", err)
	}
}

// --- Dispatch ---

func TestDispatchFound(t *testing.T) {
	mw := passthrough()
	table := NewTable()
	table.Get("/users/{id}", "users.show", mw)

	m := table.Dispatch(http.MethodGet, "/users/42")
	found, ok := m.(Found)
	if !ok {
		t.Fatalf("expected Found, got %T", m)
	}
	if found.Outcome() != OutcomeFound {
		t.Fatal("found should report OutcomeFound")
	}
	if found.Controller != "users.show" {
		t.Fatalf("expected users.show, got %v", found.Controller)
	}
	if found.Params["id"] != "42" {
		t.Fatalf("expected id=42, got %v", found.Params)
	}
	if found.Pattern != "/users/{id}" || found.Method != "GET" {
		t.Fatalf("unexpected route %s %s", found.Method, found.Pattern)
	}
	if len(found.Middleware) != 1 {
		t.Fatalf("expected 1 middleware, got %d", len(found.Middleware))
	}
}

func TestDispatchNotFound(t *testing.T) {
	table := NewTable()
	table.Get("/users", "users.index")

	m := table.Dispatch(http.MethodGet, "/orders")
	if _, ok := m.(NotFound); !ok {
		t.Fatalf("expected NotFound, got %T", m)
	}
	if m.Outcome() != OutcomeNotFound {
		t.Fatal("not found should report OutcomeNotFound")
	}
}

func TestDispatchNotFoundOnEmptyTable(t *testing.T) {
	if _, ok := NewTable().Dispatch(http.MethodGet, "/").(NotFound); !ok {
		t.Fatal("empty table should not match")
	}
}

func TestDispatchMethodNotAllowedKeepsDeclarationOrder(t *testing.T) {
	table := NewTable()
	table.Post("/items/{id}", "items.update")
	table.Delete("/items/{id}", "items.destroy")
	table.Get("/other", "other")

	m := table.Dispatch(http.MethodGet, "/items/1")
	mna, ok := m.(MethodNotAllowed)
	if !ok {
		t.Fatalf("expected MethodNotAllowed, got %T", m)
	}
	if len(mna.Allowed) != 2 || mna.Allowed[0] != "POST" || mna.Allowed[1] != "DELETE" {
		t.Fatalf("expected [POST DELETE], got %v", mna.Allowed)
	}
	if m.Outcome() != OutcomeMethodNotAllowed {
		t.Fatal("should report OutcomeMethodNotAllowed")
	}
}

func TestDispatchMethodIsCaseInsensitive(t *testing.T) {
	table := NewTable()
	table.Handle("get", "/", "home")

	if _, ok := table.Dispatch("GET", "/").(Found); !ok {
		t.Fatal("lower-case declaration should match")
	}
	if _, ok := table.Dispatch("get", "/").(Found); !ok {
		t.Fatal("lower-case dispatch should match")
	}
}

func TestDispatchWildcard(t *testing.T) {
	table := NewTable()
	table.Get("/files/*", "files")

	found, ok := table.Dispatch(http.MethodGet, "/files/a/b.txt").(Found)
	if !ok {
		t.Fatal("expected match for wildcard route")
	}
	if found.Params["*"] != "a/b.txt" {
		t.Fatalf("expected wildcard param a/b.txt, got %v", found.Params)
	}
}

func TestPrefixGroupsInheritMiddleware(t *testing.T) {
	var order []string
	named := func(name string) middleware.Middleware {
		return middleware.MiddlewareFunc(func(r *http.Request, next middleware.Handler) (*response.Response, error) {
			order = append(order, name)
			return next.Handle(r)
		})
	}

	table := NewTable()
	table.Prefix("/api", []middleware.Middleware{named("outer")}, func(api Registrar) {
		api.Prefix("/v1", []middleware.Middleware{named("inner")}, func(v1 Registrar) {
			v1.Get("/ping", "ping", named("route"))
		})
		api.Get("/", "api.root")
	})

	found, ok := table.Dispatch(http.MethodGet, "/api/v1/ping").(Found)
	if !ok {
		t.Fatal("nested prefix route should match")
	}
	terminal := middleware.HandlerFunc(func(r *http.Request) (*response.Response, error) {
		return response.Text(http.StatusOK, "pong").Send()
	})
	if _, err := middleware.Chain(found.Middleware, terminal).Handle(&http.Request{}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "outer,inner,route" {
		t.Fatalf("expected outer,inner,route got %v", order)
	}

	if _, ok := table.Dispatch(http.MethodGet, "/api").(Found); !ok {
		t.Fatal("group root route should match the bare prefix")
	}
}

func TestGroupAppliesConfigurator(t *testing.T) {
	table := NewTable()
	var r Router = table.Group(func(reg Registrar) {
		reg.Put("/a", "a")
		reg.Patch("/a", "a.patch")
	})

	if table.Len() != 2 {
		t.Fatalf("expected 2 endpoints, got %d", table.Len())
	}
	if _, ok := r.Dispatch(http.MethodPatch, "/a").(Found); !ok {
		t.Fatal("declared route should match after Group")
	}
}

func TestDispatchReturnsFreshMiddlewareSlice(t *testing.T) {
	table := NewTable()
	table.Get("/", "home", passthrough())

	first := table.Dispatch(http.MethodGet, "/").(Found)
	first.Middleware[0] = nil

	second := table.Dispatch(http.MethodGet, "/").(Found)
	if second.Middleware[0] == nil {
		t.Fatal("dispatch results must not share middleware slices")
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeMethodNotAllowed.String() != "method_not_allowed" || Outcome(9).String() != "unknown" {
		t.Fatal("unexpected outcome names")
	}
}

// --- Hot Reload ---

func writeRoutes(t *testing.T, path, controller string) {
	t.Helper()
	err := os.WriteFile(path, []byte(`
routes:
  - method: GET
    path: /api
    controller: `+controller+`
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
}

func dispatchController(t *testing.T, hr *HotReloader) any {
	t.Helper()
	found, ok := NewTable().Group(hr.Configure).Dispatch(http.MethodGet, "/api").(Found)
	if !ok {
		t.Fatal("expected route match")
	}
	return found.Controller
}

func TestHotReloaderInitialLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "routes.yaml")
	writeRoutes(t, cfgPath, "api.index")

	hr, err := NewHotReloader(cfgPath, 0, nil, nil)
	if err != nil {
		t.Fatalf("failed to create reloader: %v", err)
	}
	defer hr.Close()

	if got := dispatchController(t, hr); got != "api.index" {
		t.Fatalf("expected api.index, got %v", got)
	}
	if len(hr.Config().Routes) != 1 {
		t.Fatal("config should expose the loaded routes")
	}
}

func TestHotReloaderResolvesMiddleware(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "routes.yaml")
	os.WriteFile(cfgPath, []byte(`
groups:
  - prefix: /api
    middleware: [pass]
    routes:
      - method: GET
        path: /
        controller: api.index
        middleware: [pass]
`), 0644)

	reg := middleware.NewRegistry()
	reg.Register("pass", passthrough())

	hr, err := NewHotReloader(cfgPath, 0, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer hr.Close()

	found, ok := NewTable().Group(hr.Configure).Dispatch(http.MethodGet, "/api").(Found)
	if !ok {
		t.Fatal("expected match")
	}
	if len(found.Middleware) != 2 {
		t.Fatalf("expected group + route middleware, got %d", len(found.Middleware))
	}
}

func TestHotReloaderMissingFile(t *testing.T) {
	if _, err := NewHotReloader(filepath.Join(t.TempDir(), "nope.yaml"), 0, nil, nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHotReloaderDetectsChange(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "routes.yaml")
	writeRoutes(t, cfgPath, "old")

	hr, err := NewHotReloader(cfgPath, 50*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer hr.Close()

	var reloads atomic.Int32
	hr.OnReload(func(err error) {
		if err == nil {
			reloads.Add(1)
		}
	})

	if dispatchController(t, hr) != "old" {
		t.Fatal("expected old controller")
	}

	// Wait a bit, then update config (ensure mod time changes)
	time.Sleep(100 * time.Millisecond)
	writeRoutes(t, cfgPath, "new")
	future := time.Now().Add(time.Second)
	os.Chtimes(cfgPath, future, future)

	// Wait for reload
	time.Sleep(200 * time.Millisecond)

	if got := dispatchController(t, hr); got != "new" {
		t.Fatalf("expected new controller after reload, got %v", got)
	}
	if reloads.Load() == 0 {
		t.Fatal("OnReload should report the successful reload")
	}
}

func TestHotReloaderRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"no routes":         `routes: []`,
		"malformed pattern": "routes:\n  - method: GET\n    path: /users/{id\n    controller: broken\n",
		"malformed group":   "groups:\n  - prefix: /v1\n    routes:\n      - method: GET\n        path: /{id\n        controller: broken\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "routes.yaml")
			writeRoutes(t, cfgPath, "good")

			hr, err := NewHotReloader(cfgPath, 50*time.Millisecond, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer hr.Close()

			var failures atomic.Int32
			hr.OnReload(func(err error) {
				if err != nil {
					failures.Add(1)
				}
			})

			time.Sleep(100 * time.Millisecond)

			if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			future := time.Now().Add(time.Second)
			os.Chtimes(cfgPath, future, future)

			// Wait for reload attempt
			time.Sleep(200 * time.Millisecond)

			if failures.Load() == 0 {
				t.Fatal("reload of an invalid file should report an error")
			}
			if got := dispatchController(t, hr); got != "good" {
				t.Fatalf("should keep old routes on invalid reload, got %v", got)
			}
		})
	}
}

func TestNewHotReloaderRejectsMalformedPattern(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "routes.yaml")
	body := "routes:\n  - method: GET\n    path: /users/{id\n    controller: broken\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewHotReloader(cfgPath, 0, nil, nil)
	if err == nil {
		t.Fatal("a pattern the matcher cannot parse should fail at load")
	}
	if !strings.Contains(err.Error(), "invalid route pattern") {
		t.Fatalf("unexpected error: %v", err)
	}
}
