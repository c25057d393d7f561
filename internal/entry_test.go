package internal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/recipebox/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.Dir = filepath.Join(dir, "data")
	cfg.Index.Path = filepath.Join(dir, "index.db")
	cfg.Watch.Enabled = false
	return cfg
}

func openStack(t *testing.T, cfg *Config, reg prometheus.Registerer) *Stack {
	t.Helper()
	stack, err := Open(cfg, testutil.Logger(), reg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = stack.Close() })
	return stack
}

func TestRootRouter(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	stack := openStack(t, cfg, reg)
	if _, err := stack.Repo.CreateRecipe(context.Background(), "Soup"); err != nil {
		t.Fatal(err)
	}
	h := newRootRouter(cfg, stack, reg, testutil.Logger())

	get := func(path string) (int, string) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		body, _ := io.ReadAll(w.Body)
		return w.Code, string(body)
	}

	if code, _ := get("/health/live"); code != http.StatusOK {
		t.Errorf("live = %d", code)
	}
	if code, _ := get("/health/ready"); code != http.StatusOK {
		t.Errorf("ready = %d", code)
	}
	if code, body := get("/api/recipes"); code != http.StatusOK || !strings.Contains(body, `"Soup"`) {
		t.Errorf("recipes = %d %s", code, body)
	}
	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "recipebox_store_updates_total") {
		t.Errorf("metrics = %d %s", code, body)
	}
}

func TestRootRouterAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "t0ken"}
	reg := prometheus.NewRegistry()
	h := newRootRouter(cfg, openStack(t, cfg, reg), reg, testutil.Logger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recipes", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("api without token = %d, want 401", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health with auth on = %d, want 200", w.Code)
	}
}

func TestBackgroundIndexFollowsStore(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	stack := openStack(t, cfg, reg)

	ctx, cancel := context.WithCancel(context.Background())
	g, gCtx := errgroup.WithContext(ctx)
	startBackground(gCtx, g, cfg, stack, reg, testutil.Logger())

	if _, err := stack.Repo.CreateRecipe(context.Background(), "Pancakes"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		rows, err := stack.DB.ListRecipes()
		if err == nil && len(rows) == 1 && rows[0].Name == "Pancakes" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("index not updated: %v %v", rows, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := g.Wait(); err != nil {
		t.Errorf("background: %v", err)
	}
}

func TestOpenWithoutIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Enabled = false
	stack := openStack(t, cfg, nil)
	if stack.Index() != nil {
		t.Error("index should be nil when disabled")
	}
	if err := stack.SyncIndex(context.Background()); err != nil {
		t.Error(err)
	}
}
