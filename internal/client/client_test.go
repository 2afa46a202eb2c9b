package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mcp-health-profile/internal/healthstore"
	"mcp-health-profile/internal/profile"
	"mcp-health-profile/internal/server"
	"mcp-health-profile/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	backend, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	clock := func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	store := healthstore.New(backend, healthstore.WithClock(clock))
	controller := profile.NewController(store, profile.WithClock(clock), profile.WithLocation(time.UTC))

	srv, err := server.NewHealthProfileServer(&server.Config{APIKey: apiKey}, store, controller, nil)
	if err != nil {
		t.Fatalf("NewHealthProfileServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientProfileAndSave(t *testing.T) {
	ts := startServer(t, "key")
	c := New(ts.URL+"/", "key")
	ctx := context.Background()

	labels, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if labels.Weight != profile.Placeholder {
		t.Errorf("Weight = %q, want %q", labels.Weight, profile.Placeholder)
	}

	value := 72.5
	result, err := c.Save(ctx, "weight", &value, "kg")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !result.Saved || result.Quantity != "72.5 kg" || result.Labels.Weight != "72.5 kg" {
		t.Errorf("Save() = %+v", result)
	}

	result, err = c.Save(ctx, "water", nil, "")
	if err != nil {
		t.Fatalf("Save() default error = %v", err)
	}
	if result.Labels.Water != "Water: 200.00" {
		t.Errorf("Water = %q, want Water: 200.00", result.Labels.Water)
	}
}

func TestClientErrors(t *testing.T) {
	ts := startServer(t, "key")
	ctx := context.Background()

	if _, err := New(ts.URL, "wrong").Profile(ctx); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Profile() with wrong key error = %v, want status 401", err)
	}

	if _, err := New(ts.URL, "key").CallTool(ctx, "no_such_tool", nil); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("CallTool() unknown tool error = %v, want status 404", err)
	}
}
