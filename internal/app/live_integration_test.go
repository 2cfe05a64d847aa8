package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/config"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/session"
)

// TestLiveBackend runs signup, onboarding, dashboard and a vote against a real backend.
func TestLiveBackend(t *testing.T) {
	if os.Getenv("RUN_DASH_INTEGRATION") != "true" {
		t.Skip("set RUN_DASH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	backendURL := mustGetEnv(t, "BACKEND_URL")

	a := New(config.Config{
		BackendURL:     strings.TrimRight(backendURL, "/"),
		CredentialPath: "/live/token",
		CacheTTL:       5 * time.Minute,
		PollInterval:   5 * time.Minute,
		HTTPTimeout:    30 * time.Second,
	}, Options{Fs: afero.NewMemMapFs(), Logger: zap.NewNop()})
	defer a.Close()

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	email := fmt.Sprintf("dashtest_%d@example.com", time.Now().UnixNano())
	route, err := a.Account.SignUp(ctx, "Dash Tester", email, fmt.Sprintf("Pass!%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if route != session.RouteOnboarding {
		t.Fatalf("signup route = %s, want %s", route, session.RouteOnboarding)
	}

	err = a.Account.SavePreferences(ctx, models.Preferences{
		Assets:       []string{"bitcoin", "ethereum"},
		InvestorType: models.InvestorHODLer,
		ContentTypes: models.ContentTypes,
	})
	if err != nil {
		t.Fatalf("save preferences: %v", err)
	}

	view, err := a.Dashboard.Load(ctx, false)
	if err != nil {
		t.Fatalf("load dashboard: %v", err)
	}
	if len(view.Payload.News) == 0 {
		t.Fatal("dashboard has no news")
	}

	news := view.Payload.News[0]
	if err := a.Dashboard.Vote(ctx, models.TargetNews, news.ID, 1); err != nil {
		t.Fatalf("vote: %v", err)
	}

	t.Logf("signed up %s, loaded %d news items and voted on %s", email, len(view.Payload.News), news.ID)
}

func mustGetEnv(t *testing.T, key string) string {
	t.Helper()
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		t.Fatalf("%s is required", key)
	}
	return val
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
