package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/R3E-Network/token_ledger/internal/config"
	"github.com/R3E-Network/token_ledger/internal/middleware"
	"github.com/R3E-Network/token_ledger/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AUTH_DEV_MODE", "true")
	t.Setenv("LEDGER_ECONOMY_FILE", "")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_RPS", "1")
	cfg, err := config.LoadFromEnvFile("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestInMemoryApplication(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewApplication(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if a.db != nil {
		t.Fatalf("expected in-memory storage without DATABASE_URL")
	}

	services := strings.Join(a.app.Services(), ",")
	for _, want := range []string{"ledger", "ledger-reward-scheduler", "http-rate-limiter"} {
		if !strings.Contains(services, want) {
			t.Fatalf("service %s not registered: %s", want, services)
		}
	}
	if strings.Contains(services, "ledger-transaction-stream") {
		t.Fatalf("stream registered without REDIS_ADDR")
	}

	if err := a.app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.app.Stop(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(`{"to":"alice","amount":5}`))
	req.Header.Set(middleware.CallerHeader, "admin")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mint status %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(middleware.TraceHeader) == "" {
		t.Fatalf("logging middleware not applied")
	}

	throttled := false
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metadata", nil))
		if rec.Code == http.StatusTooManyRequests {
			throttled = true
			break
		}
	}
	if !throttled {
		t.Fatalf("rate limiter not applied")
	}
}

func TestNewApplicationRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.PublicKeyFile = "/nonexistent/key.pem"
	if _, err := NewApplication(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatalf("expected error for missing public key file")
	}

	cfg = testConfig(t)
	cfg.Ledger.RewardSchedule = "every now and then"
	if _, err := NewApplication(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatalf("expected error for invalid reward schedule")
	}
}
