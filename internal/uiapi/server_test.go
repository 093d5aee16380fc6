package uiapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkallio/heatopt/internal/config"
	"github.com/mkallio/heatopt/internal/devices"
	"github.com/mkallio/heatopt/internal/orchestrator"
	"github.com/mkallio/heatopt/internal/priceprovider"
	"github.com/mkallio/heatopt/internal/storage"
	"github.com/mkallio/heatopt/internal/tzclock"
)

type fakeAdapter struct{}

func (fakeAdapter) ListDevices(ctx context.Context) ([]devices.DeviceRef, error) { return nil, nil }
func (fakeAdapter) Snapshot(ctx context.Context, deviceID, buildingID string) (devices.Snapshot, error) {
	return devices.Snapshot{}, nil
}
func (fakeAdapter) SetSetpoint(ctx context.Context, deviceID, buildingID string, zone devices.Zone, celsius float64) error {
	return nil
}
func (fakeAdapter) EnergyTotalsDaily(ctx context.Context, deviceID, buildingID string) (devices.EnergyTotals, error) {
	return devices.EnergyTotals{}, nil
}

type fakePrices struct{}

func (fakePrices) GetPrices(ctx context.Context, now time.Time, currency string) (priceprovider.Quote, error) {
	return priceprovider.Quote{}, nil
}

func testOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	clock, err := tzclock.NewClock("UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store, err := storage.Open(t.TempDir() + "/db.sqlite")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Defaults()
	cfg.DeviceCredentials = "token"

	o, err := orchestrator.New(cfg, clock, store, fakeAdapter{}, fakePrices{}, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func TestHandleStatusReturnsJSON(t *testing.T) {
	o := testOrchestrator(t)
	srv := NewServer(o)

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("expected valid JSON body: %v", err)
	}
}

func TestHandleOutcomeNotFound(t *testing.T) {
	o := testOrchestrator(t)
	srv := NewServer(o)

	req := httptest.NewRequest("GET", "/api/outcome/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleHistoryEmpty(t *testing.T) {
	o := testOrchestrator(t)
	srv := NewServer(o)

	req := httptest.NewRequest("GET", "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var history []any
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("expected valid JSON array body: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected an empty history, got %d entries", len(history))
	}
}
