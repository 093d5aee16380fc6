package devices

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkallio/heatopt/internal/herrors"
)

func TestSnapshotDecodesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(Snapshot{IndoorZ1: 21.0, Outdoor: 5.0, SetpointZ1: 21.0})
	}))
	defer srv.Close()

	a := NewHTTPVendorAdapter(srv.URL, "token")
	ctx := t.Context()

	snap, err := a.Snapshot(ctx, "dev1", "bld1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.IndoorZ1 != 21.0 {
		t.Errorf("expected IndoorZ1 21.0, got %v", snap.IndoorZ1)
	}

	if _, err := a.Snapshot(ctx, "dev1", "bld1"); err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected the second snapshot to be served from cache, got %d upstream hits", hits)
	}
}

func TestUnauthorizedTranslatesToConfigKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewHTTPVendorAdapter(srv.URL, "bad-token")
	_, err := a.Snapshot(t.Context(), "dev1", "bld1")
	if !herrors.Is(err, herrors.KindConfig) {
		t.Errorf("expected KindConfig, got %v", err)
	}
}

func TestRateLimitedTranslatesToTransientExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewHTTPVendorAdapter(srv.URL, "token")
	_, err := a.Snapshot(t.Context(), "dev1", "bld1")
	if !herrors.Is(err, herrors.KindTransientExternal) {
		t.Errorf("expected KindTransientExternal, got %v", err)
	}
}

func TestSetSetpointInvalidatesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(Snapshot{IndoorZ1: float64(calls)})
	}))
	defer srv.Close()

	a := NewHTTPVendorAdapter(srv.URL, "token")
	ctx := t.Context()

	first, _ := a.Snapshot(ctx, "dev1", "bld1")
	if err := a.SetSetpoint(ctx, "dev1", "bld1", ZoneOne, 21.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := a.Snapshot(ctx, "dev1", "bld1")
	if first.IndoorZ1 == second.IndoorZ1 {
		t.Error("expected the cache to be invalidated after a setpoint write")
	}
}
