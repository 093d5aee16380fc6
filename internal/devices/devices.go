// Package devices defines the Device Adapter interface consumed by the
// orchestrator and an HTTP-vendor implementation that talks to a generic
// heat-pump cloud API over REST, matching the teacher's octopus-client
// idiom: a thin struct holding an *http.Client and base URL, with typed
// errors translated at the boundary.
package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkallio/heatopt/internal/herrors"
)

// Snapshot is the telemetry read from one device for one decision cycle.
// Temperatures are validated and dropped by the caller (decision/orchestrator
// layer) per the design's [-30,+50]/[-60,+50] bounds, not here.
type Snapshot struct {
	IndoorZ1    float64
	IndoorZ2    *float64
	Outdoor     float64
	TankTemp    *float64
	SetpointZ1  float64
	SetpointZ2  *float64
	SetpointTank *float64
	IdleZ1      bool

	DailyHeatProducedKWh float64
	DailyHeatConsumedKWh float64
	DailyDhwProducedKWh  float64
	DailyDhwConsumedKWh  float64
}

// EnergyTotals is the device's reported cumulative daily counters, plus an
// optional vendor-computed COP when the device exposes one directly.
type EnergyTotals struct {
	HeatProducedKWh float64
	HeatConsumedKWh float64
	DhwProducedKWh  float64
	DhwConsumedKWh  float64
	COPHeat         *float64
	COPDhw          *float64
}

// DeviceRef identifies one controllable unit at a building.
type DeviceRef struct {
	ID         string
	Name       string
	BuildingID string
}

// Zone selects which setpoint a write targets.
type Zone string

const (
	ZoneOne  Zone = "zone1"
	ZoneTwo  Zone = "zone2"
	ZoneTank Zone = "tank"
)

// Adapter is the interface the orchestrator consumes; an HTTP-vendor
// implementation and a fake (for tests) both satisfy it.
type Adapter interface {
	ListDevices(ctx context.Context) ([]DeviceRef, error)
	Snapshot(ctx context.Context, deviceID, buildingID string) (Snapshot, error)
	SetSetpoint(ctx context.Context, deviceID, buildingID string, zone Zone, celsius float64) error
	EnergyTotalsDaily(ctx context.Context, deviceID, buildingID string) (EnergyTotals, error)
}

// HTTPVendorAdapter talks to a generic heat-pump vendor cloud API over
// REST. It holds a short-TTL snapshot cache so repeated snapshot reads within
// snapshotCacheTTL share one round-trip; SetSetpoint drops the cached entry,
// so the first read after a write goes to the vendor.
type HTTPVendorAdapter struct {
	client  *http.Client
	baseURL string
	token   string

	cache      map[string]cachedSnapshot
}

type cachedSnapshot struct {
	snap      Snapshot
	fetchedAt time.Time
}

const snapshotCacheTTL = 30 * time.Second

// NewHTTPVendorAdapter builds an adapter against baseURL, authenticating
// with a bearer token.
func NewHTTPVendorAdapter(baseURL, token string) *HTTPVendorAdapter {
	return &HTTPVendorAdapter{
		client:  &http.Client{Timeout: 6 * time.Second},
		baseURL: baseURL,
		token:   token,
		cache:   make(map[string]cachedSnapshot),
	}
}

func (a *HTTPVendorAdapter) authed(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")
}

func (a *HTTPVendorAdapter) ListDevices(ctx context.Context) ([]DeviceRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/devices", nil)
	if err != nil {
		return nil, herrors.New(herrors.KindTransientExternal, "device_list_build_request", err)
	}
	a.authed(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, herrors.New(herrors.KindTransientExternal, "device_list_unreachable", err)
	}
	defer resp.Body.Close()

	if err := translateStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var payload struct {
		Devices []DeviceRef `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, herrors.New(herrors.KindTransientExternal, "device_list_decode", err)
	}
	return payload.Devices, nil
}

func (a *HTTPVendorAdapter) Snapshot(ctx context.Context, deviceID, buildingID string) (Snapshot, error) {
	key := deviceID + "/" + buildingID
	if c, ok := a.cache[key]; ok && time.Since(c.fetchedAt) < snapshotCacheTTL {
		return c.snap, nil
	}

	url := fmt.Sprintf("%s/v1/buildings/%s/devices/%s/snapshot", a.baseURL, buildingID, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, herrors.New(herrors.KindTransientExternal, "device_snapshot_build_request", err)
	}
	a.authed(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return Snapshot{}, herrors.New(herrors.KindTransientExternal, "device_snapshot_unreachable", err)
	}
	defer resp.Body.Close()

	if err := translateStatus(resp.StatusCode); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, herrors.New(herrors.KindTransientExternal, "device_snapshot_decode", err)
	}

	a.cache[key] = cachedSnapshot{snap: snap, fetchedAt: time.Now()}
	return snap, nil
}

func (a *HTTPVendorAdapter) SetSetpoint(ctx context.Context, deviceID, buildingID string, zone Zone, celsius float64) error {
	url := fmt.Sprintf("%s/v1/buildings/%s/devices/%s/setpoint", a.baseURL, buildingID, deviceID)
	body, err := json.Marshal(map[string]any{"zone": zone, "celsius": celsius})
	if err != nil {
		return herrors.New(herrors.KindTransientExternal, "device_setpoint_encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return herrors.New(herrors.KindTransientExternal, "device_setpoint_build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.authed(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return herrors.New(herrors.KindTransientExternal, "device_setpoint_unreachable", err)
	}
	defer resp.Body.Close()

	if err := translateStatus(resp.StatusCode); err != nil {
		return err
	}

	delete(a.cache, deviceID+"/"+buildingID)
	return nil
}

func (a *HTTPVendorAdapter) EnergyTotalsDaily(ctx context.Context, deviceID, buildingID string) (EnergyTotals, error) {
	url := fmt.Sprintf("%s/v1/buildings/%s/devices/%s/energy/daily", a.baseURL, buildingID, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EnergyTotals{}, herrors.New(herrors.KindTransientExternal, "device_energy_build_request", err)
	}
	a.authed(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return EnergyTotals{}, herrors.New(herrors.KindTransientExternal, "device_energy_unreachable", err)
	}
	defer resp.Body.Close()

	if err := translateStatus(resp.StatusCode); err != nil {
		return EnergyTotals{}, err
	}

	var totals EnergyTotals
	if err := json.NewDecoder(resp.Body).Decode(&totals); err != nil {
		return EnergyTotals{}, herrors.New(herrors.KindTransientExternal, "device_energy_decode", err)
	}
	return totals, nil
}

func translateStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return herrors.New(herrors.KindConfig, "device_auth_required", nil)
	case code == http.StatusTooManyRequests:
		return herrors.New(herrors.KindTransientExternal, "device_rate_limited", nil)
	case code == http.StatusNotFound:
		return herrors.New(herrors.KindInvalidTelemetry, "device_invalid_device", nil)
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return herrors.New(herrors.KindTransientExternal, "device_offline", nil)
	case code >= 300:
		return herrors.New(herrors.KindTransientExternal, "device_unexpected_status", fmt.Errorf("status %d", code))
	}
	return nil
}
