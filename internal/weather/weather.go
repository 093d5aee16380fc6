// Package weather fetches short-horizon hourly forecasts from Open-Meteo,
// grounded on the teacher's OpenMeteoClient/ForecastClient idiom: a thin
// struct holding lat/lon, a typed response, and a closest-slot lookup
// helper. A 5-minute in-adapter cache matches the design's weather TTL.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mkallio/heatopt/internal/herrors"
)

// HourlyPoint is one hour of forecast data.
type HourlyPoint struct {
	Time     time.Time
	TempC    float64
	WindMps  float64
	CloudPct float64
	Symbol   string
}

// Forecast is the provider's current-plus-hourly response.
type Forecast struct {
	Current HourlyPoint
	Hourly  []HourlyPoint // up to 48 entries
}

// Provider is the interface the orchestrator consumes.
type Provider interface {
	Forecast(ctx context.Context, lat, lon float64) (Forecast, time.Time, error)
}

const (
	openMeteoAPIBase = "https://api.open-meteo.com/v1/forecast"
	cacheTTL         = 5 * time.Minute
)

// OpenMeteoAdapter fetches hourly forecasts from Open-Meteo and caches the
// most recent response per coordinate pair for cacheTTL.
type OpenMeteoAdapter struct {
	httpClient *http.Client
	baseURL    string

	mu    sync.Mutex
	cache map[string]cachedForecast
}

type cachedForecast struct {
	forecast  Forecast
	fetchedAt time.Time
}

// NewOpenMeteoAdapter builds an adapter against the public Open-Meteo API.
func NewOpenMeteoAdapter() *OpenMeteoAdapter {
	return newAdapterWithBaseURL(openMeteoAPIBase)
}

func newAdapterWithBaseURL(baseURL string) *OpenMeteoAdapter {
	return &OpenMeteoAdapter{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		cache:      make(map[string]cachedForecast),
	}
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m"`
		WindSpeed10m  []float64 `json:"wind_speed_10m"`
		CloudCover    []float64 `json:"cloud_cover"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"hourly"`
}

// Forecast returns the cached forecast for (lat, lon) if still fresh,
// otherwise fetches a new one. It returns the forecast alongside the
// instant it was fetched, which callers (weatherbias) use to detect
// staleness independently of the adapter's own cache TTL.
func (a *OpenMeteoAdapter) Forecast(ctx context.Context, lat, lon float64) (Forecast, time.Time, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	a.mu.Lock()
	if c, ok := a.cache[key]; ok && time.Since(c.fetchedAt) < cacheTTL {
		a.mu.Unlock()
		return c.forecast, c.fetchedAt, nil
	}
	a.mu.Unlock()

	forecast, err := a.fetch(ctx, lat, lon)
	if err != nil {
		return Forecast{}, time.Time{}, err
	}

	now := time.Now()
	a.mu.Lock()
	a.cache[key] = cachedForecast{forecast: forecast, fetchedAt: now}
	a.mu.Unlock()

	return forecast, now, nil
}

func (a *OpenMeteoAdapter) fetch(ctx context.Context, lat, lon float64) (Forecast, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("hourly", "temperature_2m,wind_speed_10m,cloud_cover,weather_code")
	params.Set("forecast_days", "2")

	fullURL := fmt.Sprintf("%s?%s", a.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Forecast{}, herrors.New(herrors.KindTransientExternal, "weather_build_request", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Forecast{}, herrors.New(herrors.KindTransientExternal, "weather_unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Forecast{}, herrors.New(herrors.KindTransientExternal, "weather_unavailable", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Forecast{}, herrors.New(herrors.KindTransientExternal, "weather_decode", err)
	}

	hourly := make([]HourlyPoint, 0, len(parsed.Hourly.Time))
	for i, ts := range parsed.Hourly.Time {
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		hourly = append(hourly, HourlyPoint{
			Time:     t,
			TempC:    at(parsed.Hourly.Temperature2m, i),
			WindMps:  at(parsed.Hourly.WindSpeed10m, i),
			CloudPct: at(parsed.Hourly.CloudCover, i),
		})
	}

	var current HourlyPoint
	if closest := ClosestTo(hourly, time.Now()); closest != nil {
		current = *closest
	}

	return Forecast{Current: current, Hourly: hourly}, nil
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

// ClosestTo finds the hourly point nearest to t, grounded on the teacher's
// GetWeatherForTime helper.
func ClosestTo(points []HourlyPoint, t time.Time) *HourlyPoint {
	if len(points) == 0 {
		return nil
	}
	closest := 0
	minDiff := absDuration(points[0].Time.Sub(t))
	for i := 1; i < len(points); i++ {
		diff := absDuration(points[i].Time.Sub(t))
		if diff < minDiff {
			minDiff = diff
			closest = i
		}
	}
	return &points[closest]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
