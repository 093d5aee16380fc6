package priceprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mkallio/heatopt/internal/herrors"
)

const fxCacheTTL = 24 * time.Hour

// DefaultFXBaseURL is the well-known rate-lookup backend used when none is
// configured.
const DefaultFXBaseURL = "https://api.exchangerate.host"

// FXConverter converts a minor-unit price between currencies, caching rates
// for fxCacheTTL so the wholesale backend doesn't round-trip to the FX
// provider on every price fetch.
type FXConverter struct {
	httpClient *http.Client
	baseURL    string

	mu    sync.Mutex
	cache map[string]cachedRate
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// NewFXConverter builds a converter backed by a simple rate-lookup API.
func NewFXConverter(baseURL string) *FXConverter {
	return &FXConverter{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    baseURL,
		cache:      make(map[string]cachedRate),
	}
}

// Convert converts a minor-unit amount from `from` to `to`, using a cached
// rate when still fresh.
func (f *FXConverter) Convert(ctx context.Context, amountMinor int64, from, to string) (int64, error) {
	if from == to {
		return amountMinor, nil
	}

	pair := from + "_" + to
	f.mu.Lock()
	if c, ok := f.cache[pair]; ok && time.Since(c.fetchedAt) < fxCacheTTL {
		f.mu.Unlock()
		return applyRate(amountMinor, c.rate), nil
	}
	f.mu.Unlock()

	rate, err := f.fetchRate(ctx, from, to)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.cache[pair] = cachedRate{rate: rate, fetchedAt: time.Now()}
	f.mu.Unlock()

	return applyRate(amountMinor, rate), nil
}

func applyRate(amountMinor int64, rate float64) int64 {
	return int64(float64(amountMinor) * rate)
}

func (f *FXConverter) fetchRate(ctx context.Context, from, to string) (float64, error) {
	url := fmt.Sprintf("%s/v1/rates?base=%s&quote=%s", f.baseURL, from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, herrors.New(herrors.KindTransientExternal, "fx_build_request", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, herrors.New(herrors.KindTransientExternal, "fx_unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, herrors.New(herrors.KindTransientExternal, "fx_unavailable", fmt.Errorf("status %d", resp.StatusCode))
	}

	var payload struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, herrors.New(herrors.KindTransientExternal, "fx_decode", err)
	}
	return payload.Rate, nil
}
