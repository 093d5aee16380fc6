// Package priceprovider fetches electricity prices from either a real-time
// retail tariff or a day-ahead wholesale market with a configurable markup
// and FX conversion, following the teacher's thin-HTTP-client idiom (one
// struct per backend, typed request/response, sorted output).
package priceprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mkallio/heatopt/internal/herrors"
	"github.com/mkallio/heatopt/internal/priceanalyzer"
)

// Default backend base URLs, matching the teacher's octopusAPIBase
// convention of one well-known constant per vendor.
const (
	DefaultRetailBaseURL    = "https://api.octopus.energy/v1"
	DefaultWholesaleBaseURL = "https://api.nordpoolgroup.com/v1"
)

// Quote is the provider's current-price-plus-series response.
type Quote struct {
	Current  priceanalyzer.PricePoint
	Series   []priceanalyzer.PricePoint
	Currency string
}

// Provider is the interface the orchestrator consumes.
type Provider interface {
	GetPrices(ctx context.Context, now time.Time, currency string) (Quote, error)
}

// RetailClient fetches real-time retail tariff prices, grounded on the
// teacher's Octopus Agile client.
type RetailClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	region     string
}

// NewRetailClient builds a retail provider for the given region.
func NewRetailClient(baseURL, token, region string) *RetailClient {
	return &RetailClient{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    baseURL,
		token:      token,
		region:     region,
	}
}

type retailResponse struct {
	Results []retailResultItem `json:"results"`
}

type retailResultItem struct {
	ValueIncVAT float64   `json:"value_inc_vat"`
	ValidFrom   time.Time `json:"valid_from"`
}

// GetPrices fetches the price series covering the next 24h (minimum, per
// the data model invariant) starting at now.
func (c *RetailClient) GetPrices(ctx context.Context, now time.Time, currency string) (Quote, error) {
	start := now.Truncate(time.Hour)
	end := start.Add(48 * time.Hour)

	params := url.Values{}
	params.Set("period_from", start.UTC().Format(time.RFC3339))
	params.Set("period_to", end.UTC().Format(time.RFC3339))
	params.Set("region", c.region)

	fullURL := fmt.Sprintf("%s/v1/retail-rates/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_retail_build_request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_retail_unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Quote{}, herrors.New(herrors.KindConfig, "price_retail_no_token", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_retail_unavailable", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed retailResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_retail_decode", err)
	}

	series := make([]priceanalyzer.PricePoint, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		series = append(series, priceanalyzer.PricePoint{
			Time:       r.ValidFrom,
			PriceMinor: int64(r.ValueIncVAT * 100),
			Currency:   currency,
		})
	}
	sortByTime(series)

	return quoteFromSeries(series, now, currency)
}

// WholesaleClient fetches day-ahead wholesale market prices and applies a
// configurable consumer markup before handing them to the rest of the core
// in the same PricePoint shape the retail backend produces.
type WholesaleClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	area       string
	markup     MarkupConfig
	fx         *FXConverter
}

// MarkupConfig is the consumer-markup applied on top of a raw wholesale
// price, matching settings key `consumer_markup_config`.
type MarkupConfig struct {
	Enabled       bool
	FixedMinor    int64
	PercentageBps int64 // basis points, e.g. 1500 = 15%
}

func (m MarkupConfig) apply(priceMinor int64) int64 {
	if !m.Enabled {
		return priceMinor
	}
	withPct := priceMinor + (priceMinor*m.PercentageBps)/10000
	return withPct + m.FixedMinor
}

// NewWholesaleClient builds a wholesale provider for the given bidding area,
// applying markup and converting through fx when the source currency
// differs from the requested currency.
func NewWholesaleClient(baseURL, token, area string, markup MarkupConfig, fx *FXConverter) *WholesaleClient {
	return &WholesaleClient{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    baseURL,
		token:      token,
		area:       area,
		markup:     markup,
		fx:         fx,
	}
}

type wholesaleResponse struct {
	Currency string               `json:"currency"`
	Entries  []wholesaleResultItem `json:"entries"`
}

type wholesaleResultItem struct {
	PriceMinor int64     `json:"price_minor"`
	Time       time.Time `json:"time"`
}

func (c *WholesaleClient) GetPrices(ctx context.Context, now time.Time, currency string) (Quote, error) {
	params := url.Values{}
	params.Set("area", c.area)
	params.Set("from", now.Truncate(time.Hour).UTC().Format(time.RFC3339))

	fullURL := fmt.Sprintf("%s/v1/wholesale-rates/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_wholesale_build_request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_wholesale_unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_wholesale_unavailable", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed wholesaleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Quote{}, herrors.New(herrors.KindTransientExternal, "price_wholesale_decode", err)
	}

	series := make([]priceanalyzer.PricePoint, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		priceMinor := c.markup.apply(e.PriceMinor)
		if c.fx != nil && parsed.Currency != currency {
			converted, err := c.fx.Convert(ctx, priceMinor, parsed.Currency, currency)
			if err != nil {
				return Quote{}, err
			}
			priceMinor = converted
		}
		series = append(series, priceanalyzer.PricePoint{
			Time:       e.Time,
			PriceMinor: priceMinor,
			Currency:   currency,
		})
	}
	sortByTime(series)

	return quoteFromSeries(series, now, currency)
}

func quoteFromSeries(series []priceanalyzer.PricePoint, now time.Time, currency string) (Quote, error) {
	if len(series) == 0 {
		return Quote{}, herrors.New(herrors.KindStaleData, "price_series_empty", herrors.ErrStalePrices)
	}

	current := series[0]
	best := series[0].Time.Sub(now)
	if best < 0 {
		best = -best
	}
	for _, p := range series {
		d := p.Time.Sub(now)
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
			current = p
		}
	}

	return Quote{Current: current, Series: series, Currency: currency}, nil
}

func sortByTime(series []priceanalyzer.PricePoint) {
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
}
