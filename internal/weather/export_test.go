package weather

// newTestAdapter exposes the internal base-URL constructor to tests so they
// can point the adapter at an httptest server instead of the real API.
func newTestAdapter(baseURL string) *OpenMeteoAdapter {
	return newAdapterWithBaseURL(baseURL)
}
