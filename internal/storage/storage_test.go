package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heatopt.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type thermalBlob struct {
	HeatingRatePerHour float64 `json:"heatingRatePerHour"`
}

func TestSetAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	err := s.Set(KeyThermalCharacteristics, thermalBlob{HeatingRatePerHour: 1.5})
	require.NoError(t, err)

	var got thermalBlob
	ok, err := s.Get(KeyThermalCharacteristics, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.5, got.HeatingRatePerHour)
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	var got thermalBlob
	ok, err := s.Get(KeyAdaptiveParameters, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOversizedValueRejected(t *testing.T) {
	s := openTestStore(t)
	huge := make([]byte, maxValueBytes+1)
	for i := range huge {
		huge[i] = 'a'
	}
	err := s.Set(KeyPriceCache, string(huge))
	require.Error(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(KeyFXCache, map[string]float64{"EUR": 1.0}))
	require.NoError(t, s.Delete(KeyFXCache))
	require.NoError(t, s.Delete(KeyFXCache))

	var got map[string]float64
	ok, err := s.Get(KeyFXCache, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLegacyCombinedKeyMigratesOnFirstBoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatopt.db")

	pre, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, pre.setRaw(legacyCombinedKey, `{"legacy":true}`))
	require.NoError(t, pre.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	var got map[string]bool
	ok, err := reopened.Get(KeyOptimizationHistory, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got["legacy"])

	_, stillThere, err := reopened.getRaw(legacyCombinedKey)
	require.NoError(t, err)
	require.False(t, stillThere)
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(KeyOptimizationHistory, []string{"a"}))
	require.NoError(t, s.Set(KeyThermalSamples, []string{"b"}))

	var history, samples []string
	_, err := s.Get(KeyOptimizationHistory, &history)
	require.NoError(t, err)
	_, err = s.Get(KeyThermalSamples, &samples)
	require.NoError(t, err)

	require.Equal(t, []string{"a"}, history)
	require.Equal(t, []string{"b"}, samples)
}
