package freecurrency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLatestRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "GBP", r.URL.Query().Get("base_currency"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"usd": 1.27, "EUR": 1.17, "GBP": 1}}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	table, err := client.GetLatestRates(context.Background(), "gbp")
	require.NoError(t, err)

	// Codes uppercased and rate[base] == 1
	assert.Equal(t, 1.0, table["GBP"])
	assert.Equal(t, 1.27, table["USD"])
	assert.Equal(t, 1.17, table["EUR"])
}

func TestGetLatestRatesNoKey(t *testing.T) {
	client := NewClient("")

	table, err := client.GetLatestRates(context.Background(), "GBP")
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestGetLatestRatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "Invalid base currency"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.GetLatestRates(context.Background(), "XXX")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "error type = %T", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestGetLatestRatesMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.GetLatestRates(context.Background(), "GBP")
	assert.Error(t, err)
}
