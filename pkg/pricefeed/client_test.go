package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestUSDPriceCachesQuote(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "arweave", r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		require.Equal(t, "demo-key", r.Header.Get(apiKeyHeader))
		_, _ = w.Write([]byte(`{"arweave":{"usd":8.42}}`))
	}))
	defer server.Close()

	client := NewClient(config.PriceFeedConfig{APIKey: "demo-key", CacheTTL: time.Minute}, WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	price, err := client.USDPrice(context.Background(), "Arweave")
	require.NoError(t, err)
	require.Equal(t, "8.42", price.String())

	price, err = client.USDPrice(context.Background(), "arweave")
	require.NoError(t, err)
	require.Equal(t, "8.42", price.String())
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestUSDPriceUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	client := NewClient(config.PriceFeedConfig{}, WithBaseURL(server.URL))
	_, err := client.USDPrice(context.Background(), "arweave")
	require.Error(t, err)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestUSDPriceMissingQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(config.PriceFeedConfig{}, WithBaseURL(server.URL))
	_, err := client.USDPrice(context.Background(), "arweave")
	require.Error(t, err)
}
