package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"BTC/USDT":   "BTC/USDT",
		" btc/usdt ": "BTC/USDT",
		"eth-usdt":   "ETH/USDT",
		"BNB_BTC":    "BNB/BTC",
		"BTCUSDT":    "BTC/USDT",
		"solusdc":    "SOL/USDC",
		"ETHBTC":     "ETH/BTC",
	}
	for in, want := range cases {
		got, ok := NormalizeSymbol(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "BTC", "BTC/", "/USDT", "BTC/USDT/X", "B$C/USDT"} {
		_, ok := NormalizeSymbol(bad)
		assert.False(t, ok, bad)
	}
}

func TestSplitSymbol(t *testing.T) {
	base, quote := SplitSymbol("ETH/USDT")
	assert.Equal(t, "ETH", base)
	assert.Equal(t, "USDT", quote)
}

func TestPaprikaQuote(t *testing.T) {
	assert.Equal(t, "USD", PaprikaQuote("USDT"))
	assert.Equal(t, "USD", PaprikaQuote("USDC"))
	assert.Equal(t, "BTC", PaprikaQuote("BTC"))
}

func TestBinanceFetchTicker(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		gotSymbol = r.URL.Query().Get("symbol")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"50000.10000000","quoteVolume":"1234567.89"}`))
	}))
	defer srv.Close()

	src := NewBinanceSource(srv.URL, 2*time.Second)
	ticker, err := src.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", gotSymbol)
	assert.Equal(t, "BTC/USDT", ticker.Symbol)
	assert.InDelta(t, 50000.1, ticker.LastPrice, 1e-9)
	assert.InDelta(t, 1234567.89, ticker.QuoteVolume24h, 1e-6)
}

func TestBinanceFetchTickerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := NewBinanceSource(srv.URL, 2*time.Second).FetchTicker(context.Background(), "NOPE/USDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarketUnavailable))
}

func TestBinanceFetchTickerMalformedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"n/a","quoteVolume":"1"}`))
	}))
	defer srv.Close()

	_, err := NewBinanceSource(srv.URL, 2*time.Second).FetchTicker(context.Background(), "BTC/USDT")
	assert.True(t, errors.Is(err, ErrMarketUnavailable))
}

func TestWithTimeoutAbandonsSlowFetch(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := SourceFunc(func(ctx context.Context, symbol string) (Ticker, error) {
		<-release
		return Ticker{Symbol: symbol, LastPrice: 1}, nil
	})

	start := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).FetchTicker(context.Background(), "BTC/USDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarketUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutWrapsPlainErrors(t *testing.T) {
	failing := SourceFunc(func(ctx context.Context, symbol string) (Ticker, error) {
		return Ticker{}, errors.New("connection refused")
	})

	_, err := WithTimeout(failing, time.Second).FetchTicker(context.Background(), "ETH/USDT")
	assert.True(t, errors.Is(err, ErrMarketUnavailable))
}

func TestWithTimeoutPassesResult(t *testing.T) {
	ok := SourceFunc(func(ctx context.Context, symbol string) (Ticker, error) {
		return Ticker{Symbol: symbol, LastPrice: 42, QuoteVolume24h: 7}, nil
	})

	ticker, err := WithTimeout(ok, time.Second).FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 42.0, ticker.LastPrice)
}
