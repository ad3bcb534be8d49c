package price

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultBinanceURL = "https://api.binance.com"

type binanceTicker struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	QuoteVolume string `json:"quoteVolume"`
}

type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// BinanceSource reads 24h tickers from the Binance spot REST API.
type BinanceSource struct {
	client *resty.Client
}

func NewBinanceSource(baseURL string, timeout time.Duration) *BinanceSource {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &BinanceSource{client: client}
}

func (s *BinanceSource) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	var body binanceTicker
	var apiErr binanceError

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", strings.ReplaceAll(symbol, "/", "")).
		SetResult(&body).
		SetError(&apiErr).
		Get("/api/v3/ticker/24hr")
	if err != nil {
		return Ticker{}, unavailable(symbol, err)
	}
	if resp.IsError() {
		log.WithFields(log.Fields{
			"symbol": symbol,
			"status": resp.StatusCode(),
			"code":   apiErr.Code,
		}).Debug("Binance rejected ticker request")
		return Ticker{}, unavailable(symbol, errors.Errorf("binance status %d: %s", resp.StatusCode(), apiErr.Msg))
	}

	last, err := strconv.ParseFloat(body.LastPrice, 64)
	if err != nil {
		return Ticker{}, unavailable(symbol, errors.Wrap(err, "lastPrice"))
	}
	volume, err := strconv.ParseFloat(body.QuoteVolume, 64)
	if err != nil {
		return Ticker{}, unavailable(symbol, errors.Wrap(err, "quoteVolume"))
	}

	return Ticker{Symbol: symbol, LastPrice: last, QuoteVolume24h: volume}, nil
}
