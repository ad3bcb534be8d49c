package price

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMarketUnavailable is returned when a ticker cannot be fetched in time.
var ErrMarketUnavailable = errors.New("market unavailable")

// Ticker is the live market snapshot of a symbol.
type Ticker struct {
	Symbol         string
	LastPrice      float64
	QuoteVolume24h float64
}

// Source supplies live ticker data for a normalized symbol such as "BTC/USDT".
type Source interface {
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbol string) (Ticker, error)

func (f SourceFunc) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	return f(ctx, symbol)
}

func unavailable(symbol string, cause error) error {
	return errors.Wrapf(ErrMarketUnavailable, "%s: %v", symbol, cause)
}

type timeoutSource struct {
	next    Source
	timeout time.Duration
}

// WithTimeout bounds every fetch of src. A fetch that outlives the timeout,
// or whose context is cancelled, fails with ErrMarketUnavailable even if the
// underlying client ignores the context.
func WithTimeout(src Source, timeout time.Duration) Source {
	return &timeoutSource{next: src, timeout: timeout}
}

func (s *timeoutSource) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		ticker Ticker
		err    error
	}
	done := make(chan result, 1)
	go func() {
		t, err := s.next.FetchTicker(ctx, symbol)
		done <- result{t, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && !errors.Is(r.err, ErrMarketUnavailable) {
			return Ticker{}, unavailable(symbol, r.err)
		}
		return r.ticker, r.err
	case <-ctx.Done():
		return Ticker{}, unavailable(symbol, ctx.Err())
	}
}

var (
	symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,15}/[A-Z0-9]{2,10}$`)
	quoteSuffixes = []string{"USDT", "USDC", "BUSD", "FDUSD", "TUSD", "USD", "EUR", "BTC", "ETH", "BNB"}
)

// NormalizeSymbol upper-cases a pair and converts "btc-usdt", "BTC_USDT" and
// "BTCUSDT" to "BTC/USDT". It returns false when no pair can be recognised.
func NormalizeSymbol(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "/", "_", "/").Replace(s)

	if !strings.Contains(s, "/") {
		for _, quote := range quoteSuffixes {
			if strings.HasSuffix(s, quote) && len(s) > len(quote) {
				s = s[:len(s)-len(quote)] + "/" + quote
				break
			}
		}
	}

	if !symbolPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// SplitSymbol returns base and quote of a normalized symbol.
func SplitSymbol(symbol string) (string, string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}
