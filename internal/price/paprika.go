package price

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var stableQuotes = map[string]bool{
	"USD": true, "USDT": true, "USDC": true, "BUSD": true, "FDUSD": true, "TUSD": true, "DAI": true,
}

// PaprikaQuote maps the quote asset of a pair onto a CoinPaprika quote currency.
// Dollar stablecoins are priced in USD.
func PaprikaQuote(quote string) string {
	if stableQuotes[quote] {
		return "USD"
	}
	return quote
}

// PaprikaSource prices pairs through the CoinPaprika ticker API.
type PaprikaSource struct {
	client *coinpaprika.Client

	idMutex   sync.RWMutex
	idMapping map[string]string // base symbol -> coin id
}

func NewPaprikaSource(apiProKey string, httpClient *http.Client) *PaprikaSource {
	var client *coinpaprika.Client
	if apiProKey != "" {
		client = coinpaprika.NewClient(httpClient, coinpaprika.WithAPIKey(apiProKey))
	} else {
		client = coinpaprika.NewClient(httpClient)
	}
	return &PaprikaSource{client: client, idMapping: make(map[string]string)}
}

func (s *PaprikaSource) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	if err := ctx.Err(); err != nil {
		return Ticker{}, unavailable(symbol, err)
	}

	base, quote := SplitSymbol(symbol)
	coinID, err := s.coinID(base)
	if err != nil {
		return Ticker{}, unavailable(symbol, err)
	}

	quoteCurrency := PaprikaQuote(quote)
	ticker, err := s.client.Tickers.GetByID(coinID, &coinpaprika.TickersOptions{Quotes: quoteCurrency})
	if err != nil {
		return Ticker{}, unavailable(symbol, errors.Wrap(err, "coinpaprika ticker"))
	}

	q, ok := ticker.Quotes[quoteCurrency]
	if !ok || q.Price == nil || q.Volume24h == nil {
		return Ticker{}, unavailable(symbol, errors.Errorf("no %s quote for %s", quoteCurrency, coinID))
	}

	return Ticker{Symbol: symbol, LastPrice: *q.Price, QuoteVolume24h: *q.Volume24h}, nil
}

func (s *PaprikaSource) coinID(base string) (string, error) {
	s.idMutex.RLock()
	id, exists := s.idMapping[base]
	s.idMutex.RUnlock()
	if exists {
		return id, nil
	}

	coin, err := s.searchCoin(base)
	if err != nil {
		return "", err
	}

	s.idMutex.Lock()
	s.idMapping[base] = *coin.ID
	s.idMutex.Unlock()

	log.Debugf("Best match for symbol '%s' is: %s", base, *coin.ID)
	return *coin.ID, nil
}

func (s *PaprikaSource) searchCoin(base string) (*coinpaprika.Coin, error) {
	searchOpts := &coinpaprika.SearchOptions{
		Query:      strings.ToLower(base),
		Categories: "currencies",
		Modifier:   "symbol_search",
	}
	result, err := s.client.Search.Search(searchOpts)
	if err != nil {
		return nil, errors.Wrap(err, "coinpaprika search")
	}

	for _, c := range result.Currencies {
		if c.ID != nil && c.Symbol != nil && strings.EqualFold(*c.Symbol, base) {
			return c, nil
		}
	}
	return nil, errors.Errorf("unknown coin symbol: %s", base)
}
