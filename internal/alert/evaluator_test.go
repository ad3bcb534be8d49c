package alert

import (
	"context"
	"crypto-alert-bot/internal/price"
	"crypto-alert-bot/internal/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePriceConditions(t *testing.T) {
	above := types.Alert{Symbol: "BTC/USDT", AlertType: types.AlertTypePrice, ConditionType: types.ConditionAbove, TargetPrice: 50000}
	below := types.Alert{Symbol: "BTC/USDT", AlertType: types.AlertTypePrice, ConditionType: types.ConditionBelow, TargetPrice: 40000}

	ok, _ := Evaluate(above, price.Ticker{LastPrice: 49999})
	assert.False(t, ok)
	ok, msg := Evaluate(above, price.Ticker{LastPrice: 50000})
	assert.True(t, ok)
	assert.Equal(t, "🚀 BTC/USDT hit target: $50,000.0000 (Target: $50,000.0000)", msg)

	ok, _ = Evaluate(below, price.Ticker{LastPrice: 40001})
	assert.False(t, ok)
	ok, msg = Evaluate(below, price.Ticker{LastPrice: 39000.5})
	assert.True(t, ok)
	assert.Equal(t, "📉 BTC/USDT dropped to: $39,000.5000 (Target: $40,000.0000)", msg)
}

func TestEvaluatePercentageBaseline(t *testing.T) {
	gain := types.Alert{Symbol: "ETH/USDT", AlertType: types.AlertTypePercentage, ConditionType: types.ConditionGain, PercentageChange: 5, ReferencePrice: 100}
	loss := types.Alert{Symbol: "ETH/USDT", AlertType: types.AlertTypePercentage, ConditionType: types.ConditionLoss, PercentageChange: 5, ReferencePrice: 100}

	// GAIN fires iff price >= 100 * (1 + 5/100)
	for _, tc := range []struct {
		live float64
		want bool
	}{{104.99, false}, {105, true}, {130, true}, {95, false}} {
		ok, _ := Evaluate(gain, price.Ticker{LastPrice: tc.live})
		assert.Equal(t, tc.want, ok, "gain at %v", tc.live)
	}

	// LOSS fires iff price <= 100 * (1 - 5/100)
	for _, tc := range []struct {
		live float64
		want bool
	}{{95.01, false}, {95, true}, {50, true}, {105, false}} {
		ok, _ := Evaluate(loss, price.Ticker{LastPrice: tc.live})
		assert.Equal(t, tc.want, ok, "loss at %v", tc.live)
	}

	ok, msg := Evaluate(gain, price.Ticker{LastPrice: 110})
	assert.True(t, ok)
	assert.Equal(t, "📈 ETH/USDT gained +10.00% (Target: +5%)", msg)

	ok, msg = Evaluate(loss, price.Ticker{LastPrice: 90})
	assert.True(t, ok)
	assert.Equal(t, "📉 ETH/USDT lost 10.00% (Target: -5%)", msg)
}

func TestEvaluatePercentageExactThresholds(t *testing.T) {
	for i := 1; i < 200; i++ {
		pct := float64(i) / 2
		gain := types.Alert{Symbol: "ETH/USDT", AlertType: types.AlertTypePercentage, ConditionType: types.ConditionGain, PercentageChange: pct, ReferencePrice: 100}
		loss := types.Alert{Symbol: "ETH/USDT", AlertType: types.AlertTypePercentage, ConditionType: types.ConditionLoss, PercentageChange: pct, ReferencePrice: 100}

		for _, live := range []float64{100 * (1 + pct/100), 100 + pct} {
			ok, _ := Evaluate(gain, price.Ticker{LastPrice: live})
			assert.True(t, ok, "gain %v at %v", pct, live)
		}
		for _, live := range []float64{100 * (1 - pct/100), 100 - pct} {
			ok, _ := Evaluate(loss, price.Ticker{LastPrice: live})
			assert.True(t, ok, "loss %v at %v", pct, live)
		}

		ok, _ := Evaluate(gain, price.Ticker{LastPrice: 100 + pct - 0.01})
		assert.False(t, ok, "gain %v just below", pct)
		ok, _ = Evaluate(loss, price.Ticker{LastPrice: 100 - pct + 0.01})
		assert.False(t, ok, "loss %v just above", pct)
	}
}

func TestEvaluatePercentageWithoutReference(t *testing.T) {
	a := types.Alert{AlertType: types.AlertTypePercentage, ConditionType: types.ConditionLoss, PercentageChange: 1, ReferencePrice: 0}
	ok, _ := Evaluate(a, price.Ticker{LastPrice: 0.0001})
	assert.False(t, ok)
}

func TestEvaluateVolumeSpike(t *testing.T) {
	a := types.Alert{Symbol: "BNB/USDT", AlertType: types.AlertTypeVolume, ConditionType: types.ConditionSpike, VolumeThreshold: 1000000}

	ok, _ := Evaluate(a, price.Ticker{LastPrice: 1, QuoteVolume24h: 999999})
	assert.False(t, ok)
	ok, msg := Evaluate(a, price.Ticker{LastPrice: 1, QuoteVolume24h: 1000001})
	assert.True(t, ok)
	assert.Equal(t, "📊 BNB/USDT volume spike: $1,000,001 (Threshold: $1,000,000)", msg)
}

func TestPriceAlertScenario(t *testing.T) {
	svc, store, market := newTestService(t)
	ctx := context.Background()
	market.set("BTC/USDT", 45000, 1)

	id, err := svc.CreatePriceAlert(ctx, "42", "BTC/USDT", types.ConditionAbove, 50000, "")
	require.NoError(t, err)

	market.set("BTC/USDT", 49999, 1)
	events, err := svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	a, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, a.IsActive)

	market.set("BTC/USDT", 50000, 1)
	events, err = svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].AlertID)
	assert.Equal(t, "42", events[0].UserID)
	assert.Equal(t, "BTC/USDT", events[0].Symbol)
	assert.Equal(t, 50000.0, events[0].Price)
	assert.NotEmpty(t, events[0].EventID)

	a, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, a.IsActive)
	assert.NotNil(t, a.TriggeredAt)

	history, err := store.ListHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestVolumeAlertScenario(t *testing.T) {
	svc, _, market := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateVolumeAlert(ctx, "42", "BNB/USDT", 1000000, "")
	require.NoError(t, err)

	market.set("BNB/USDT", 600, 999999)
	events, err := svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	market.set("BNB/USDT", 600, 1000001)
	events, err = svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSingleTriggerAcrossPasses(t *testing.T) {
	rec := &countingRecorder{}
	svc, store, market := newTestService(t, WithRecorder(rec))
	ctx := context.Background()
	market.set("ETH/USDT", 100, 1)

	id, err := svc.CreatePercentageAlert(ctx, "42", "ETH/USDT", 5, types.ConditionGain, "")
	require.NoError(t, err)

	market.set("ETH/USDT", 120, 1)
	total := 0
	for i := 0; i < 5; i++ {
		events, err := svc.RunCheckCycle(ctx)
		require.NoError(t, err)
		total += len(events)
	}

	assert.Equal(t, 1, total)
	assert.Equal(t, 1, rec.triggered)
	assert.Equal(t, 5, rec.cycles)

	history, err := store.ListHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFetchFailureIsIsolated(t *testing.T) {
	rec := &countingRecorder{}
	svc, store, market := newTestService(t, WithRecorder(rec))
	ctx := context.Background()
	for _, s := range []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"} {
		market.set(s, 10, 1)
	}

	btc, err := svc.CreatePriceAlert(ctx, "42", "BTC/USDT", types.ConditionAbove, 20, "")
	require.NoError(t, err)
	eth, err := svc.CreatePriceAlert(ctx, "42", "ETH/USDT", types.ConditionAbove, 20, "")
	require.NoError(t, err)
	sol, err := svc.CreatePriceAlert(ctx, "42", "SOL/USDT", types.ConditionAbove, 20, "")
	require.NoError(t, err)

	market.set("BTC/USDT", 25, 1)
	market.fail("ETH/USDT")
	market.set("SOL/USDT", 30, 1)

	events, err := svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	fired := map[int64]bool{}
	for _, e := range events {
		fired[e.AlertID] = true
	}
	assert.True(t, fired[btc])
	assert.True(t, fired[sol])
	assert.False(t, fired[eth])

	a, err := store.Get(ctx, eth)
	require.NoError(t, err)
	assert.True(t, a.IsActive, "alert with failed fetch stays active")
	assert.GreaterOrEqual(t, rec.failures, 1)
}

func TestSymbolFetchedOncePerPass(t *testing.T) {
	svc, _, market := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateVolumeAlert(ctx, "42", "BTC/USDT", 1e12, "")
		require.NoError(t, err)
	}
	market.set("BTC/USDT", 1, 1)

	_, err := svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, market.calls["BTC/USDT"])
}

func TestDeletedAlertCannotTrigger(t *testing.T) {
	svc, store, market := newTestService(t)
	ctx := context.Background()
	market.set("BTC/USDT", 10, 1)

	keep, err := svc.CreatePriceAlert(ctx, "42", "BTC/USDT", types.ConditionAbove, 20, "")
	require.NoError(t, err)
	drop, err := svc.CreatePriceAlert(ctx, "42", "BTC/USDT", types.ConditionAbove, 20, "")
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, drop, "42")
	require.NoError(t, err)
	require.True(t, ok)

	market.set("BTC/USDT", 25, 1)
	events, err := svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, keep, events[0].AlertID)

	// Deleting the triggered alert succeeds and adds no history.
	ok, err = svc.Delete(ctx, keep, "42")
	require.NoError(t, err)
	assert.True(t, ok)
	history, err := store.ListHistory(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// racingStore deletes the alert between the snapshot and the trigger write.
type racingStore struct {
	Store
	victim int64
	owner  string
}

func (r *racingStore) RecordTrigger(ctx context.Context, alertID int64, at time.Time, p float64, msg string) (bool, error) {
	if alertID == r.victim {
		if _, err := r.Store.Delete(ctx, alertID, r.owner); err != nil {
			return false, err
		}
	}
	return r.Store.RecordTrigger(ctx, alertID, at, p, msg)
}

func TestDeleteRacingTriggerEmitsNoEvent(t *testing.T) {
	svc, store, market := newTestService(t)
	ctx := context.Background()
	market.set("BTC/USDT", 10, 1)

	victim, err := svc.CreatePriceAlert(ctx, "42", "BTC/USDT", types.ConditionAbove, 20, "")
	require.NoError(t, err)

	racing := NewService(&racingStore{Store: store, victim: victim, owner: "42"}, market)
	market.set("BTC/USDT", 25, 1)

	events, err := racing.RunCheckCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	history, err := store.ListHistory(ctx, victim)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunCheckCycleStopsOnCancel(t *testing.T) {
	_, store, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed := NewService(store, price.SourceFunc(func(context.Context, string) (price.Ticker, error) {
		return price.Ticker{}, nil
	}))
	for _, s := range []string{"BTC/USDT", "ETH/USDT"} {
		_, err := seed.CreateVolumeAlert(context.Background(), "42", s, 1, "")
		require.NoError(t, err)
	}

	fetched := 0
	svc := NewService(store, price.SourceFunc(func(_ context.Context, symbol string) (price.Ticker, error) {
		fetched++
		cancel()
		return price.Ticker{Symbol: symbol, LastPrice: 1, QuoteVolume24h: 10}, nil
	}))

	events, err := svc.RunCheckCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, fetched)

	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2, "an interrupted pass leaves alerts active")
}
