package alert

import (
	"context"
	"crypto-alert-bot/internal/price"
	"crypto-alert-bot/internal/types"
	"crypto-alert-bot/lib/helpers"
	"fmt"
	"math"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

// Evaluate decides whether the alert's condition holds for the ticker and
// builds the trigger message when it does.
func Evaluate(a types.Alert, t price.Ticker) (bool, string) {
	switch a.AlertType {
	case types.AlertTypePrice:
		switch a.ConditionType {
		case types.ConditionAbove:
			if t.LastPrice >= a.TargetPrice {
				return true, fmt.Sprintf("🚀 %s hit target: $%s (Target: $%s)",
					a.Symbol, helpers.FormatNumber(t.LastPrice, 4), helpers.FormatNumber(a.TargetPrice, 4))
			}
		case types.ConditionBelow:
			if t.LastPrice <= a.TargetPrice {
				return true, fmt.Sprintf("📉 %s dropped to: $%s (Target: $%s)",
					a.Symbol, helpers.FormatNumber(t.LastPrice, 4), helpers.FormatNumber(a.TargetPrice, 4))
			}
		}

	case types.AlertTypePercentage:
		if a.ReferencePrice <= 0 {
			return false, ""
		}
		// Thresholds are compared as prices; pct is only reported.
		pct := (t.LastPrice - a.ReferencePrice) / a.ReferencePrice * 100
		target := strconv.FormatFloat(a.PercentageChange, 'f', -1, 64)
		switch a.ConditionType {
		case types.ConditionGain:
			if atLeast(t.LastPrice, a.ReferencePrice*(1+a.PercentageChange/100)) {
				return true, fmt.Sprintf("📈 %s gained %s%% (Target: +%s%%)",
					a.Symbol, helpers.FormatSigned(pct, 2), target)
			}
		case types.ConditionLoss:
			if atLeast(a.ReferencePrice*(1-a.PercentageChange/100), t.LastPrice) {
				return true, fmt.Sprintf("📉 %s lost %s%% (Target: -%s%%)",
					a.Symbol, helpers.FormatNumber(math.Abs(pct), 2), target)
			}
		}

	case types.AlertTypeVolume:
		if a.ConditionType == types.ConditionSpike && t.QuoteVolume24h >= a.VolumeThreshold {
			return true, fmt.Sprintf("📊 %s volume spike: $%s (Threshold: $%s)",
				a.Symbol, helpers.FormatNumber(t.QuoteVolume24h, 0), helpers.FormatNumber(a.VolumeThreshold, 0))
		}
	}
	return false, ""
}

// priceTolerance absorbs float rounding of the percentage threshold, so a
// price typed exactly on the boundary still triggers.
const priceTolerance = 1e-9

// atLeast reports x >= y within priceTolerance relative to y.
func atLeast(x, y float64) bool {
	return x >= y || y-x <= priceTolerance*math.Abs(y)
}

type fetchResult struct {
	ticker price.Ticker
	err    error
}

// RunCheckCycle evaluates the alerts active when the pass starts and returns
// the events of those that triggered. A failed fetch only skips the alerts of
// that symbol. The error is non-nil only when the active set cannot be read.
func (s *Service) RunCheckCycle(ctx context.Context) (events []types.TriggeredAlertEvent, err error) {
	start := s.now()
	defer func() { s.recorder.CycleCompleted(s.now().Sub(start), err) }()

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	log.WithField("active", len(active)).Debug("🔄 Checking alerts...")

	// One fetch per symbol and pass, failures included.
	tickers := make(map[string]fetchResult)
	events = []types.TriggeredAlertEvent{}

	for _, a := range active {
		if ctx.Err() != nil {
			log.WithField("alerts", len(active)).Warn("Alert check interrupted")
			break
		}

		res, seen := tickers[a.Symbol]
		if !seen {
			res.ticker, res.err = s.market.FetchTicker(ctx, a.Symbol)
			tickers[a.Symbol] = res
			if res.err != nil {
				s.recorder.FetchFailed(a.Symbol)
			}
		}

		entry := log.WithFields(log.Fields{"alert_id": a.ID, "user_id": a.UserID, "symbol": a.Symbol})
		if res.err != nil {
			entry.WithError(res.err).Warn("⚠️ Skipping alert, market data unavailable")
			continue
		}

		triggered, message := Evaluate(a, res.ticker)
		if !triggered {
			continue
		}

		at := s.now()
		recorded, err := s.store.RecordTrigger(ctx, a.ID, at, res.ticker.LastPrice, message)
		if err != nil {
			entry.WithError(err).Error("❌ Failed to record trigger, alert stays active")
			continue
		}
		if !recorded {
			entry.Info("Alert no longer active, trigger dropped")
			continue
		}

		s.recorder.AlertTriggered(a.AlertType)
		event := types.TriggeredAlertEvent{
			EventID:   s.newID(),
			AlertID:   a.ID,
			UserID:    a.UserID,
			Symbol:    a.Symbol,
			Message:   message,
			Price:     res.ticker.LastPrice,
			Timestamp: at,
		}
		events = append(events, event)

		entry.Infof("🔔 Alert triggered: %s", message)
		if log.IsLevelEnabled(log.DebugLevel) {
			log.Debug(spew.Sdump(event))
		}
	}

	log.WithField("triggered", len(events)).Debug("✅ Alert check completed.")
	return events, nil
}
