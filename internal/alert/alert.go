package alert

import (
	"context"
	"crypto-alert-bot/internal/price"
	"crypto-alert-bot/internal/types"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store is the persistence the alert service needs.
type Store interface {
	Insert(ctx context.Context, a types.Alert) (int64, error)
	Get(ctx context.Context, id int64) (*types.Alert, error)
	ListActive(ctx context.Context) ([]types.Alert, error)
	ListByUser(ctx context.Context, userID string) ([]types.Alert, error)
	RecordTrigger(ctx context.Context, alertID int64, at time.Time, price float64, message string) (bool, error)
	Delete(ctx context.Context, alertID int64, userID string) (bool, error)
	ListHistory(ctx context.Context, alertID int64) ([]types.AlertHistoryEntry, error)
}

// Recorder receives lifecycle counters. *metrics.Metrics implements it.
type Recorder interface {
	AlertCreated(alertType types.AlertType)
	AlertDeleted()
	AlertTriggered(alertType types.AlertType)
	FetchFailed(symbol string)
	CycleCompleted(d time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) AlertCreated(types.AlertType)        {}
func (noopRecorder) AlertDeleted()                       {}
func (noopRecorder) AlertTriggered(types.AlertType)      {}
func (noopRecorder) FetchFailed(string)                  {}
func (noopRecorder) CycleCompleted(time.Duration, error) {}

// Service is the alert lifecycle manager shared by the HTTP API, the chat
// bot and the monitor. It is safe for concurrent use.
type Service struct {
	store    Store
	market   price.Source
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides time.Now for creation and trigger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, market price.Source, opts ...Option) *Service {
	s := &Service{
		store:    store,
		market:   market,
		recorder: noopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAlert dispatches on alertType. The boundary layers use it after
// decoding their untyped payloads. VOLUME accepts an empty condition.
func (s *Service) CreateAlert(ctx context.Context, userID, symbol string, alertType types.AlertType, condition types.ConditionType, value float64, message string) (int64, error) {
	switch alertType {
	case types.AlertTypePrice:
		return s.CreatePriceAlert(ctx, userID, symbol, condition, value, message)
	case types.AlertTypePercentage:
		return s.CreatePercentageAlert(ctx, userID, symbol, value, condition, message)
	case types.AlertTypeVolume:
		if condition != "" && condition != types.ConditionSpike {
			return 0, invalid("condition", "VOLUME alerts only support SPIKE")
		}
		return s.CreateVolumeAlert(ctx, userID, symbol, value, message)
	}
	return 0, invalid("alert_type", "must be one of PRICE, PERCENTAGE, VOLUME")
}

func (s *Service) CreatePriceAlert(ctx context.Context, userID, symbol string, condition types.ConditionType, targetPrice float64, message string) (int64, error) {
	a, err := s.newAlert(userID, symbol, types.AlertTypePrice, condition, "target_price", targetPrice)
	if err != nil {
		return 0, err
	}
	a.TargetPrice = targetPrice
	a.ReferencePrice = s.referencePrice(ctx, a.Symbol)
	a.Message = defaultMessage(message, a.Symbol+" price alert")
	return s.insert(ctx, a)
}

func (s *Service) CreatePercentageAlert(ctx context.Context, userID, symbol string, percentageChange float64, condition types.ConditionType, message string) (int64, error) {
	a, err := s.newAlert(userID, symbol, types.AlertTypePercentage, condition, "percentage_change", percentageChange)
	if err != nil {
		return 0, err
	}
	a.PercentageChange = percentageChange
	a.ReferencePrice = s.referencePrice(ctx, a.Symbol)
	a.Message = defaultMessage(message, a.Symbol+" "+strconv.FormatFloat(percentageChange, 'f', -1, 64)+"% change alert")
	return s.insert(ctx, a)
}

func (s *Service) CreateVolumeAlert(ctx context.Context, userID, symbol string, volumeThreshold float64, message string) (int64, error) {
	a, err := s.newAlert(userID, symbol, types.AlertTypeVolume, types.ConditionSpike, "volume_threshold", volumeThreshold)
	if err != nil {
		return 0, err
	}
	a.VolumeThreshold = volumeThreshold
	a.Message = defaultMessage(message, a.Symbol+" volume spike alert")
	return s.insert(ctx, a)
}

// ListForUser returns every alert owned by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]types.Alert, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id", "must not be empty")
	}
	return s.store.ListByUser(ctx, userID)
}

// Delete returns false when the alert does not exist or is owned by someone
// else; callers cannot tell the two apart.
func (s *Service) Delete(ctx context.Context, alertID int64, userID string) (bool, error) {
	deleted, err := s.store.Delete(ctx, alertID, userID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.recorder.AlertDeleted()
		log.WithFields(log.Fields{"alert_id": alertID, "user_id": userID}).Info("Alert deleted")
	}
	return deleted, nil
}

// History returns the trigger records of an alert owned by userID. The bool
// is false under the same conditions as Delete.
func (s *Service) History(ctx context.Context, alertID int64, userID string) ([]types.AlertHistoryEntry, bool, error) {
	a, err := s.store.Get(ctx, alertID)
	if err != nil {
		return nil, false, err
	}
	if a == nil || a.UserID != userID {
		return nil, false, nil
	}
	entries, err := s.store.ListHistory(ctx, alertID)
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (s *Service) newAlert(userID, symbol string, alertType types.AlertType, condition types.ConditionType, field string, value float64) (types.Alert, error) {
	if strings.TrimSpace(userID) == "" {
		return types.Alert{}, invalid("user_id", "must not be empty")
	}
	normalized, ok := price.NormalizeSymbol(symbol)
	if !ok {
		return types.Alert{}, invalid("symbol", "expected a pair such as BTC/USDT")
	}
	if !alertType.Accepts(condition) {
		return types.Alert{}, invalid("condition", string(condition)+" is not valid for "+string(alertType))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return types.Alert{}, invalid(field, "must be a positive finite number")
	}

	return types.Alert{
		UserID:        userID,
		Symbol:        normalized,
		AlertType:     alertType,
		ConditionType: condition,
		IsActive:      true,
		CreatedAt:     s.now(),
	}, nil
}

// referencePrice falls back to 0 so creation never depends on the market.
func (s *Service) referencePrice(ctx context.Context, symbol string) float64 {
	ticker, err := s.market.FetchTicker(ctx, symbol)
	if err != nil {
		s.recorder.FetchFailed(symbol)
		log.WithError(err).WithField("symbol", symbol).Warn("Reference price unavailable, storing 0")
		return 0
	}
	return ticker.LastPrice
}

func (s *Service) insert(ctx context.Context, a types.Alert) (int64, error) {
	id, err := s.store.Insert(ctx, a)
	if err != nil {
		return 0, err
	}
	s.recorder.AlertCreated(a.AlertType)
	log.WithFields(log.Fields{
		"alert_id": id,
		"user_id":  a.UserID,
		"symbol":   a.Symbol,
		"type":     a.AlertType,
	}).Info("✅ Alert created")
	return id, nil
}

func defaultMessage(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}
