package metrics

import (
	"context"
	"crypto-alert-bot/internal/types"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "crypto_alert"

	labelAlertType = "alert_type"
	labelSymbol    = "symbol"
)

// Store persists counter values across restarts. *database.Store implements it.
type Store interface {
	SaveMetric(ctx context.Context, metricName string, value float64) error
	GetMetric(ctx context.Context, metricName string) (float64, error)
	SaveMetricWithLabels(ctx context.Context, metricName, labelKey, labelValue string, value float64) error
	GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error)
}

type Metrics struct {
	AlertsCreated       *prometheus.CounterVec
	AlertsTriggered     *prometheus.CounterVec
	AlertsDeleted       prometheus.Counter
	FetchFailures       *prometheus.CounterVec
	CheckCycles         prometheus.Counter
	CheckCycleErrors    prometheus.Counter
	CheckCycleDuration  prometheus.Histogram
	CommandsProcessed   prometheus.Counter
	MessagesHandled     prometheus.Counter
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	ChatsCount          prometheus.Gauge

	// ChatsSet tracks the chats the bot has talked to, chat ID to name.
	ChatsSet map[int64]string
	Mutex    sync.Mutex
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsCreated:    counterVec("alerts", "created_total", "The total number of created alerts", labelAlertType),
		AlertsTriggered:  counterVec("alerts", "triggered_total", "The total number of triggered alerts", labelAlertType),
		AlertsDeleted:    counter("alerts", "deleted_total", "The total number of deleted alerts"),
		FetchFailures:    counterVec("market", "fetch_failures_total", "Market data fetches that failed", labelSymbol),
		CheckCycles:      counter("monitor", "check_cycles_total", "The total number of completed check passes"),
		CheckCycleErrors: counter("monitor", "check_cycle_errors_total", "Check passes that could not read the active alerts"),
		CheckCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "check_cycle_duration_seconds",
			Help:      "Duration of a check pass",
			Buckets:   prometheus.DefBuckets,
		}),
		CommandsProcessed:   counter("telegram_bot", "commands_processed", "The total number of processed commands"),
		MessagesHandled:     counter("telegram_bot", "messages_handled", "The total number of handled messages"),
		NotificationsSent:   counter("telegram_bot", "notifications_sent_total", "Alert notifications delivered"),
		NotificationsFailed: counter("telegram_bot", "notifications_failed_total", "Alert notifications that could not be delivered"),
		ChatsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "chats_count",
			Help:      "The current number of unique chats the bot is operating in",
		}),
		ChatsSet: make(map[int64]string),
	}

	reg.MustRegister(
		m.AlertsCreated,
		m.AlertsTriggered,
		m.AlertsDeleted,
		m.FetchFailures,
		m.CheckCycles,
		m.CheckCycleErrors,
		m.CheckCycleDuration,
		m.CommandsProcessed,
		m.MessagesHandled,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.ChatsCount,
	)
	return m
}

func (m *Metrics) AlertCreated(alertType types.AlertType) {
	m.AlertsCreated.WithLabelValues(string(alertType)).Inc()
}

func (m *Metrics) AlertDeleted() {
	m.AlertsDeleted.Inc()
}

func (m *Metrics) AlertTriggered(alertType types.AlertType) {
	m.AlertsTriggered.WithLabelValues(string(alertType)).Inc()
}

func (m *Metrics) FetchFailed(symbol string) {
	m.FetchFailures.WithLabelValues(symbol).Inc()
}

func (m *Metrics) CycleCompleted(d time.Duration, err error) {
	m.CheckCycles.Inc()
	m.CheckCycleDuration.Observe(d.Seconds())
	if err != nil {
		m.CheckCycleErrors.Inc()
	}
}

func (m *Metrics) CommandProcessed() {
	m.CommandsProcessed.Inc()
}

func (m *Metrics) MessageHandled() {
	m.MessagesHandled.Inc()
}

func (m *Metrics) NotificationSent() {
	m.NotificationsSent.Inc()
}

func (m *Metrics) NotificationFailed() {
	m.NotificationsFailed.Inc()
}

// ChatSeen records a chat the first time the bot handles a message from it.
func (m *Metrics) ChatSeen(chatID int64, chatName string) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	if _, exists := m.ChatsSet[chatID]; !exists {
		m.ChatsSet[chatID] = chatName
		m.ChatsCount.Set(float64(len(m.ChatsSet)))
	}
}

// persisted lists the plain counters saved under their metric names.
func (m *Metrics) persisted() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"alerts_deleted":       m.AlertsDeleted,
		"check_cycles":         m.CheckCycles,
		"check_cycle_errors":   m.CheckCycleErrors,
		"commands_processed":   m.CommandsProcessed,
		"messages_handled":     m.MessagesHandled,
		"notifications_sent":   m.NotificationsSent,
		"notifications_failed": m.NotificationsFailed,
	}
}

func (m *Metrics) persistedVecs() map[string]labelledCounter {
	return map[string]labelledCounter{
		"alerts_created":        {m.AlertsCreated, labelAlertType},
		"alerts_triggered":      {m.AlertsTriggered, labelAlertType},
		"market_fetch_failures": {m.FetchFailures, labelSymbol},
	}
}

type labelledCounter struct {
	vec   *prometheus.CounterVec
	label string
}

// LoadFromDB adds the saved values to the fresh counters. Read errors are
// logged and leave the affected counters at zero.
func (m *Metrics) LoadFromDB(ctx context.Context, store Store) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for name, c := range m.persisted() {
		value, err := store.GetMetric(ctx, name)
		if err != nil {
			log.WithError(err).Warnf("Failed to load metric %s", name)
			continue
		}
		c.Add(value)
	}

	for name, lc := range m.persistedVecs() {
		loadLabeledMetrics(ctx, store, name, func(labelKey, labelValue string, value float64) {
			if labelKey == lc.label {
				lc.vec.WithLabelValues(labelValue).Add(value)
			}
		})
	}

	loadLabeledMetrics(ctx, store, "chat_names", func(chatIDStr, chatName string, _ float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Warnf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		m.ChatsSet[chatID] = chatName
	})
	m.ChatsCount.Set(float64(len(m.ChatsSet)))

	log.Info("Metrics loaded from database.")
}

func loadLabeledMetrics(ctx context.Context, store Store, metricName string, callback func(labelKey, labelValue string, value float64)) {
	metricsWithLabels, err := store.GetMetricsWithLabels(ctx, metricName)
	if err != nil {
		log.WithError(err).Warnf("Failed to load metric %s", metricName)
		return
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

// SaveToDB writes the current counter values. It returns the first error but
// still attempts every metric.
func (m *Metrics) SaveToDB(ctx context.Context, store Store) error {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for name, c := range m.persisted() {
		keep(store.SaveMetric(ctx, name, GetMetricValue(c)))
	}

	for name, lc := range m.persistedVecs() {
		for labelValue, value := range collectByLabel(lc.vec, lc.label) {
			keep(store.SaveMetricWithLabels(ctx, name, lc.label, labelValue, value))
		}
	}

	for chatID, chatName := range m.ChatsSet {
		keep(store.SaveMetricWithLabels(ctx, "chat_names", strconv.FormatInt(chatID, 10), chatName, 1))
	}

	if firstErr != nil {
		log.WithError(firstErr).Error("Failed to save some metrics")
		return firstErr
	}
	log.Debug("Metrics saved to database.")
	return nil
}

func collectByLabel(vec *prometheus.CounterVec, label string) map[string]float64 {
	values := make(map[string]float64)

	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		vec.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Warnf("Failed to read labelled metric: %v", err)
			continue
		}
		for _, l := range metricProto.Label {
			if l.GetName() == label {
				values[l.GetValue()] = metricProto.Counter.GetValue()
			}
		}
	}
	return values
}

// GetMetricValue reads the current value of a single counter or gauge.
func GetMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Warnf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
