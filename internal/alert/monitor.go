package alert

import (
	"bytes"
	"context"
	"crypto-alert-bot/internal/types"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Notifier delivers triggered alerts to their owners.
type Notifier interface {
	Notify(ctx context.Context, events []types.TriggeredAlertEvent)
}

// Monitor runs check cycles on a fixed delay between completions and hands
// the resulting events to the notifier.
type Monitor struct {
	service  *Service
	notifier Notifier
	interval time.Duration
	after    func(time.Duration) <-chan time.Time

	// processing keeps periodic and manual passes from overlapping.
	processing sync.Mutex
}

func NewMonitor(service *Service, notifier Notifier, interval time.Duration) *Monitor {
	return &Monitor{
		service:  service,
		notifier: notifier,
		interval: interval,
		after:    time.After,
	}
}

// Run checks alerts until ctx is cancelled. A failing or panicking pass is
// logged and the next one is scheduled as usual.
func (m *Monitor) Run(ctx context.Context) {
	log.WithField("interval", m.interval).Info("🚀 Alert service started.")
	for {
		if _, err := m.CheckNow(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("❌ Alert check failed")
		}

		select {
		case <-ctx.Done():
			log.Info("Alert service stopped.")
			return
		case <-m.after(m.interval):
		}
	}
}

// CheckNow runs one pass immediately and dispatches its events.
func (m *Monitor) CheckNow(ctx context.Context) (events []types.TriggeredAlertEvent, err error) {
	m.processing.Lock()
	defer m.processing.Unlock()

	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("🔥 Panic recovered in alert checker: %v\nStack trace: %s", r, stackTrace)
			events, err = nil, errors.Errorf("alert check panicked: %v", r)
		}
	}()

	events, err = m.service.RunCheckCycle(ctx)
	if err != nil {
		return nil, err
	}

	// Recorded triggers never fire again, so delivery outlives the caller.
	if len(events) > 0 && m.notifier != nil {
		m.notifier.Notify(context.WithoutCancel(ctx), events)
	}
	return events, nil
}
