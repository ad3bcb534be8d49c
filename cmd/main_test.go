package main

import (
	"context"
	"crypto-alert-bot/internal/metrics"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

// flakyStore fails every save and counts the save passes.
type flakyStore struct {
	mu    sync.Mutex
	saves int
}

func (s *flakyStore) SaveMetric(_ context.Context, name string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "check_cycles" {
		s.saves++
	}
	return errors.New("database is locked")
}

func (s *flakyStore) GetMetric(context.Context, string) (float64, error) { return 0, nil }

func (s *flakyStore) SaveMetricWithLabels(context.Context, string, string, string, float64) error {
	return nil
}

func (s *flakyStore) GetMetricsWithLabels(context.Context, string) (map[string]map[string]float64, error) {
	return nil, nil
}

func (s *flakyStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func TestSaveMetricsPeriodicallyRetriesAfterFailure(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := &flakyStore{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		saveMetricsPeriodically(ctx, m, store, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.count() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"saving continues after a failed interval")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic save did not stop after cancel")
	}
}
