package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsJobsUntilStopped(t *testing.T) {
	var ok, failing atomic.Int32
	logger, logs := newTestLogger()

	s := NewScheduler(logger,
		ScheduledJob{Name: "reconcile", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			ok.Add(1)
			return nil
		}},
		ScheduledJob{Name: "market_data", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return utils.NewInternalError("refresh market data", errors.New("provider down"))
		}},
		ScheduledJob{Name: "disabled"},
	)
	s.Start()

	assert.Eventually(t, func() bool { return ok.Load() >= 3 && failing.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	stopped := ok.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, ok.Load())
	assert.Contains(t, logs.String(), "Scheduled job failed")
	assert.Contains(t, logs.String(), `"root_cause":"provider down"`)
}
