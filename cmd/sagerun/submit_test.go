package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnScheduleRejectsBadSpec(t *testing.T) {
	err := runOnSchedule(context.Background(), "not-a-cron-spec", func() error {
		t.Fatal("submit should not run for an invalid spec")
		return nil
	})
	require.Error(t, err)
}

func TestRunOnScheduleKeepsFiringThroughFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	done := make(chan error, 1)
	go func() {
		done <- runOnSchedule(ctx, "@every 10ms", func() error {
			if atomic.AddInt32(&calls, 1) >= 3 {
				cancel()
			}
			return errors.New("platform rejected the submission")
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop on cancellation")
	}
	// A failing submission must not take the schedule down with it.
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}
