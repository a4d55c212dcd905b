package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTaskRunnerOutlivesRequestContext(t *testing.T) {
	runner := NewTaskRunner(zap.NewNop(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Bool
	runner.Go(ctx, "alert", func(taskCtx context.Context) error {
		cancel()
		time.Sleep(10 * time.Millisecond)
		if taskCtx.Err() == nil {
			ran.Store(true)
		}
		return nil
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.True(t, ran.Load())
}

func TestTaskRunnerAppliesTimeout(t *testing.T) {
	runner := NewTaskRunner(zap.NewNop(), 20*time.Millisecond)

	var err atomic.Value
	runner.Go(context.Background(), "slow", func(taskCtx context.Context) error {
		<-taskCtx.Done()
		err.Store(taskCtx.Err())
		return taskCtx.Err()
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.ErrorIs(t, err.Load().(error), context.DeadlineExceeded)
}

func TestTaskRunnerLogsFailuresAndPanics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	runner := NewTaskRunner(zap.New(core), 0)

	runner.Go(context.Background(), "boom", func(context.Context) error {
		return errors.New("smtp down")
	})
	runner.Go(context.Background(), "panic", func(context.Context) error {
		panic("unexpected")
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("task failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("task panicked").Len())
}

func TestTaskRunnerWaitHonoursContext(t *testing.T) {
	runner := NewTaskRunner(nil, 0)
	release := make(chan struct{})
	runner.Go(context.Background(), "blocked", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, runner.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, runner.Wait(context.Background()))
}
