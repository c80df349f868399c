package scheduler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/switchyard/internal/events"
	"github.com/mattjoyce/switchyard/internal/scheduler"
	"github.com/mattjoyce/switchyard/internal/scheduler/mocks"
	"github.com/mattjoyce/switchyard/internal/workspace"
)

// TestLogBuffer is a bytes.Buffer that can be used to capture log output.
type TestLogBuffer struct {
	mu sync.Mutex
	bytes.Buffer
}

func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.Write(p)
}

func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.String()
}

// NewTestSlogger creates a new *slog.Logger that writes to a TestLogBuffer.
func NewTestSlogger() (*slog.Logger, *TestLogBuffer) {
	var buf TestLogBuffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

func TestNewJanitorValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	cleaner := mocks.NewMockCleaner(ctrl)
	logger, _ := NewTestSlogger()

	_, err := scheduler.NewJanitor("@every 1h", time.Hour, nil, nil, logger)
	assert.Error(t, err)

	_, err = scheduler.NewJanitor("@every 1h", 0, cleaner, nil, logger)
	assert.Error(t, err)

	_, err = scheduler.NewJanitor("every hour", time.Hour, cleaner, nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")

	j, err := scheduler.NewJanitor("0 3 * * *", time.Hour, cleaner, nil, logger)
	require.NoError(t, err)
	assert.NotNil(t, j)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, scheduler.ValidateSchedule("@every 1h"))
	assert.NoError(t, scheduler.ValidateSchedule("*/5 * * * *"))
	assert.Error(t, scheduler.ValidateSchedule("sometimes"))
}

func TestSweepPublishesReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	cleaner := mocks.NewMockCleaner(ctrl)
	logger, buf := NewTestSlogger()
	hub := events.NewHub(8)

	cleaner.EXPECT().Cleanup(gomock.Any(), 48*time.Hour).Return(workspace.CleanupReport{
		DeletedDirs: 2,
		KeptDirs:    1,
	}, nil)

	j, err := scheduler.NewJanitor("@every 1h", 48*time.Hour, cleaner, hub, logger)
	require.NoError(t, err)
	require.NoError(t, j.Sweep(context.Background()))

	evs := hub.SnapshotSince(0)
	require.Len(t, evs, 1)
	assert.Equal(t, scheduler.EventCleanup, evs[0].Type)
	assert.JSONEq(t, `{"deleted":2,"kept":1}`, string(evs[0].Data))
	assert.Contains(t, buf.String(), "workspace cleanup complete")
}

func TestSweepError(t *testing.T) {
	ctrl := gomock.NewController(t)
	cleaner := mocks.NewMockCleaner(ctrl)
	logger, buf := NewTestSlogger()
	hub := events.NewHub(8)

	cleaner.EXPECT().Cleanup(gomock.Any(), time.Hour).Return(workspace.CleanupReport{}, errors.New("disk gone"))

	j, err := scheduler.NewJanitor("@every 1h", time.Hour, cleaner, hub, logger)
	require.NoError(t, err)
	err = j.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Empty(t, hub.SnapshotSince(0))
	assert.Contains(t, buf.String(), "workspace cleanup failed")
}

func TestRunSweepsOnSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	cleaner := mocks.NewMockCleaner(ctrl)
	logger, _ := NewTestSlogger()

	swept := make(chan struct{}, 4)
	cleaner.EXPECT().Cleanup(gomock.Any(), time.Hour).DoAndReturn(
		func(context.Context, time.Duration) (workspace.CleanupReport, error) {
			select {
			case swept <- struct{}{}:
			default:
			}
			return workspace.CleanupReport{}, nil
		}).MinTimes(1)

	j, err := scheduler.NewJanitor("@every 1s", time.Hour, cleaner, nil, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not sweep")
	}
	cancel()
	require.NoError(t, <-done)
}
