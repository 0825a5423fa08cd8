package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/pkg/config"
)

type fakePruner struct {
	calls   int
	maxIdle time.Duration
	err     error
}

func (f *fakePruner) PruneStale(_ context.Context, maxIdle time.Duration) (int, error) {
	f.calls++
	f.maxIdle = maxIdle
	return 1, f.err
}

type fakeSnapshots struct {
	at []time.Time
}

func (f *fakeSnapshots) SaveDailySnapshots(_ context.Context, now time.Time) (int, error) {
	f.at = append(f.at, now)
	return 0, nil
}

var validJobs = config.JobsConfig{PresencePruneSpec: "@every 5m", SnapshotSpec: "0 0 * * *"}

func TestNewScheduler_Schedules(t *testing.T) {
	s, err := NewScheduler(validJobs, &fakePruner{}, &fakeSnapshots{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	_, err = NewScheduler(config.JobsConfig{PresencePruneSpec: "every now and then", SnapshotSpec: "0 0 * * *"}, &fakePruner{}, &fakeSnapshots{}, zap.NewNop().Sugar())
	require.Error(t, err)
	_, err = NewScheduler(config.JobsConfig{PresencePruneSpec: "@every 5m", SnapshotSpec: "61 * * * *"}, &fakePruner{}, &fakeSnapshots{}, zap.NewNop().Sugar())
	require.Error(t, err)
}

func TestJobs(t *testing.T) {
	pruner := &fakePruner{err: errors.New("redis down")}
	snaps := &fakeSnapshots{}
	s, err := NewScheduler(validJobs, pruner, snaps, zap.NewNop().Sugar())
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.prunePresence()
	s.saveSnapshots()

	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, time.Duration(0), pruner.maxIdle, "uses the configured ttl")
	assert.Equal(t, []time.Time{fixed}, snaps.at)
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(validJobs, &fakePruner{}, &fakeSnapshots{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
