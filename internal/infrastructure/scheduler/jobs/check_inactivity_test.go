package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-hub/progress-tracker/internal/application/inactivity"
	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

func TestCheckInactivityJob(t *testing.T) {
	now := time.Now().UTC()

	dormant := enrolled("s1", "alice")
	dormant.LastActivityAt = now.Add(-10 * 24 * time.Hour)

	active := enrolled("s2", "bob")
	active.LastActivityAt = now.Add(-time.Hour)

	optedOut := enrolled("s3", "carol")
	optedOut.LastActivityAt = now.Add(-10 * 24 * time.Hour)
	optedOut.EmailRemindersEnabled = false

	repo := &fakeRepo{records: []*student.Record{dormant, active, optedOut}}
	gateway := &fakeGateway{}

	config := inactivity.DefaultConfig()
	engine := inactivity.NewEngine(config, gateway, repo, nil, nil)
	job := NewCheckInactivityJob(engine, repo, config, nil)

	require.NoError(t, job.Run(context.Background()))

	// Only the dormant, opted-in student got email.
	require.Len(t, gateway.reminders, 1)
	assert.Equal(t, "alice", gateway.reminders[0].Handle)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Reminded)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 1, stats.SkippedBy[inactivity.ReasonOptedOut])
}

func TestCheckInactivityJob_GatewayFailureDoesNotAbortRun(t *testing.T) {
	now := time.Now().UTC()

	first := enrolled("s1", "alice")
	first.LastActivityAt = now.Add(-10 * 24 * time.Hour)
	second := enrolled("s2", "bob")
	second.LastActivityAt = now.Add(-12 * 24 * time.Hour)

	repo := &fakeRepo{records: []*student.Record{first, second}}
	gateway := &fakeGateway{err: assert.AnError}

	config := inactivity.DefaultConfig()
	engine := inactivity.NewEngine(config, gateway, repo, nil, nil)
	job := NewCheckInactivityJob(engine, repo, config, nil)

	require.NoError(t, job.Run(context.Background()), "per-student failures never abort the check")

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 0, stats.Reminded)

	// Neither student's reminder state was touched.
	assert.Equal(t, 0, first.ReminderCount)
	assert.Equal(t, 0, second.ReminderCount)
}
