package services

import (
	"context"
	"errors"
	"testing"

	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventService_CreateAndList(t *testing.T) {
	svc := NewEventService(newTestDB(t))

	targetID := "T1"
	backupID := 4
	require.NoError(t, svc.CreateEvent("backup.create", "info", "first", &targetID, &backupID))
	require.NoError(t, svc.CreateEvent("system.storage", "warn", "second", nil, nil))

	events, err := svc.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "second", events[0].Message)
	assert.Nil(t, events[0].TargetID)
	assert.Nil(t, events[0].BackupID)

	assert.Equal(t, "backup.create", events[1].Type)
	require.NotNil(t, events[1].TargetID)
	assert.Equal(t, "T1", *events[1].TargetID)
	require.NotNil(t, events[1].BackupID)
	assert.Equal(t, 4, *events[1].BackupID)
	assert.False(t, events[1].CreatedAt.IsZero())

	events, err = svc.GetRecentEvents(1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventService_RecordsMutationsOnly(t *testing.T) {
	svc := NewEventService(newTestDB(t))
	d := NewDispatcher(NewEmptySimulatedEngine(1), svc)
	ctx := context.Background()

	target, err := d.RegisterTarget(ctx, "proj", "/data/proj")
	require.NoError(t, err)
	_, err = d.BackupTarget(ctx, target.ID, "")
	require.NoError(t, err)
	_, err = d.ListTargets(ctx)
	require.NoError(t, err)
	_, err = d.GetTarget(ctx, target.ID)
	require.NoError(t, err)

	events, err := svc.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	types := []string{events[0].Type, events[1].Type}
	assert.ElementsMatch(t, []string{"target.register", "backup.create"}, types)
	for _, ev := range events {
		require.NotNil(t, ev.TargetID)
		assert.Equal(t, target.ID, *ev.TargetID)
	}
}

func TestEventService_RecordsFailures(t *testing.T) {
	svc := NewEventService(newTestDB(t))

	svc.CommandCompleted(context.Background(), commands.DeleteTarget{TargetID: "gone"}, nil, models.TargetNotFound("gone"))
	svc.CommandCompleted(context.Background(), commands.GetTarget{TargetID: "gone"}, nil, errors.New("ignored"))

	events, err := svc.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "command.fail", events[0].Type)
	assert.Equal(t, "error", events[0].Level)
	assert.Contains(t, events[0].Message, "not_found")
	require.NotNil(t, events[0].TargetID)
	assert.Equal(t, "gone", *events[0].TargetID)
}

func TestDescribeOutcome(t *testing.T) {
	target := models.Target{ID: "T1", Name: "proj", Path: "/data/proj"}
	target.Backups = []models.BackupEntry{{ID: 1, TargetID: "T1"}, {ID: 2, TargetID: "T1"}}

	eventType, level, _, targetID, backupID := describeOutcome(commands.BackupTarget{TargetID: "T1"}, target, nil)
	assert.Equal(t, "backup.create", eventType)
	assert.Equal(t, "info", level)
	assert.Equal(t, "T1", *targetID)
	assert.Equal(t, 2, *backupID)

	eventType, level, _, _, backupID = describeOutcome(commands.RestoreTarget{TargetID: "T1", BackupID: 1}, target, nil)
	assert.Equal(t, "backup.restore", eventType)
	assert.Equal(t, "warn", level)
	assert.Equal(t, 1, *backupID)

	eventType, _, _, _, _ = describeOutcome(commands.ListTargets{}, nil, nil)
	assert.Empty(t, eventType)
}
