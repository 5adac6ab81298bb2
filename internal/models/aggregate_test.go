package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTarget(t *testing.T, backups int) Target {
	t.Helper()
	target := Target{ID: "T1", Name: "proj", Path: "/data/proj"}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < backups; i++ {
		entry := target.NewBackupEntry(NewTimestamp(base.Add(time.Duration(i)*time.Hour)), "")
		require.NoError(t, target.AppendBackup(entry))
	}
	return target
}

func TestValidateRegistration(t *testing.T) {
	require.NoError(t, ValidateRegistration("proj", "/data/proj"))

	err := ValidateRegistration("", "/data/proj")
	require.ErrorIs(t, err, ErrInvalidInput)
	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "name", typed.Field)

	assert.ErrorIs(t, ValidateRegistration("proj", ""), ErrInvalidInput)
	assert.NoError(t, ValidateRegistration("  ", " "), "only the empty string is rejected")
}

func TestAppendBackup_IDsAreSequential(t *testing.T) {
	target := newTestTarget(t, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, target.BackupIDs())
	assert.Equal(t, 5, target.LastBackupID)
}

func TestAppendBackup_RejectsWrongID(t *testing.T) {
	target := newTestTarget(t, 2)

	err := target.AppendBackup(BackupEntry{ID: 2, TargetID: target.ID, CreatedAt: Now()})
	require.ErrorIs(t, err, ErrInternal)

	err = target.AppendBackup(BackupEntry{ID: 4, TargetID: target.ID, CreatedAt: Now()})
	require.ErrorIs(t, err, ErrInternal)

	assert.Equal(t, []int{1, 2}, target.BackupIDs(), "a rejected append must not mutate the ledger")
}

func TestAppendBackup_RejectsForeignEntry(t *testing.T) {
	target := newTestTarget(t, 0)
	err := target.AppendBackup(BackupEntry{ID: 1, TargetID: "other", CreatedAt: Now()})
	require.ErrorIs(t, err, ErrInternal)
	assert.Empty(t, target.Backups)
}

func TestRemoveBackup(t *testing.T) {
	target := newTestTarget(t, 3)

	removed, err := target.RemoveBackup(2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed.ID)
	assert.Equal(t, []int{1, 3}, target.BackupIDs())
}

func TestRemoveBackup_UnknownIDLeavesLedger(t *testing.T) {
	target := newTestTarget(t, 3)

	_, err := target.RemoveBackup(42)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []int{1, 2, 3}, target.BackupIDs())
}

func TestIDsAreNotReusedAfterDeletingTheNewest(t *testing.T) {
	target := newTestTarget(t, 3)
	_, err := target.RemoveBackup(3)
	require.NoError(t, err)

	assert.Equal(t, 4, target.NextBackupID())
	require.NoError(t, target.AppendBackup(target.NewBackupEntry(Now(), "")))
	assert.Equal(t, []int{1, 2, 4}, target.BackupIDs())
}

func TestRemoveTarget_Cascades(t *testing.T) {
	a := newTestTarget(t, 2)
	b := Target{ID: "T2", Name: "other", Path: "/data/other"}
	targets := []Target{a, b}

	rest, removed, err := RemoveTarget(targets, "T1")
	require.NoError(t, err)
	assert.Equal(t, "T1", removed.ID)
	assert.Len(t, removed.Backups, 2)
	require.Len(t, rest, 1)
	assert.Equal(t, "T2", rest[0].ID)

	_, ok := FindTarget(rest, "T1")
	assert.False(t, ok)

	_, _, err = RemoveTarget(rest, "T1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClone_DoesNotAlias(t *testing.T) {
	target := newTestTarget(t, 2)
	clone := target.Clone()
	clone.Backups[0].Note = "changed"
	clone.Backups = append(clone.Backups, BackupEntry{ID: 99})

	assert.Equal(t, "", target.Backups[0].Note)
	assert.Len(t, target.Backups, 2)
}

func TestTargetJSON(t *testing.T) {
	target := newTestTarget(t, 1)
	target.Backups[0].Note = "first"

	data, err := json.Marshal(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "T1",
		"name": "proj",
		"path": "/data/proj",
		"backups": [{
			"id": 1,
			"target_id": "T1",
			"created_at": "2025-01-01T00:00:00.000Z",
			"note": "first",
			"size": 0,
			"archive_path": "targets/T1/backups/0001_20250101T000000Z.tar.gz"
		}]
	}`, string(data))

	empty, err := json.Marshal(Target{ID: "x", Name: "n", Path: "p"})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"backups":[]`)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(TargetNotFound("x")))
	assert.Equal(t, KindNotFound, KindOf(BackupNotFound("x", 1)))
	assert.Equal(t, KindInvalidInput, KindOf(InvalidInput("name")))
	assert.Equal(t, KindArchiveUnavailable, KindOf(ArchiveUnavailable("x", 1, errors.New("gone"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsTyped(errors.New("boom")))
	assert.True(t, IsTyped(Internal("x", errors.New("boom"))))
}
