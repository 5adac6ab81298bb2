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

// brokenEngine returns untyped errors from every method.
type brokenEngine struct {
	SimulatedEngine
}

func (*brokenEngine) ListTargets(ctx context.Context) ([]models.Target, error) {
	return nil, errors.New("boom")
}

func (*brokenEngine) GetTarget(ctx context.Context, targetID string) (*models.Target, error) {
	panic("GetTarget must not reach the engine for an empty id")
}

type recordingObserver struct {
	cmds []commands.Command
	errs []error
}

func (r *recordingObserver) CommandCompleted(ctx context.Context, cmd commands.Command, result any, err error) {
	r.cmds = append(r.cmds, cmd)
	r.errs = append(r.errs, err)
}

func TestDispatcher_RoutesEveryCommand(t *testing.T) {
	d := NewDispatcher(NewEmptySimulatedEngine(1))
	ctx := context.Background()

	res, err := d.Dispatch(ctx, commands.RegisterTarget{Name: "proj", Path: "/data/proj"})
	require.NoError(t, err)
	target := res.(models.Target)

	res, err = d.Dispatch(ctx, commands.BackupTarget{TargetID: target.ID, Note: "first"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.(models.Target).BackupIDs())

	res, err = d.Dispatch(ctx, commands.ListTargets{})
	require.NoError(t, err)
	assert.Len(t, res.([]models.Target), 1)

	res, err = d.Dispatch(ctx, commands.GetTarget{TargetID: target.ID})
	require.NoError(t, err)
	assert.Equal(t, target.ID, res.(*models.Target).ID)

	res, err = d.Dispatch(ctx, commands.RestoreTarget{TargetID: target.ID, BackupID: 1})
	require.NoError(t, err)
	assert.Equal(t, target.ID, res.(models.Target).ID)

	res, err = d.Dispatch(ctx, commands.DeleteBackup{TargetID: target.ID, BackupID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(models.BackupEntry).ID)

	res, err = d.Dispatch(ctx, commands.DeleteTarget{TargetID: target.ID})
	require.NoError(t, err)
	assert.Equal(t, target.ID, res.(models.Target).ID)
}

func TestDispatcher_GetTargetAbsence(t *testing.T) {
	d := NewDispatcher(&brokenEngine{})

	got, err := d.GetTarget(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)

	d = NewDispatcher(NewEmptySimulatedEngine(1))
	got, err = d.GetTarget(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDispatcher_WrapsUntypedErrors(t *testing.T) {
	d := NewDispatcher(&brokenEngine{})
	_, err := d.ListTargets(context.Background())
	require.ErrorIs(t, err, models.ErrInternal)
}

func TestDispatcher_PassesTypedErrorsThrough(t *testing.T) {
	d := NewDispatcher(NewEmptySimulatedEngine(1))
	ctx := context.Background()

	_, err := d.RegisterTarget(ctx, "", "/data")
	assert.Equal(t, models.KindInvalidInput, models.KindOf(err))

	_, err = d.BackupTarget(ctx, "missing", "")
	assert.Equal(t, models.KindNotFound, models.KindOf(err))

	_, err = d.DeleteBackup(ctx, "missing", 1)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestDispatcher_NotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(NewEmptySimulatedEngine(1), obs)
	ctx := context.Background()

	target, err := d.RegisterTarget(ctx, "proj", "/data/proj")
	require.NoError(t, err)
	_, err = d.DeleteTarget(ctx, "missing")
	require.Error(t, err)
	_, err = d.ListTargets(ctx)
	require.NoError(t, err)

	require.Len(t, obs.cmds, 3)
	assert.Equal(t, commands.RegisterTarget{Name: "proj", Path: "/data/proj"}, obs.cmds[0])
	assert.NoError(t, obs.errs[0])
	assert.ErrorIs(t, obs.errs[1], models.ErrNotFound)
	assert.NotEmpty(t, target.ID)
}

func TestDispatcher_TypedHelpers(t *testing.T) {
	d := NewDispatcher(NewEmptySimulatedEngine(1))
	ctx := context.Background()

	target, err := d.RegisterTarget(ctx, "proj", "/data/proj")
	require.NoError(t, err)
	target, err = d.BackupTarget(ctx, target.ID, "")
	require.NoError(t, err)
	_, err = d.RestoreTarget(ctx, target.ID, 1)
	require.NoError(t, err)
	entry, err := d.DeleteBackup(ctx, target.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, target.ID, entry.TargetID)

	removed, err := d.DeleteTarget(ctx, target.ID)
	require.NoError(t, err)
	assert.Empty(t, removed.Backups)

	targets, err := d.ListTargets(ctx)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestDispatcher_NilCommand(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(NewEmptySimulatedEngine(1), obs)

	_, err := d.Dispatch(context.Background(), nil)
	assert.Equal(t, models.KindInvalidInput, models.KindOf(err))
	assert.Empty(t, obs.cmds)
}
