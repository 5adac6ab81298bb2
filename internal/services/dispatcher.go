package services

import (
	"context"
	"fmt"

	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/rs/zerolog/log"
)

// CommandObserver is notified after every dispatched command.
type CommandObserver interface {
	CommandCompleted(ctx context.Context, cmd commands.Command, result any, err error)
}

// CommandObserverFunc adapts a function to CommandObserver.
type CommandObserverFunc func(ctx context.Context, cmd commands.Command, result any, err error)

func (f CommandObserverFunc) CommandCompleted(ctx context.Context, cmd commands.Command, result any, err error) {
	f(ctx, cmd, result, err)
}

// DispatcherProvider defines the interface for command dispatch.
type DispatcherProvider interface {
	Dispatch(ctx context.Context, cmd commands.Command) (any, error)
}

// Dispatcher routes each command to the engine selected at startup.
type Dispatcher struct {
	engine    BackupEngine
	observers []CommandObserver
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(engine BackupEngine, observers ...CommandObserver) *Dispatcher {
	return &Dispatcher{engine: engine, observers: observers}
}

// Observe registers an observer. It must be called before dispatching starts.
func (d *Dispatcher) Observe(o CommandObserver) {
	d.observers = append(d.observers, o)
}

// Dispatch executes cmd on the engine. The result type follows the command:
// []models.Target, *models.Target, models.Target or models.BackupEntry.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	if cmd == nil {
		return nil, models.InvalidInput("type")
	}
	result, err := d.execute(ctx, cmd)
	if err != nil {
		if !models.IsTyped(err) {
			err = models.Internal("", err)
		}
		result = nil
		log.Debug().Err(err).Str("command", string(cmd.Type())).Msg("Command failed")
	}
	for _, o := range d.observers {
		o.CommandCompleted(ctx, cmd, result, err)
	}
	return result, err
}

func (d *Dispatcher) execute(ctx context.Context, cmd commands.Command) (any, error) {
	switch c := cmd.(type) {
	case commands.ListTargets:
		return d.engine.ListTargets(ctx)
	case commands.GetTarget:
		if c.TargetID == "" {
			return (*models.Target)(nil), nil
		}
		return d.engine.GetTarget(ctx, c.TargetID)
	case commands.RegisterTarget:
		return d.engine.RegisterTarget(ctx, c.Name, c.Path)
	case commands.BackupTarget:
		return d.engine.BackupTarget(ctx, c.TargetID, c.Note)
	case commands.RestoreTarget:
		return d.engine.RestoreTarget(ctx, c.TargetID, c.BackupID)
	case commands.DeleteBackup:
		return d.engine.DeleteBackup(ctx, c.TargetID, c.BackupID)
	case commands.DeleteTarget:
		return d.engine.DeleteTarget(ctx, c.TargetID)
	}
	return nil, models.Internal("", fmt.Errorf("unhandled command %T", cmd))
}

// ListTargets dispatches a ListTargets command.
func (d *Dispatcher) ListTargets(ctx context.Context) ([]models.Target, error) {
	return dispatchAs[[]models.Target](ctx, d, commands.ListTargets{})
}

// GetTarget dispatches a GetTarget command; a nil target means absent.
func (d *Dispatcher) GetTarget(ctx context.Context, targetID string) (*models.Target, error) {
	return dispatchAs[*models.Target](ctx, d, commands.GetTarget{TargetID: targetID})
}

func (d *Dispatcher) RegisterTarget(ctx context.Context, name, path string) (models.Target, error) {
	return dispatchAs[models.Target](ctx, d, commands.RegisterTarget{Name: name, Path: path})
}

func (d *Dispatcher) BackupTarget(ctx context.Context, targetID, note string) (models.Target, error) {
	return dispatchAs[models.Target](ctx, d, commands.BackupTarget{TargetID: targetID, Note: note})
}

func (d *Dispatcher) RestoreTarget(ctx context.Context, targetID string, backupID int) (models.Target, error) {
	return dispatchAs[models.Target](ctx, d, commands.RestoreTarget{TargetID: targetID, BackupID: backupID})
}

func (d *Dispatcher) DeleteBackup(ctx context.Context, targetID string, backupID int) (models.BackupEntry, error) {
	return dispatchAs[models.BackupEntry](ctx, d, commands.DeleteBackup{TargetID: targetID, BackupID: backupID})
}

func (d *Dispatcher) DeleteTarget(ctx context.Context, targetID string) (models.Target, error) {
	return dispatchAs[models.Target](ctx, d, commands.DeleteTarget{TargetID: targetID})
}

func dispatchAs[T any](ctx context.Context, d *Dispatcher, cmd commands.Command) (T, error) {
	var zero T
	result, err := d.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	out, ok := result.(T)
	if !ok {
		return zero, models.Internal("", fmt.Errorf("%s returned %T", cmd.Type(), result))
	}
	return out, nil
}
