package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/isdelr/dirback/internal/models"
)

const (
	simulatedTargets = 10
	simulatedSpan    = 365 * 24 * time.Hour
)

// SimulatedEngine answers commands from an in-memory collection seeded with
// fixture data. It never touches the filesystem.
type SimulatedEngine struct {
	mu      sync.Mutex
	targets []models.Target
	rng     *rand.Rand
	now     func() time.Time
}

// NewSimulatedEngine creates an engine with deterministic fixtures for the given seed.
func NewSimulatedEngine(seed int64) *SimulatedEngine {
	e := &SimulatedEngine{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
	e.targets = e.fixtures(e.now())
	return e
}

// NewEmptySimulatedEngine creates an engine without fixtures.
func NewEmptySimulatedEngine(seed int64) *SimulatedEngine {
	return &SimulatedEngine{
		targets: []models.Target{},
		rng:     rand.New(rand.NewSource(seed)),
		now:     time.Now,
	}
}

// fixtures builds simulatedTargets targets; target i carries simulatedTargets-i
// backups at sorted instants within the year before now.
func (e *SimulatedEngine) fixtures(now time.Time) []models.Target {
	targets := make([]models.Target, 0, simulatedTargets)
	for i := 0; i < simulatedTargets; i++ {
		t := models.Target{
			ID:   e.newID(),
			Name: fmt.Sprintf("Target %d", i+1),
			Path: fmt.Sprintf("/simulated/target-%02d", i+1),
		}
		instants := make([]time.Time, simulatedTargets-i)
		for j := range instants {
			instants[j] = now.Add(-time.Duration(e.rng.Int63n(int64(simulatedSpan))))
		}
		sort.Slice(instants, func(a, b int) bool { return instants[a].Before(instants[b]) })
		for j, at := range instants {
			entry := t.NewBackupEntry(models.NewTimestamp(at), fmt.Sprintf("Backup %d", j+1))
			entry.Size = e.fakeSize()
			// Fixtures are built to satisfy AppendBackup.
			_ = t.AppendBackup(entry)
		}
		targets = append(targets, t)
	}
	return targets
}

// newID draws a uuid-shaped id from the seeded source so fixtures are reproducible.
func (e *SimulatedEngine) newID() string {
	var b [16]byte
	e.rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func (e *SimulatedEngine) fakeSize() int64 {
	return 1<<20 + e.rng.Int63n(512<<20)
}

func (e *SimulatedEngine) ListTargets(ctx context.Context) ([]models.Target, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.CloneTargets(e.targets), nil
}

func (e *SimulatedEngine) GetTarget(ctx context.Context, targetID string) (*models.Target, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := models.FindTarget(e.targets, targetID)
	if !ok {
		return nil, nil
	}
	t := e.targets[i].Clone()
	return &t, nil
}

func (e *SimulatedEngine) RegisterTarget(ctx context.Context, name, path string) (models.Target, error) {
	if err := models.ValidateRegistration(name, path); err != nil {
		return models.Target{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t := models.Target{ID: e.newID(), Name: name, Path: path}
	if _, exists := models.FindTarget(e.targets, t.ID); exists {
		return models.Target{}, models.Internal(t.ID, fmt.Errorf("generated target id collides with an existing target"))
	}
	e.targets = append(e.targets, t)
	return t.Clone(), nil
}

func (e *SimulatedEngine) BackupTarget(ctx context.Context, targetID, note string) (models.Target, error) {
	if err := ctx.Err(); err != nil {
		return models.Target{}, models.Internal(targetID, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := models.FindTarget(e.targets, targetID)
	if !ok {
		return models.Target{}, models.TargetNotFound(targetID)
	}
	t := e.targets[i].Clone()
	entry := t.NewBackupEntry(models.NewTimestamp(e.now()), note)
	entry.Size = e.fakeSize()
	if err := t.AppendBackup(entry); err != nil {
		return models.Target{}, err
	}
	e.targets[i] = t
	return t.Clone(), nil
}

func (e *SimulatedEngine) RestoreTarget(ctx context.Context, targetID string, backupID int) (models.Target, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := models.FindTarget(e.targets, targetID)
	if !ok {
		return models.Target{}, models.TargetNotFound(targetID)
	}
	if _, ok := e.targets[i].FindBackup(backupID); !ok {
		return models.Target{}, models.BackupNotFound(targetID, backupID)
	}
	return e.targets[i].Clone(), nil
}

func (e *SimulatedEngine) DeleteBackup(ctx context.Context, targetID string, backupID int) (models.BackupEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := models.FindTarget(e.targets, targetID)
	if !ok {
		return models.BackupEntry{}, models.TargetNotFound(targetID)
	}
	return e.targets[i].RemoveBackup(backupID)
}

func (e *SimulatedEngine) DeleteTarget(ctx context.Context, targetID string) (models.Target, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	targets, removed, err := models.RemoveTarget(e.targets, targetID)
	if err != nil {
		return models.Target{}, err
	}
	e.targets = targets
	return removed, nil
}
