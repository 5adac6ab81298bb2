// Path: dirback/internal/monitoring/stat_updater.go
package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/isdelr/dirback/internal/models"
	"github.com/isdelr/dirback/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

const storageAlertCooldown = 15 * time.Minute

// usageFunc matches disk.Usage so tests can substitute it.
type usageFunc func(path string) (*disk.UsageStat, error)

// StorageMonitor periodically samples disk usage of the archive store and
// raises an event when it crosses the warning threshold.
type StorageMonitor struct {
	path        string
	warnPercent float64
	eventSvc    services.EventServiceProvider
	usage       usageFunc
	ticker      *time.Ticker
	done        chan bool

	mu        sync.Mutex
	lastAlert time.Time
}

// NewStorageMonitor creates a monitor for the filesystem holding path.
func NewStorageMonitor(path string, warnPercent float64, eventSvc services.EventServiceProvider) *StorageMonitor {
	return &StorageMonitor{
		path:        path,
		warnPercent: warnPercent,
		eventSvc:    eventSvc,
		usage:       disk.Usage,
		done:        make(chan bool),
	}
}

// Run starts the periodic sampling.
func (sm *StorageMonitor) Run() {
	log.Info().Str("path", sm.path).Msg("Starting background storage monitor...")
	sm.ticker = time.NewTicker(1 * time.Minute)
	defer sm.ticker.Stop()

	// Run once immediately on start
	sm.sample()

	for {
		select {
		case <-sm.done:
			log.Info().Msg("Stopping background storage monitor.")
			return
		case <-sm.ticker.C:
			sm.sample()
		}
	}
}

// Stop halts the periodic sampling.
func (sm *StorageMonitor) Stop() {
	sm.done <- true
}

// Stats returns fresh disk usage for the store.
func (sm *StorageMonitor) Stats() (models.StorageStats, error) {
	u, err := sm.usage(sm.path)
	if err != nil {
		return models.StorageStats{}, fmt.Errorf("could not read disk usage for %s: %w", sm.path, err)
	}
	stats := models.StorageStats{
		Path:        sm.path,
		Total:       u.Total,
		Used:        u.Used,
		Free:        u.Free,
		UsedPercent: u.UsedPercent,
	}
	return stats, nil
}

func (sm *StorageMonitor) sample() {
	stats, err := sm.Stats()
	if err != nil {
		log.Warn().Err(err).Msg("StorageMonitor: Could not sample disk usage")
		return
	}
	sm.checkAndAlert(stats)
}

func (sm *StorageMonitor) checkAndAlert(stats models.StorageStats) {
	if sm.warnPercent <= 0 || stats.UsedPercent < sm.warnPercent {
		return
	}
	sm.mu.Lock()
	if !sm.lastAlert.IsZero() && time.Since(sm.lastAlert) < storageAlertCooldown {
		sm.mu.Unlock()
		return
	}
	sm.lastAlert = time.Now()
	sm.mu.Unlock()

	msg := fmt.Sprintf("Archive storage at %s is %.1f%% full.", stats.Path, stats.UsedPercent)
	if err := sm.eventSvc.CreateEvent("system.storage", "warn", msg, nil, nil); err != nil {
		log.Error().Err(err).Msg("StorageMonitor: Failed to record storage event")
	}
}
