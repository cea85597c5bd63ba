package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// ReloadResult describes one applied reload.
type ReloadResult struct {
	// Changed lists the sections that differ from the previous config.
	Changed []string
	// Restart lists "section.option" values that changed but only take
	// effect on the next run. They are not applied.
	Restart []string
	// Config is the config now in effect.
	Config SimConfig
}

// ReloadManager watches the config file and applies changes to the
// options that can change during a run: printer.extrusion_speed,
// simulation.simulation_speed and simulation.max_simulation_speed.
type ReloadManager struct {
	mu sync.RWMutex

	current SimConfig
	path    string

	// debounceTime is how long the file must be stable before reloading
	debounceTime time.Duration
	modTime      time.Time

	onReload func(ReloadResult)
	onError  func(error)
}

// NewReloadManager creates a reload manager for the config loaded from path.
func NewReloadManager(cfg SimConfig, path string) *ReloadManager {
	rm := &ReloadManager{
		current:      cfg,
		path:         path,
		debounceTime: 100 * time.Millisecond,
	}
	if fi, err := os.Stat(path); err == nil {
		rm.modTime = fi.ModTime()
	}
	return rm
}

// SetDebounceTime sets how long to wait after detecting a change before reloading.
func (rm *ReloadManager) SetDebounceTime(d time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.debounceTime = d
}

// SetCallbacks sets the functions called after a reload and on failure.
func (rm *ReloadManager) SetCallbacks(onReload func(ReloadResult), onError func(error)) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.onReload = onReload
	rm.onError = onError
}

// Current returns the config in effect.
func (rm *ReloadManager) Current() SimConfig {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.current
}

// DetectChanges returns the sections of next that differ from the current config.
func (rm *ReloadManager) DetectChanges(next SimConfig) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return changedSections(rm.current, next)
}

func changedSections(a, b SimConfig) []string {
	var changed []string
	if a.Printer != b.Printer {
		changed = append(changed, "printer")
	}
	if a.Simulation != b.Simulation {
		changed = append(changed, "simulation")
	}
	if a.Server != b.Server {
		changed = append(changed, "server")
	}
	if a.Storage != b.Storage {
		changed = append(changed, "storage")
	}
	return changed
}

// restartOptions lists the changed options that cannot be applied live.
func restartOptions(a, b SimConfig) []string {
	var opts []string
	add := func(changed bool, name string) {
		if changed {
			opts = append(opts, name)
		}
	}
	add(a.Printer.Dimension != b.Printer.Dimension, "printer.dimension")
	add(a.Printer.XOffset != b.Printer.XOffset, "printer.x_offset")
	add(a.Simulation.TickRate != b.Simulation.TickRate, "simulation.tick_rate")
	add(a.Simulation.FrameRate != b.Simulation.FrameRate, "simulation.frame_rate")
	add(a.Server != b.Server, "server")
	add(a.Storage != b.Storage, "storage")
	return opts
}

// ReloadFromFile loads the config file and applies its live options.
// A file that fails to load or validate leaves the current config in place.
func (rm *ReloadManager) ReloadFromFile() (ReloadResult, error) {
	next, err := Load(rm.path)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("reload: %w", err)
	}
	return rm.Apply(next), nil
}

// Apply merges the live options of next into the current config.
func (rm *ReloadManager) Apply(next SimConfig) ReloadResult {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	res := ReloadResult{
		Changed: changedSections(rm.current, next),
		Restart: restartOptions(rm.current, next),
	}
	rm.current.Printer.ExtrusionSpeed = next.Printer.ExtrusionSpeed
	rm.current.Simulation.SimulationSpeed = next.Simulation.SimulationSpeed
	rm.current.Simulation.MaxSimulationSpeed = next.Simulation.MaxSimulationSpeed
	res.Config = rm.current
	return res
}

// Watch polls the config file every interval until ctx is done. Changes
// are applied once the file has been stable for the debounce time.
func (rm *ReloadManager) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rm.checkFile() {
				rm.reload()
			}
		}
	}
}

// checkFile reports whether the file changed and has settled.
func (rm *ReloadManager) checkFile() bool {
	fi, err := os.Stat(rm.path)
	if err != nil {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	mod := fi.ModTime()
	if mod.Equal(rm.modTime) || time.Since(mod) < rm.debounceTime {
		return false
	}
	rm.modTime = mod
	return true
}

func (rm *ReloadManager) reload() {
	res, err := rm.ReloadFromFile()

	rm.mu.RLock()
	onReload, onError := rm.onReload, rm.onError
	rm.mu.RUnlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onReload != nil && len(res.Changed) > 0 {
		onReload(res)
	}
}
