package config

import (
	"context"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestReloadManagerDetectChanges(t *testing.T) {
	old := Defaults()
	next := Defaults()
	next.Printer.ExtrusionSpeed = 0.2
	next.Storage.HistoryDB = "/tmp/history.db"

	rm := NewReloadManager(old, "")
	changed := rm.DetectChanges(next)
	if want := []string{"printer", "storage"}; !reflect.DeepEqual(changed, want) {
		t.Errorf("changed = %v, want %v", changed, want)
	}
	if got := rm.DetectChanges(old); len(got) != 0 {
		t.Errorf("identical config reported changes: %v", got)
	}
}

func TestReloadManagerApply(t *testing.T) {
	rm := NewReloadManager(Defaults(), "")

	next := Defaults()
	next.Printer.ExtrusionSpeed = 0.5
	next.Printer.Dimension = 50
	next.Simulation.SimulationSpeed = 3
	next.Simulation.TickRate = 8

	res := rm.Apply(next)
	if want := []string{"printer.dimension", "simulation.tick_rate"}; !reflect.DeepEqual(res.Restart, want) {
		t.Errorf("restart = %v, want %v", res.Restart, want)
	}
	cur := rm.Current()
	if cur.Printer.ExtrusionSpeed != 0.5 || cur.Simulation.SimulationSpeed != 3 {
		t.Errorf("live options not applied: %+v", cur)
	}
	if cur.Printer.Dimension != Defaults().Printer.Dimension || cur.Simulation.TickRate != Defaults().Simulation.TickRate {
		t.Errorf("restart options should keep their old values: %+v", cur)
	}
	if !reflect.DeepEqual(res.Config, cur) {
		t.Error("result config should match the current config")
	}
}

func TestReloadFromFile(t *testing.T) {
	path := writeFile(t, "sim.yaml", "printer:\n  extrusion_speed: 0.1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rm := NewReloadManager(cfg, path)

	if err := os.WriteFile(path, []byte("printer:\n  extrusion_speed: 0.3\nsimulation:\n  simulation_speed: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := rm.ReloadFromFile()
	if err != nil {
		t.Fatalf("ReloadFromFile: %v", err)
	}
	if res.Config.Printer.ExtrusionSpeed != 0.3 || res.Config.Simulation.SimulationSpeed != 2 {
		t.Errorf("unexpected config %+v", res.Config)
	}
	if len(res.Restart) != 0 {
		t.Errorf("no restart options expected, got %v", res.Restart)
	}
}

func TestReloadFromFileInvalid(t *testing.T) {
	path := writeFile(t, "sim.yaml", "printer:\n  extrusion_speed: 0.1\n")
	cfg, _ := Load(path)
	rm := NewReloadManager(cfg, path)

	if err := os.WriteFile(path, []byte("simulation:\n  simulation_speed: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := rm.ReloadFromFile(); err == nil {
		t.Fatal("expected validation error")
	}
	if rm.Current().Printer.ExtrusionSpeed != 0.1 {
		t.Error("failed reload should keep the current config")
	}
}

func TestReloadManagerWatch(t *testing.T) {
	path := writeFile(t, "sim.ini", "[printer]\nextrusion_speed: 0.1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rm := NewReloadManager(cfg, path)
	rm.SetDebounceTime(0)

	var (
		mu      sync.Mutex
		results []ReloadResult
	)
	done := make(chan struct{}, 1)
	rm.SetCallbacks(func(r ReloadResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}, func(err error) { t.Errorf("unexpected reload error: %v", err) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rm.Watch(ctx, 5*time.Millisecond)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("[printer]\nextrusion_speed: 0.25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// force a distinct mtime
	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(tmp, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("reload not observed")
	}
	mu.Lock()
	defer mu.Unlock()
	if results[0].Config.Printer.ExtrusionSpeed != 0.25 {
		t.Errorf("unexpected reload %+v", results[0])
	}
}
