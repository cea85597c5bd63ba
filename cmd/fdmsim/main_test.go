package main

import (
	"testing"

	"fdm-printer-sim/pkg/config"
)

func TestApplyLiveKeepsRuntimeSpeed(t *testing.T) {
	cfg := config.Defaults()
	cfg.Simulation.SimulationSpeed = 1
	cfg.Simulation.MaxSimulationSpeed = 8
	state := newState(cfg)
	state.IncreaseSimulationSpeed()
	state.IncreaseSimulationSpeed()

	next := cfg
	next.Printer.ExtrusionSpeed = cfg.Printer.ExtrusionSpeed + 0.1
	applyLive(state, cfg, next)

	st := state.Snapshot()
	if st.SimulationSpeed != 3 {
		t.Errorf("simulation speed = %d, want 3", st.SimulationSpeed)
	}
	if st.ExtrusionSpeed != next.Printer.ExtrusionSpeed {
		t.Errorf("extrusion speed = %v, want %v", st.ExtrusionSpeed, next.Printer.ExtrusionSpeed)
	}
}

func TestApplyLiveSpeedChanges(t *testing.T) {
	cfg := config.Defaults()
	cfg.Simulation.SimulationSpeed = 1
	cfg.Simulation.MaxSimulationSpeed = 8

	tests := []struct {
		name       string
		speed, max int
		want       int
	}{
		{"new speed", 5, 8, 5},
		{"lower cap clamps runtime speed", 1, 2, 2},
		{"raised cap keeps runtime speed", 1, 16, 4},
	}
	for _, tt := range tests {
		state := newState(cfg)
		for i := 0; i < 3; i++ {
			state.IncreaseSimulationSpeed()
		}
		next := cfg
		next.Simulation.SimulationSpeed = tt.speed
		next.Simulation.MaxSimulationSpeed = tt.max
		applyLive(state, cfg, next)
		if got := state.SimulationSpeed(); got != tt.want {
			t.Errorf("%s: simulation speed = %d, want %d", tt.name, got, tt.want)
		}
	}
}
