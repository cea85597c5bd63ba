// Simulator metrics
//
// SimMetrics observes a running simulation and keeps the fdmsim_* series
// current.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	simerrors "fdm-printer-sim/pkg/errors"
	"fdm-printer-sim/pkg/motion"
	"fdm-printer-sim/pkg/sim"
)

// SimMetrics holds the simulator metric set.
type SimMetrics struct {
	registry *Registry

	Commands      *Counter
	TicksPlanned  *Counter
	TicksConsumed *Counter
	Errors        *Counter

	QueueDepth      *Gauge
	Position        *Gauge
	Filament        *Gauge
	SimulationSpeed *Gauge
	MovementRate    *Gauge

	PlanSeconds *Histogram
}

// NewSimMetrics creates and registers the simulator metrics.
func NewSimMetrics() *SimMetrics {
	m := &SimMetrics{
		registry: NewRegistry(),

		Commands:      NewCounter("fdmsim_commands_total", "G-code commands planned, by move kind"),
		TicksPlanned:  NewCounter("fdmsim_ticks_planned_total", "Motion ticks queued"),
		TicksConsumed: NewCounter("fdmsim_ticks_consumed_total", "Motion ticks consumed"),
		Errors:        NewCounter("fdmsim_errors_total", "Planning errors, by code"),

		QueueDepth:      NewGauge("fdmsim_queue_depth", "Ticks waiting in the motion queue"),
		Position:        NewGauge("fdmsim_position_mm", "Position by frame and axis"),
		Filament:        NewGauge("fdmsim_filament_extruded", "Total filament extruded"),
		SimulationSpeed: NewGauge("fdmsim_simulation_speed", "Simulation speed multiplier"),
		MovementRate:    NewGauge("fdmsim_movement_rate", "Distance per tick in mm"),

		PlanSeconds: NewHistogram("fdmsim_plan_seconds", "Time spent planning one command",
			ExponentialBuckets(0.00001, 10, 6)),
	}
	for _, metric := range []Metric{
		m.Commands, m.TicksPlanned, m.TicksConsumed, m.Errors,
		m.QueueDepth, m.Position, m.Filament, m.SimulationSpeed, m.MovementRate,
		m.PlanSeconds,
	} {
		m.registry.MustRegister(metric)
	}
	return m
}

// Registry returns the registry holding the metric set.
func (m *SimMetrics) Registry() *Registry {
	return m.registry
}

// Gather renders all metrics.
func (m *SimMetrics) Gather() string {
	return m.registry.Gather()
}

// OnPlan records one planned command.
func (m *SimMetrics) OnPlan(ev sim.PlanEvent) {
	m.PlanSeconds.Observe(nil, ev.Duration.Seconds())
	if ev.Err != nil {
		code := string(simerrors.CodeOf(ev.Err))
		if code == "" {
			code = "UNKNOWN"
		}
		m.Errors.Inc(Labels{"code": code})
		return
	}
	m.Commands.Inc(Labels{"kind": ev.Plan.Kind.String()})
	m.TicksPlanned.Add(nil, uint64(ev.Plan.Ticks))
	if ev.Plan.Ticks > 0 {
		m.MovementRate.Set(nil, ev.Plan.MovementRate)
	}
}

// OnFrame records one consumed tick.
func (m *SimMetrics) OnFrame(f sim.Frame) {
	st := f.Status
	m.TicksConsumed.Inc(nil)
	m.QueueDepth.Set(nil, float64(st.QueueDepth))
	m.Filament.Set(nil, st.TotalExtruded)
	m.SimulationSpeed.Set(nil, float64(st.SimulationSpeed))
	m.setPosition("model", st.ModelPosition)
	m.setPosition("nozzle", st.NozzlePosition)
}

func (m *SimMetrics) setPosition(frame string, v motion.Vec3) {
	m.Position.Set(Labels{"frame": frame, "axis": "x"}, v.X)
	m.Position.Set(Labels{"frame": frame, "axis": "y"}, v.Y)
	m.Position.Set(Labels{"frame": frame, "axis": "z"}, v.Z)
}

var (
	_ sim.Observer     = (*SimMetrics)(nil)
	_ sim.PlanObserver = (*SimMetrics)(nil)
)
