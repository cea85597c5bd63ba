// Package sim drives a G-code program through the printer one render tick
// at a time.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	simerrors "fdm-printer-sim/pkg/errors"
	"fdm-printer-sim/pkg/gcode"
	"fdm-printer-sim/pkg/geometry"
	"fdm-printer-sim/pkg/log"
	"fdm-printer-sim/pkg/motion"
	"fdm-printer-sim/pkg/printer"
)

// ErrFinished is returned by Step once the program is exhausted and every
// queued tick has been consumed.
var ErrFinished = errors.New("sim: program finished")

// Frame is the outcome of one Step.
type Frame struct {
	Index   uint64         `json:"index"`
	Command string         `json:"command,omitempty"`
	Tick    motion.Tick    `json:"tick"`
	Status  printer.Status `json:"status"`
}

// Observer is notified after every consumed tick. Observers run on the
// stepping goroutine and should return quickly.
type Observer interface {
	OnFrame(Frame)
}

// PlanEvent describes one planned command.
type PlanEvent struct {
	Command  string
	Plan     printer.Plan
	Duration time.Duration
	Err      error
}

// PlanObserver is optionally implemented by observers that want planning
// events as well as frames.
type PlanObserver interface {
	OnPlan(PlanEvent)
}

// Config configures a Simulator.
type Config struct {
	// TickRate is the time per tick in milliseconds.
	TickRate float64
	Plate    *geometry.Plate
	Head     *geometry.Head
	Logger   *log.Logger
}

// Stats summarizes a run so far.
type Stats struct {
	Commands      int    `json:"commands"`
	Planned       int    `json:"planned"`
	TicksPlanned  uint64 `json:"ticks_planned"`
	TicksConsumed uint64 `json:"ticks_consumed"`
	Segments      int    `json:"segments"`
}

// Simulator feeds filtered commands to the printer lazily: a command is
// planned only when the motion queue has run dry, so each plan starts from
// the true nozzle position.
type Simulator struct {
	state   *printer.State
	program *gcode.Program
	cfg     Config
	log     *log.Logger

	mu        sync.Mutex
	started   bool
	commands  []string
	next      int
	current   string
	frames    uint64
	lastRate  float64
	observers []Observer
	trail     trail
}

// New creates a simulator for program on state.
func New(state *printer.State, program *gcode.Program, cfg Config) *Simulator {
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger("sim")
	}
	return &Simulator{
		state:   state,
		program: program,
		cfg:     cfg,
		log:     cfg.Logger,
	}
}

// AddObserver registers an observer. Call before Start.
func (s *Simulator) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// State returns the printer being driven.
func (s *Simulator) State() *printer.State {
	return s.state
}

// Start queues the homing moves and selects the program's commands.
// Calling Start twice is a no-op.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	if s.cfg.Head != nil && s.cfg.Plate != nil {
		s.log.Info("Zeroing head")
		head := s.cfg.Head.NozzleTip(s.state.ModelPosition())
		n := s.state.Home(head, s.cfg.Plate.Origin())
		s.log.Debug("Homing queued %d ticks", n)
	}

	cmds, stats := gcode.FilterWithStats(s.program.Lines)
	s.commands = cmds
	s.log.WithFields(log.Fields{
		"lines":    stats.Lines,
		"markers":  stats.Markers,
		"commands": stats.Commands,
	}).Info("Program loaded")
	if stats.Markers < 2 {
		s.log.Warn("Print start marker not found, no moves selected")
	}
}

// Done reports whether the program is exhausted and the queue drained.
func (s *Simulator) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && s.next >= len(s.commands) && s.state.Queue().Len() == 0
}

// Step plans ahead if needed and consumes exactly one tick. It returns
// ErrFinished when there is nothing left to do; any planning error halts
// the run.
func (s *Simulator) Step() (Frame, error) {
	s.Start()

	frame, events, observers, err := s.advance()
	for _, ev := range events {
		for _, o := range observers {
			if po, ok := o.(PlanObserver); ok {
				po.OnPlan(ev)
			}
		}
	}
	if err != nil {
		return Frame{}, err
	}
	for _, o := range observers {
		o.OnFrame(frame)
	}
	return frame, nil
}

// advance does the work of Step under the lock. Observers are notified by
// the caller once the lock is released.
func (s *Simulator) advance() (Frame, []PlanEvent, []Observer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observers := s.observers
	var events []PlanEvent
	queue := s.state.Queue()
	for queue.Len() == 0 && s.next < len(s.commands) {
		cmd := s.commands[s.next]
		s.next++
		ev := s.planLocked(cmd)
		events = append(events, ev)
		if ev.Err != nil {
			return Frame{}, events, observers, ev.Err
		}
	}

	before := s.state.ModelPosition()
	tick, err := s.state.ConsumeTickDetail()
	if err != nil {
		if simerrors.Is(err, simerrors.ErrCodeQueueEmpty) {
			err = ErrFinished
		}
		return Frame{}, events, observers, err
	}
	if tick.ExtrudeAll && !tick.Sentinel {
		s.state.AddExtrudedAmount()
		s.trail.extend(before, s.state.ModelPosition())
	} else {
		s.trail.close()
	}

	s.frames++
	frame := Frame{
		Index:   s.frames,
		Command: s.current,
		Tick:    tick,
		Status:  s.state.Snapshot(),
	}
	return frame, events, observers, nil
}

func (s *Simulator) planLocked(cmd string) PlanEvent {
	s.current = cmd
	s.log.Debug("Processing: %s", cmd)

	begin := time.Now()
	move, err := gcode.ParseMove(cmd)
	var plan printer.Plan
	if err == nil {
		plan, err = s.state.PlanMove(move, s.cfg.TickRate)
	}
	ev := PlanEvent{Command: cmd, Plan: plan, Duration: time.Since(begin), Err: err}
	if err != nil {
		s.log.WithError(err).Error("Planning failed")
		return ev
	}

	if plan.Kind != gcode.MoveNone && plan.MovementRate != s.lastRate {
		s.lastRate = plan.MovementRate
		s.log.Info("New movement rate: %f", plan.MovementRate)
	}
	if plan.Kind == gcode.MoveLayer {
		s.log.Info("Z height change: %v", *move.Z)
	}
	return ev
}

// Run steps the simulation at frameRate ticks per second until the program
// finishes, a step fails or ctx is cancelled. A frameRate of 0 runs as fast
// as possible.
func (s *Simulator) Run(ctx context.Context, frameRate int) error {
	s.Start()

	var interval time.Duration
	if frameRate > 0 {
		interval = time.Second / time.Duration(frameRate)
	}
	// rates above one tick per nanosecond run unpaced
	if interval <= 0 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := s.step(); err != nil {
				return finished(err)
			}
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.step(); err != nil {
				return finished(err)
			}
		}
	}
}

func (s *Simulator) step() error {
	_, err := s.Step()
	return err
}

func finished(err error) error {
	if errors.Is(err, ErrFinished) {
		return nil
	}
	return err
}

// Stats returns run counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Commands:      len(s.commands),
		Planned:       s.next,
		TicksPlanned:  s.state.Queue().Pushed(),
		TicksConsumed: s.state.Queue().Popped(),
		Segments:      len(s.trail.segments),
	}
}

// Trail returns a copy of the extruded segments so far.
func (s *Simulator) Trail() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trail.snapshot()
}
