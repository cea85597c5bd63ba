// Package printer holds the simulated printer state: feed and movement
// rates, the model and nozzle position frames, extrusion totals and the
// motion queue feeding them.
package printer

import (
	"math"
	"sync"

	"fdm-printer-sim/pkg/motion"
)

// Status is a point-in-time copy of the printer state.
type Status struct {
	ModelPosition   motion.Vec3 `json:"model_position"`
	NozzlePosition  motion.Vec3 `json:"nozzle_position"`
	FeedRate        float64     `json:"feed_rate"`
	MovementRate    float64     `json:"movement_rate"`
	SimulationSpeed int         `json:"simulation_speed"`
	ExtrusionSpeed  float64     `json:"extrusion_speed"`
	TotalExtruded   float64     `json:"total_extruded"`
	QueueDepth      int         `json:"queue_depth"`
}

// State is the printer. All methods are safe for concurrent use.
//
// The nozzle frame is the G-code frame. It swaps Y and Z relative to the
// model frame, where Y is vertical.
type State struct {
	mu sync.RWMutex

	feedRate     float64
	movementRate float64
	simSpeed     int
	maxSimSpeed  int

	model  motion.Vec3
	nozzle motion.Vec3

	extrusionSpeed float64
	totalExtruded  float64

	queue *motion.Queue
}

// Option configures a State.
type Option func(*State)

// WithMaxSimulationSpeed caps IncreaseSimulationSpeed. Zero means no cap.
func WithMaxSimulationSpeed(max int) Option {
	return func(s *State) { s.maxSimSpeed = max }
}

// WithSimulationSpeed sets the initial simulation speed.
func WithSimulationSpeed(speed int) Option {
	return func(s *State) {
		if speed >= 1 {
			s.simSpeed = speed
		}
	}
}

// WithExtrusionSpeed sets the amount added per extruding tick.
func WithExtrusionSpeed(v float64) Option {
	return func(s *State) { s.extrusionSpeed = v }
}

// New creates a printer at the origin with simulation speed 1.
func New(opts ...Option) *State {
	s := &State{
		simSpeed: 1,
		queue:    motion.NewQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Queue returns the motion queue ticks are consumed from.
func (s *State) Queue() *motion.Queue {
	return s.queue
}

// SetFeedRate stores the feed rate. It applies from the next
// RecomputeMovementRate.
func (s *State) SetFeedRate(v float64) {
	s.mu.Lock()
	s.feedRate = v
	s.mu.Unlock()
}

// FeedRate returns the last feed rate set.
func (s *State) FeedRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedRate
}

// RecomputeMovementRate derives the per-tick distance from the current feed
// rate and simulation speed, stores it and returns it.
func (s *State) RecomputeMovementRate(tickRate float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movementRate = motion.MovementRate(s.feedRate, s.simSpeed, tickRate)
	return s.movementRate
}

// MovementRate returns the last computed movement rate.
func (s *State) MovementRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movementRate
}

// IncreaseSimulationSpeed raises the speed multiplier by one, up to the
// configured maximum.
func (s *State) IncreaseSimulationSpeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxSimSpeed > 0 && s.simSpeed >= s.maxSimSpeed {
		return
	}
	s.simSpeed++
}

// DecreaseSimulationSpeed lowers the speed multiplier by one. It is a no-op
// at 1.
func (s *State) DecreaseSimulationSpeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.simSpeed <= 1 {
		return
	}
	s.simSpeed--
}

// SetSimulationSpeed replaces the speed multiplier and its cap. The speed
// is clamped to [1, max]; a max of zero means no cap.
func (s *State) SetSimulationSpeed(speed, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSimSpeed = max
	if speed < 1 {
		speed = 1
	}
	if max > 0 && speed > max {
		speed = max
	}
	s.simSpeed = speed
}

// SimulationSpeed returns the speed multiplier.
func (s *State) SimulationSpeed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simSpeed
}

// ConsumeTick pops one tick and applies it to both position frames. It
// returns the tick's extrusion flags, or ErrQueueEmpty.
func (s *State) ConsumeTick() (extrudeStart, extrudeAll bool, err error) {
	t, err := s.ConsumeTickDetail()
	if err != nil {
		return false, false, err
	}
	return t.ExtrudeStart, t.ExtrudeAll, nil
}

// ConsumeTickDetail is ConsumeTick returning the whole tick.
func (s *State) ConsumeTickDetail() (motion.Tick, error) {
	t, err := s.queue.Pop()
	if err != nil {
		return motion.Tick{}, err
	}

	s.mu.Lock()
	s.model = s.model.Add(t.Delta())
	s.nozzle.X += t.DX
	s.nozzle.Y += t.DZ
	s.nozzle.Z += t.DY
	s.mu.Unlock()
	return t, nil
}

// SetExtrusionSpeed sets the amount added per extruding tick.
func (s *State) SetExtrusionSpeed(v float64) {
	s.mu.Lock()
	s.extrusionSpeed = v
	s.mu.Unlock()
}

// AddExtrudedAmount adds one tick of extrusion to the total.
func (s *State) AddExtrudedAmount() {
	s.mu.Lock()
	s.totalExtruded += s.extrusionSpeed
	s.mu.Unlock()
}

// TotalExtruded returns the filament used, rounded to 5 decimals.
func (s *State) TotalExtruded() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return roundTo(s.totalExtruded, 5)
}

// ModelPosition returns the position of the printer model.
func (s *State) ModelPosition() motion.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// NozzlePosition returns the nozzle position in G-code coordinates.
func (s *State) NozzlePosition() motion.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nozzle
}

// SetNozzlePosition overwrites the nozzle frame. Used when homing starts.
func (s *State) SetNozzlePosition(v motion.Vec3) {
	s.mu.Lock()
	s.nozzle = v
	s.mu.Unlock()
}

// ResetModelPosition moves the model frame back to the origin without
// touching the nozzle frame.
func (s *State) ResetModelPosition() {
	s.mu.Lock()
	s.model = motion.Vec3{}
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Status {
	depth := s.queue.Len()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		ModelPosition:   s.model,
		NozzlePosition:  s.nozzle,
		FeedRate:        s.feedRate,
		MovementRate:    s.movementRate,
		SimulationSpeed: s.simSpeed,
		ExtrusionSpeed:  s.extrusionSpeed,
		TotalExtruded:   roundTo(s.totalExtruded, 5),
		QueueDepth:      depth,
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
