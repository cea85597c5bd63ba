package motion

import (
	"math"

	simerrors "fdm-printer-sim/pkg/errors"
)

// MovementRate converts a feed rate into the distance covered per tick.
// The rate scales linearly with feed rate, simulation speed and tick rate.
func MovementRate(feedRate float64, simSpeed int, tickRate float64) float64 {
	mmPerUnit := feedRate / (30000.0 / float64(simSpeed))
	return mmPerUnit * tickRate
}

// Planner discretizes moves into ticks. It holds no position state of its
// own; callers pass the current nozzle position in.
type Planner struct {
	sink TickSink
}

// NewPlanner creates a planner writing to sink.
func NewPlanner(sink TickSink) *Planner {
	return &Planner{sink: sink}
}

func checkRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return simerrors.NoFeedRateError("")
	}
	return nil
}

// requiredTicks is floor(distance/rate), never less than one.
func requiredTicks(distance, rate float64) int {
	n := int(distance / rate)
	if n < 1 {
		return 1
	}
	return n
}

// step returns the signed per-tick increment from current toward target.
func step(current, target float64, ticks int) float64 {
	s := math.Abs(target-current) / float64(ticks)
	if current < target {
		return s
	}
	return -s
}

// PlanPlaneMove plans a horizontal move from the nozzle position to
// (targetX, targetY). The plane Y travels in the tick's DZ slot. The move
// is bracketed by zero-delta sentinel ticks. It returns the number of ticks
// emitted including both sentinels.
func (p *Planner) PlanPlaneMove(from Vec3, targetX, targetY float64, extrude bool, rate float64) (int, error) {
	if err := checkRate(rate); err != nil {
		return 0, err
	}

	length := math.Hypot(targetX-from.X, targetY-from.Y)
	ticks := requiredTicks(length, rate)
	xStep := step(from.X, targetX, ticks)
	yStep := step(from.Y, targetY, ticks)

	sentinel := Tick{ExtrudeStart: extrude, ExtrudeAll: extrude, Sentinel: true}
	p.sink.Push(sentinel)
	for i := 0; i < ticks; i++ {
		p.sink.Push(Tick{DX: xStep, DZ: yStep, ExtrudeStart: extrude, ExtrudeAll: extrude})
	}
	p.sink.Push(sentinel)
	return ticks + 2, nil
}

// PlanLayerMove plans a vertical move to targetZ. Layer moves never extrude.
func (p *Planner) PlanLayerMove(from Vec3, targetZ, rate float64) (int, error) {
	if err := checkRate(rate); err != nil {
		return 0, err
	}

	ticks := requiredTicks(math.Abs(targetZ-from.Z), rate)
	zStep := step(from.Z, targetZ, ticks)
	for i := 0; i < ticks; i++ {
		p.sink.Push(Tick{DY: zStep})
	}
	return ticks, nil
}

// PlanHome plans the homing descent of the head from head to target, both
// in the model frame. The tick budget is the largest axis distance. Every
// tick moves each axis by ceil(remaining/budget) and then reduces every
// remaining distance by one, so short axes finish early and all axes move
// together. It returns the number of ticks emitted.
func (p *Planner) PlanHome(head, target Vec3) int {
	diff := [3]float64{head.X - target.X, head.Y - target.Y, head.Z - target.Z}
	var sign, rem [3]float64
	budget := 0.0
	for i, d := range diff {
		sign[i] = -1
		if d < 0 {
			sign[i] = 1
		}
		rem[i] = math.Abs(d)
		budget = math.Max(budget, rem[i])
	}
	budget = math.Floor(budget)

	ticks := int(budget)
	for n := 0; n < ticks; n++ {
		var delta [3]float64
		for i := range rem {
			if c := math.Ceil(rem[i] / budget); c > 0 {
				delta[i] = sign[i] * c
			}
			rem[i]--
		}
		p.sink.Push(Tick{DX: delta[0], DY: delta[1], DZ: delta[2]})
	}
	return ticks
}
