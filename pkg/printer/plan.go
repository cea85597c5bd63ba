package printer

import (
	"errors"

	simerrors "fdm-printer-sim/pkg/errors"
	"fdm-printer-sim/pkg/gcode"
	"fdm-printer-sim/pkg/motion"
)

// Plan is the outcome of planning one move.
type Plan struct {
	Kind         gcode.MoveKind
	Ticks        int
	MovementRate float64
}

// PlanMove applies the move's feed rate, recomputes the movement rate and
// queues the move's ticks. A plane move missing one of X or Y targets 0 on
// that axis. Moves with no coordinates queue nothing.
func (s *State) PlanMove(m gcode.Move, tickRate float64) (Plan, error) {
	if m.FeedRate != nil {
		s.SetFeedRate(*m.FeedRate)
	}
	plan := Plan{Kind: m.Kind()}
	if plan.Kind == gcode.MoveNone {
		return plan, nil
	}

	plan.MovementRate = s.RecomputeMovementRate(tickRate)
	from := s.NozzlePosition()
	planner := motion.NewPlanner(s.queue)

	var err error
	switch plan.Kind {
	case gcode.MovePlane:
		var tx, ty float64
		if m.X != nil {
			tx = *m.X
		}
		if m.Y != nil {
			ty = *m.Y
		}
		plan.Ticks, err = planner.PlanPlaneMove(from, tx, ty, m.Extrude, plan.MovementRate)
	case gcode.MoveLayer:
		plan.Ticks, err = planner.PlanLayerMove(from, *m.Z, plan.MovementRate)
	}
	if err != nil {
		var se *simerrors.SimError
		if errors.As(err, &se) {
			se.SetCommand(m.Raw)
		}
		return plan, err
	}
	return plan, nil
}

// Home queues the homing descent of the head to the plate origin at bed
// level. head and target are model-frame positions. The nozzle frame is
// set to the remaining distance so that it reads zero once homed.
func (s *State) Home(head, target motion.Vec3) int {
	d := head.Sub(target)
	s.SetNozzlePosition(motion.Vec3{X: d.X, Y: d.Z, Z: d.Y})
	return motion.NewPlanner(s.queue).PlanHome(head, target)
}
