package printer

import (
	"math"
	"testing"

	simerrors "fdm-printer-sim/pkg/errors"
	"fdm-printer-sim/pkg/gcode"
	"fdm-printer-sim/pkg/motion"
)

func parse(t *testing.T, cmd string) gcode.Move {
	t.Helper()
	m, err := gcode.ParseMove(cmd)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", cmd, err)
	}
	return m
}

// drain consumes every queued tick.
func drain(t *testing.T, s *State) (ticks, extruding int) {
	t.Helper()
	for s.Queue().Len() > 0 {
		tk, err := s.ConsumeTickDetail()
		if err != nil {
			t.Fatalf("ConsumeTickDetail: %v", err)
		}
		ticks++
		if tk.ExtrudeAll && !tk.Sentinel {
			extruding++
		}
	}
	return ticks, extruding
}

func TestPlanMoveExample(t *testing.T) {
	s := New()
	// 600 mm/min at tick rate 100 gives a movement rate of 2
	plan, err := s.PlanMove(parse(t, "G1 X10 Y5 F600 E"), 100)
	if err != nil {
		t.Fatalf("PlanMove: %v", err)
	}
	if plan.Kind != gcode.MovePlane || plan.Ticks != 7 || math.Abs(plan.MovementRate-2) > 1e-12 {
		t.Errorf("plan = %+v", plan)
	}
	if s.FeedRate() != 600 {
		t.Errorf("feed rate = %v", s.FeedRate())
	}

	n, extruding := drain(t, s)
	if n != 7 || extruding != 5 {
		t.Errorf("consumed %d ticks (%d extruding), want 7 (5)", n, extruding)
	}
	nozzle := s.NozzlePosition()
	if math.Abs(nozzle.X-10) > 1e-9 || math.Abs(nozzle.Y-5) > 1e-9 || nozzle.Z != 0 {
		t.Errorf("nozzle = %+v", nozzle)
	}
	model := s.ModelPosition()
	if math.Abs(model.Z-5) > 1e-9 || model.Y != 0 {
		t.Errorf("model = %+v", model)
	}
}

func TestPlanMoveSequence(t *testing.T) {
	s := New()
	cmds := []string{
		"G1 Z0.2 F1200",
		"G1 X20 Y20",
		"G1 Y40 E1.2",
		"G1 X0 Z9",
		"G1 Z1.0",
	}
	for _, c := range cmds {
		if _, err := s.PlanMove(parse(t, c), 16); err != nil {
			t.Fatalf("PlanMove(%q): %v", c, err)
		}
		drain(t, s)
	}
	nozzle := s.NozzlePosition()
	if math.Abs(nozzle.X) > 1e-9 || math.Abs(nozzle.Y) > 1e-9 || math.Abs(nozzle.Z-1.0) > 1e-9 {
		t.Errorf("nozzle = %+v, want (0, 0, 1)", nozzle)
	}
}

func TestPlanMoveMissingAxisTargetsZero(t *testing.T) {
	tests := []struct {
		cmd  string
		want motion.Vec3
	}{
		{"G1 X10 F600", motion.Vec3{X: 10}},
		{"G1 Y12 F600", motion.Vec3{Y: 12}},
	}
	for _, tt := range tests {
		s := New()
		s.SetNozzlePosition(motion.Vec3{X: 20, Y: 30})
		if _, err := s.PlanMove(parse(t, tt.cmd), 16); err != nil {
			t.Fatalf("PlanMove(%q): %v", tt.cmd, err)
		}
		drain(t, s)
		got := s.NozzlePosition()
		if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 || got.Z != 0 {
			t.Errorf("%q: nozzle = %+v, want %+v", tt.cmd, got, tt.want)
		}
	}
}

func TestPlanMoveWithoutFeedRate(t *testing.T) {
	s := New()
	_, err := s.PlanMove(parse(t, "G1 X10 Y10"), 16)
	if !simerrors.Is(err, simerrors.ErrCodeNoFeedRate) {
		t.Fatalf("expected NoFeedRate, got %v", err)
	}
	if simerrors.CodeOf(err) != simerrors.ErrCodeNoFeedRate {
		t.Errorf("CodeOf = %v", simerrors.CodeOf(err))
	}
	if s.Queue().Len() != 0 {
		t.Errorf("queue depth %d after failed plan", s.Queue().Len())
	}
}

func TestPlanMoveFeedOnly(t *testing.T) {
	s := New()
	plan, err := s.PlanMove(parse(t, "G1 F3000 E"), 16)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Kind != gcode.MoveNone || plan.Ticks != 0 || s.Queue().Len() != 0 {
		t.Errorf("plan = %+v", plan)
	}
	if s.FeedRate() != 3000 {
		t.Errorf("feed rate = %v, want 3000", s.FeedRate())
	}
}

func TestHome(t *testing.T) {
	s := New()
	head := motion.Vec3{X: 5, Y: 10, Z: 3}
	target := motion.Vec3{X: 0, Y: -10, Z: 0}

	if n := s.Home(head, target); n != 20 {
		t.Fatalf("Home queued %d ticks, want 20", n)
	}
	if got := s.NozzlePosition(); got != (motion.Vec3{X: 5, Y: 3, Z: 20}) {
		t.Errorf("nozzle before homing = %+v", got)
	}
	drain(t, s)
	if got := s.NozzlePosition(); got != (motion.Vec3{}) {
		t.Errorf("nozzle after homing = %+v, want origin", got)
	}
	if got := s.ModelPosition(); got != (motion.Vec3{X: -5, Y: -20, Z: -3}) {
		t.Errorf("model after homing = %+v", got)
	}
}
