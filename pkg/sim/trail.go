package sim

import "fdm-printer-sim/pkg/motion"

// Segment is a run of contiguous extruding ticks, as model-frame points.
type Segment struct {
	Points []motion.Vec3 `json:"points"`
}

type trail struct {
	segments []Segment
	open     bool
}

// extend adds the move from..to to the open segment, starting one if needed.
func (t *trail) extend(from, to motion.Vec3) {
	if !t.open {
		t.segments = append(t.segments, Segment{Points: []motion.Vec3{from}})
		t.open = true
	}
	seg := &t.segments[len(t.segments)-1]
	seg.Points = append(seg.Points, to)
}

func (t *trail) close() {
	t.open = false
}

func (t *trail) snapshot() []Segment {
	out := make([]Segment, len(t.segments))
	for i, seg := range t.segments {
		out[i] = Segment{Points: append([]motion.Vec3(nil), seg.Points...)}
	}
	return out
}
