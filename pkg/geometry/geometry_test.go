package geometry

import (
	"testing"

	"fdm-printer-sim/pkg/motion"
)

func TestPlateAnchors(t *testing.T) {
	p := NewPlate(37.5, 97.5)
	if p.BedLevel() != -168.75 {
		t.Errorf("BedLevel = %v", p.BedLevel())
	}
	if p.Size() != 180 {
		t.Errorf("Size = %v, want 180", p.Size())
	}
	if p.Origin() != (motion.Vec3{Y: -168.75}) {
		t.Errorf("Origin = %+v", p.Origin())
	}
}

func TestPlateFollowsModelZ(t *testing.T) {
	p := NewPlate(37.5, 0)
	parts := p.Parts(motion.Vec3{X: 10, Y: 10, Z: 25})
	if len(parts) != 1 || len(parts[0].Vertices) != 8 || len(parts[0].Edges) != 12 {
		t.Fatalf("unexpected plate parts: %+v", parts)
	}
	var sumX, sumZ float64
	for _, v := range parts[0].Vertices {
		sumX += v.X
		sumZ += v.Z
		if v.Y > p.BedLevel() {
			t.Errorf("plate vertex %+v above bed level", v)
		}
	}
	if sumX/8 != 0 || sumZ/8 != 25 {
		t.Errorf("plate centre = (%v, %v), want (0, 25)", sumX/8, sumZ/8)
	}
}

func TestHeadNozzleTip(t *testing.T) {
	h := NewHead(37.5, 97.5)
	tip := h.NozzleTip(motion.Vec3{X: 3, Y: 4, Z: 99})
	want := motion.Vec3{X: 3, Y: 4 - 18.75 - 7.5}
	if tip != want {
		t.Errorf("NozzleTip = %+v, want %+v", tip, want)
	}

	parts := h.Parts(motion.Vec3{X: 3, Y: 4})
	if len(parts) != 2 || parts[1].Name != "nozzle" {
		t.Fatalf("unexpected head parts: %+v", parts)
	}
	rendered := parts[1].Vertices[4]
	if rendered.X != tip.X+97.5 || rendered.Y != tip.Y {
		t.Errorf("rendered tip = %+v", rendered)
	}
	for _, part := range parts {
		for _, e := range part.Edges {
			if e[0] >= len(part.Vertices) || e[1] >= len(part.Vertices) {
				t.Errorf("%s edge %v out of range", part.Name, e)
			}
		}
	}
}

func TestCollect(t *testing.T) {
	parts := Collect(motion.Vec3{}, NewHead(10, 0), NewPlate(10, 0))
	names := []string{"head", "nozzle", "plate"}
	if len(parts) != len(names) {
		t.Fatalf("got %d parts", len(parts))
	}
	for i, n := range names {
		if parts[i].Name != n {
			t.Errorf("part %d = %s, want %s", i, parts[i].Name, n)
		}
	}
}
