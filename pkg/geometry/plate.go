package geometry

import "fdm-printer-sim/pkg/motion"

// Plate is the square print bed. A dimension of 37.5 gives a 180mm plate.
type Plate struct {
	Dimension float64
	XOffset   float64
}

// NewPlate creates a plate builder.
func NewPlate(dimension, xOffset float64) *Plate {
	return &Plate{Dimension: dimension, XOffset: xOffset}
}

// BedLevel is the height of the plate surface in the model frame.
func (p *Plate) BedLevel() float64 {
	return -p.Dimension * 4.5
}

// Size is the plate edge length.
func (p *Plate) Size() float64 {
	return p.Dimension * 4.8
}

// XZero is the logical X origin of the plate.
func (p *Plate) XZero() float64 { return 0 }

// ZZero is the logical Z origin of the plate.
func (p *Plate) ZZero() float64 { return 0 }

// Origin is the homing target: plate zero at bed level.
func (p *Plate) Origin() motion.Vec3 {
	return motion.Vec3{X: p.XZero(), Y: p.BedLevel(), Z: p.ZZero()}
}

// Parts returns the plate. The bed travels along the model Z axis.
func (p *Plate) Parts(model motion.Vec3) []Part {
	half := p.Size() / 2
	thickness := p.Dimension / 10
	c := motion.Vec3{X: p.XOffset, Y: p.BedLevel() - thickness/2, Z: model.Z}
	return []Part{{
		Name:     "plate",
		Vertices: box(c, motion.Vec3{X: half, Y: thickness / 2, Z: half}),
		Edges:    boxEdges,
	}}
}
