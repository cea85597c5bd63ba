package geometry

import "fdm-printer-sim/pkg/motion"

// Head is the print head: a main box with the nozzle hanging below it.
type Head struct {
	Dimension float64
	XOffset   float64
}

// NewHead creates a head builder.
func NewHead(dimension, xOffset float64) *Head {
	return &Head{Dimension: dimension, XOffset: xOffset}
}

func (h *Head) halfExtents() motion.Vec3 {
	return motion.Vec3{X: h.Dimension / 5, Y: h.Dimension / 2, Z: h.Dimension / 2}
}

func (h *Head) nozzleLength() float64 {
	return h.Dimension / 5
}

// NozzleTip returns the logical position of the nozzle tip for a model
// position. The camera offset is not included.
func (h *Head) NozzleTip(model motion.Vec3) motion.Vec3 {
	return motion.Vec3{
		X: model.X,
		Y: model.Y - h.halfExtents().Y - h.nozzleLength(),
		Z: 0,
	}
}

// Parts returns the head box and nozzle. The head moves with model X and Y.
func (h *Head) Parts(model motion.Vec3) []Part {
	half := h.halfExtents()
	c := motion.Vec3{X: model.X + h.XOffset, Y: model.Y}

	tip := h.NozzleTip(model)
	tip.X += h.XOffset
	n := h.Dimension / 15
	top := c.Y - half.Y
	nozzle := Part{
		Name: "nozzle",
		Vertices: []motion.Vec3{
			{X: c.X - n, Y: top, Z: -n},
			{X: c.X + n, Y: top, Z: -n},
			{X: c.X + n, Y: top, Z: n},
			{X: c.X - n, Y: top, Z: n},
			tip,
		},
		Edges: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {0, 4}, {1, 4}, {2, 4}, {3, 4}},
	}

	return []Part{
		{Name: "head", Vertices: box(c, half), Edges: boxEdges},
		nozzle,
	}
}
