// Package geometry builds the wireframe parts of the printer model. The
// simulator only forwards the model position to builders; it never reads
// vertex data back.
package geometry

import "fdm-printer-sim/pkg/motion"

// Part is one wireframe: vertices plus edges indexing into them.
type Part struct {
	Name     string        `json:"name"`
	Vertices []motion.Vec3 `json:"vertices"`
	Edges    [][2]int      `json:"edges"`
}

// Builder produces the parts of one printer component for a model position.
type Builder interface {
	Parts(model motion.Vec3) []Part
}

// boxEdges connects the eight corners produced by box.
var boxEdges = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// box returns the corners of an axis aligned box centred on c with the
// given half extents. Bottom face first.
func box(c, half motion.Vec3) []motion.Vec3 {
	return []motion.Vec3{
		{X: c.X - half.X, Y: c.Y - half.Y, Z: c.Z - half.Z},
		{X: c.X + half.X, Y: c.Y - half.Y, Z: c.Z - half.Z},
		{X: c.X + half.X, Y: c.Y - half.Y, Z: c.Z + half.Z},
		{X: c.X - half.X, Y: c.Y - half.Y, Z: c.Z + half.Z},
		{X: c.X - half.X, Y: c.Y + half.Y, Z: c.Z - half.Z},
		{X: c.X + half.X, Y: c.Y + half.Y, Z: c.Z - half.Z},
		{X: c.X + half.X, Y: c.Y + half.Y, Z: c.Z + half.Z},
		{X: c.X - half.X, Y: c.Y + half.Y, Z: c.Z + half.Z},
	}
}

// Collect gathers the parts of several builders in order.
func Collect(model motion.Vec3, builders ...Builder) []Part {
	var parts []Part
	for _, b := range builders {
		parts = append(parts, b.Parts(model)...)
	}
	return parts
}
