// Package motion turns G-code moves into fixed-size incremental ticks and
// queues them for the render loop.
package motion

import "math"

// Vec3 is a position or displacement in millimetres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Round returns v with every component rounded to the given decimals.
func (v Vec3) Round(decimals int) Vec3 {
	p := math.Pow(10, float64(decimals))
	return Vec3{
		math.Round(v.X*p) / p,
		math.Round(v.Y*p) / p,
		math.Round(v.Z*p) / p,
	}
}

// Tick is one render frame worth of motion. DX/DY/DZ are model-frame
// deltas: Y is vertical, so plane moves carry the G-code Y in DZ and layer
// moves carry the G-code Z in DY.
type Tick struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
	DZ float64 `json:"dz"`

	// ExtrudeStart and ExtrudeAll both carry the move-level extrude flag.
	ExtrudeStart bool `json:"extrude_start"`
	ExtrudeAll   bool `json:"extrude_all"`

	// Sentinel marks the zero-delta ticks bracketing a plane move.
	Sentinel bool `json:"sentinel,omitempty"`
}

// Delta returns the tick displacement as a vector.
func (t Tick) Delta() Vec3 {
	return Vec3{t.DX, t.DY, t.DZ}
}
