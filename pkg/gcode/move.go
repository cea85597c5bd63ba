package gcode

import (
	"errors"
	"math"
	"strconv"
	"strings"

	simerrors "fdm-printer-sim/pkg/errors"
)

var errNotFinite = errors.New("value is not a finite number")

// MoveKind selects the planner for a move.
type MoveKind int

const (
	MoveNone MoveKind = iota
	MovePlane
	MoveLayer
)

func (k MoveKind) String() string {
	switch k {
	case MovePlane:
		return "plane"
	case MoveLayer:
		return "layer"
	}
	return "none"
}

// Move is one parsed linear move. Nil coordinates were not given.
// FeedRate is a pending feed rate update that the caller applies to the
// printer state before planning the move.
type Move struct {
	FeedRate *float64
	X, Y, Z  *float64
	Extrude  bool
	Raw      string
}

// Kind reports how the move is planned. X or Y makes a plane move and any
// Z on the same line is ignored.
func (m Move) Kind() MoveKind {
	switch {
	case m.X != nil || m.Y != nil:
		return MovePlane
	case m.Z != nil:
		return MoveLayer
	}
	return MoveNone
}

// ParseMove parses a filtered linear move command. Parsing has no side
// effects.
func ParseMove(cmd string) (Move, error) {
	m := Move{Raw: cmd}

	params := cmd
	if idx := strings.IndexByte(params, ';'); idx >= 0 {
		params = params[:idx]
	}
	if len(params) < len(LinearMove) {
		return m, nil
	}
	params = params[len(LinearMove):]

	for _, tok := range strings.Fields(params) {
		var dst **float64
		switch tok[0] {
		case 'F':
			dst = &m.FeedRate
		case 'X':
			dst = &m.X
		case 'Y':
			dst = &m.Y
		case 'Z':
			dst = &m.Z
		case 'E':
			m.Extrude = true
			continue
		default:
			continue
		}
		v, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil {
			return Move{Raw: cmd}, simerrors.MalformedMoveError(strings.TrimSpace(cmd), tok, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Move{Raw: cmd}, simerrors.MalformedMoveError(strings.TrimSpace(cmd), tok, errNotFinite)
		}
		*dst = &v
	}
	return m, nil
}
