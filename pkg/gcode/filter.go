package gcode

import "strings"

const (
	// AbsolutePositioning marks the start of a motion phase.
	AbsolutePositioning = "G90"
	// LinearMove is the opcode of the commands the filter selects.
	LinearMove = "G1"

	// printStartMarker is the marker occurrence that starts the print.
	// The first G90 is the pre-print positioning command.
	printStartMarker = 2
)

// FilterStats summarizes one filter pass.
type FilterStats struct {
	Lines    int
	Markers  int
	Commands int
}

// Filter returns the linear move lines that follow the second absolute
// positioning marker, in file order. Every other line is skipped.
func Filter(lines []string) []string {
	cmds, _ := FilterWithStats(lines)
	return cmds
}

// FilterWithStats is Filter and also reports counts.
func FilterWithStats(lines []string) ([]string, FilterStats) {
	var (
		cmds  []string
		stats FilterStats
	)
	for _, line := range lines {
		stats.Lines++
		if stats.Markers != printStartMarker && strings.HasPrefix(line, AbsolutePositioning) {
			stats.Markers++
		}
		if stats.Markers == printStartMarker && strings.HasPrefix(line, LinearMove) {
			cmds = append(cmds, line)
		}
	}
	stats.Commands = len(cmds)
	return cmds, stats
}
