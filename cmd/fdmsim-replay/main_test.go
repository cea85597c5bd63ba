package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"fdm-printer-sim/pkg/motion"
	"fdm-printer-sim/pkg/printer"
	"fdm-printer-sim/pkg/recording"
	"fdm-printer-sim/pkg/sim"
)

func frame(i uint64, z, total float64, extrude bool) sim.Frame {
	return sim.Frame{
		Index: i,
		Tick:  motion.Tick{ExtrudeStart: extrude, ExtrudeAll: extrude},
		Status: printer.Status{
			NozzlePosition:  motion.Vec3{X: float64(i), Z: z},
			ModelPosition:   motion.Vec3{X: float64(i), Y: z},
			SimulationSpeed: 1,
			TotalExtruded:   total,
		},
	}
}

func TestSummarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl.zst")
	w, err := recording.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	frames := []sim.Frame{
		frame(0, 0.2, 0.1, true),
		frame(1, 0.2, 0.2, true),
		frame(2, 0.2, 0.2, false),
		frame(3, 0.4, 0.3, true),
	}
	for _, f := range frames {
		if err := w.Write(f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := recording.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	sum, err := summarize(r)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Frames != 4 || len(sum.Layers) != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if l := sum.Layers[0]; l.Ticks != 3 || l.Extruding != 2 {
		t.Errorf("layer 0 = %+v", l)
	}
	if l := sum.Layers[1]; l.Z != 0.4 || l.Ticks != 1 {
		t.Errorf("layer 1 = %+v", l)
	}
	if sum.NozzlePosition.X != 3 || sum.TotalExtruded != 0.3 {
		t.Errorf("final state %+v", sum)
	}

	var buf bytes.Buffer
	printSummary(&buf, sum)
	if !strings.Contains(buf.String(), "4 frames, 2 layers") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
