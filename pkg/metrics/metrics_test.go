// Unit tests for the Prometheus metrics implementation
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"strings"
	"sync"
	"testing"
)

// TestCounterWithLabels tests counter operations per label set
func TestCounterWithLabels(t *testing.T) {
	c := NewCounter("fdmsim_commands_total", "Commands planned")

	plane := Labels{"kind": "plane"}
	layer := Labels{"kind": "layer"}

	if v := c.Get(plane); v != 0 {
		t.Errorf("expected initial value 0, got %d", v)
	}
	c.Inc(plane)
	c.Inc(plane)
	c.Add(layer, 5)

	if v := c.Get(plane); v != 2 {
		t.Errorf("expected plane count 2, got %d", v)
	}
	if v := c.Get(Labels{"kind": "layer"}); v != 5 {
		t.Errorf("expected layer count 5, got %d", v)
	}

	var sb strings.Builder
	c.Write(&sb)
	want := "# HELP fdmsim_commands_total Commands planned\n" +
		"# TYPE fdmsim_commands_total counter\n" +
		"fdmsim_commands_total{kind=\"layer\"} 5\n" +
		"fdmsim_commands_total{kind=\"plane\"} 2\n"
	if sb.String() != want {
		t.Errorf("unexpected output:\n%s", sb.String())
	}
}

// TestGauge tests set and add
func TestGauge(t *testing.T) {
	g := NewGauge("fdmsim_position_mm", "Position")
	x := Labels{"frame": "nozzle", "axis": "x"}

	g.Set(x, 12.5)
	g.Add(x, -2.5)
	if v := g.Get(x); v != 10 {
		t.Errorf("expected 10, got %v", v)
	}

	var sb strings.Builder
	g.Write(&sb)
	if !strings.Contains(sb.String(), `fdmsim_position_mm{axis="x",frame="nozzle"} 10`) {
		t.Errorf("unexpected output:\n%s", sb.String())
	}
}

// TestHistogram tests bucket placement and exposition
func TestHistogram(t *testing.T) {
	h := NewHistogram("fdmsim_plan_seconds", "Planning time", []float64{1, 0.1, 0.01})

	for _, v := range []float64{0.005, 0.05, 0.05, 0.5, 5} {
		h.Observe(nil, v)
	}

	snap := h.GetSnapshot(nil)
	if snap.Count != 5 {
		t.Errorf("expected count 5, got %d", snap.Count)
	}
	if snap.Sum < 5.604 || snap.Sum > 5.606 {
		t.Errorf("unexpected sum %v", snap.Sum)
	}
	want := map[float64]uint64{0.01: 1, 0.1: 3, 1: 4}
	for bound, n := range want {
		if snap.Buckets[bound] != n {
			t.Errorf("bucket le=%v: expected %d, got %d", bound, n, snap.Buckets[bound])
		}
	}

	var sb strings.Builder
	h.Write(&sb)
	out := sb.String()
	for _, line := range []string{
		`fdmsim_plan_seconds_bucket{le="0.01"} 1`,
		`fdmsim_plan_seconds_bucket{le="1"} 4`,
		`fdmsim_plan_seconds_bucket{le="+Inf"} 5`,
		`fdmsim_plan_seconds_count 5`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("missing %q in:\n%s", line, out)
		}
	}

	if empty := h.GetSnapshot(Labels{"kind": "none"}); empty.Count != 0 || len(empty.Buckets) != 0 {
		t.Errorf("expected empty snapshot, got %+v", empty)
	}
}

// TestHistogramTimer tests the timer helper
func TestHistogramTimer(t *testing.T) {
	h := NewHistogram("timer_seconds", "Timer", DefaultBuckets())
	done := h.Timer(nil)
	done()
	if snap := h.GetSnapshot(nil); snap.Count != 1 {
		t.Errorf("expected one observation, got %d", snap.Count)
	}
}

// TestExponentialBuckets tests bucket generation
func TestExponentialBuckets(t *testing.T) {
	b := ExponentialBuckets(0.001, 10, 4)
	want := []float64{0.001, 0.01, 0.1, 1}
	for i := range want {
		if diff := b[i] - want[i]; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("bucket %d: expected %v, got %v", i, want[i], b[i])
		}
	}
}

// TestRegistry tests registration and gathering
func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("a_total", "A")
	g := NewGauge("b", "B")
	r.MustRegister(c)
	r.MustRegister(g)

	if err := r.Register(NewCounter("a_total", "dup")); err == nil {
		t.Error("expected duplicate registration error")
	}
	if r.Get("b") != g {
		t.Error("Get returned the wrong metric")
	}

	c.Inc(nil)
	g.Set(nil, 3)
	out := r.Gather()
	if strings.Index(out, "a_total 1") > strings.Index(out, "b 3") {
		t.Errorf("metrics not in registration order:\n%s", out)
	}
}

// TestConcurrentUpdates tests that updates from many goroutines are not lost
func TestConcurrentUpdates(t *testing.T) {
	c := NewCounter("c_total", "C")
	h := NewHistogram("h", "H", []float64{1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc(nil)
				h.Observe(nil, 0.5)
			}
		}()
	}
	wg.Wait()

	if v := c.Get(nil); v != 8000 {
		t.Errorf("expected 8000, got %d", v)
	}
	if snap := h.GetSnapshot(nil); snap.Count != 8000 || snap.Buckets[1] != 8000 {
		t.Errorf("unexpected histogram snapshot %+v", snap)
	}
}

func TestLabelEscaping(t *testing.T) {
	l := Labels{"command": "G1 X1 ; \"wipe\"\\\n\té"}
	want := `{command="G1 X1 ; \"wipe\"\\\n` + "\té" + `"}`
	if got := l.String(); got != want {
		t.Errorf("Labels.String() = %s, want %s", got, want)
	}
}
