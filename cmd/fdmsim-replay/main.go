// fdmsim-replay reads a frame recording written by fdmsim and prints a
// per-layer summary of the run.
//
// Usage:
//
//	fdmsim-replay -record run.jsonl.zst [-json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"fdm-printer-sim/pkg/log"
	"fdm-printer-sim/pkg/motion"
	"fdm-printer-sim/pkg/recording"
	"fdm-printer-sim/pkg/sim"
)

// Layer aggregates the frames spent at one nozzle height.
type Layer struct {
	Z         float64 `json:"z"`
	Ticks     int     `json:"ticks"`
	Extruding int     `json:"extruding_ticks"`
	Filament  float64 `json:"filament"`
}

// Summary is the replay report.
type Summary struct {
	Frames         uint64      `json:"frames"`
	Layers         []Layer     `json:"layers"`
	TotalExtruded  float64     `json:"total_extruded"`
	ModelPosition  motion.Vec3 `json:"model_position"`
	NozzlePosition motion.Vec3 `json:"nozzle_position"`
}

func main() {
	recordPath := flag.String("record", "", "Frame recording to replay (required)")
	asJSON := flag.Bool("json", false, "Print the summary as JSON")
	flag.Parse()

	logger := log.GetLogger("replay")
	if *recordPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -record is required\n")
		flag.Usage()
		os.Exit(1)
	}

	r, err := recording.Open(*recordPath)
	if err != nil {
		logger.WithError(err).Error("Failed to open recording")
		os.Exit(1)
	}
	defer r.Close()

	sum, err := summarize(r)
	if err != nil {
		logger.WithError(err).Error("Failed to read recording")
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			logger.WithError(err).Error("Failed to write summary")
			os.Exit(1)
		}
		return
	}
	printSummary(os.Stdout, sum)
}

// summarize folds every frame into per-layer counters. A new layer starts
// whenever the nozzle Z changes.
func summarize(r *recording.Reader) (Summary, error) {
	var (
		sum       Summary
		lastTotal float64
	)
	err := r.Each(func(f sim.Frame) error {
		sum.Frames++
		z := f.Status.NozzlePosition.Z
		if n := len(sum.Layers); n == 0 || sum.Layers[n-1].Z != z {
			sum.Layers = append(sum.Layers, Layer{Z: z})
		}
		layer := &sum.Layers[len(sum.Layers)-1]
		layer.Ticks++
		if f.Tick.ExtrudeAll && !f.Tick.Sentinel {
			layer.Extruding++
		}
		layer.Filament += f.Status.TotalExtruded - lastTotal
		lastTotal = f.Status.TotalExtruded

		sum.TotalExtruded = f.Status.TotalExtruded
		sum.ModelPosition = f.Status.ModelPosition
		sum.NozzlePosition = f.Status.NozzlePosition
		return nil
	})
	return sum, err
}

func printSummary(w io.Writer, sum Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "layer\tz\tticks\textruding\tfilament\t")
	for i, l := range sum.Layers {
		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%s\t%s\t\n", i, l.Z,
			humanize.Comma(int64(l.Ticks)), humanize.Comma(int64(l.Extruding)),
			humanize.FtoaWithDigits(l.Filament, 5))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%s frames, %d layers, %s filament\n",
		humanize.Comma(int64(sum.Frames)), len(sum.Layers), humanize.FtoaWithDigits(sum.TotalExtruded, 5))
	m, n := sum.ModelPosition, sum.NozzlePosition
	fmt.Fprintf(w, "Model  X: %.3f | Y: %.3f | Z: %.3f\n", m.X, m.Y, m.Z)
	fmt.Fprintf(w, "Nozzle X: %.3f | Y: %.3f | Z: %.3f\n", n.X, n.Y, n.Z)
}
