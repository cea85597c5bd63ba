// fdmsim runs a G-code program through the simulated FDM printer.
// It reports live status over HTTP/WebSocket, exposes Prometheus metrics,
// records frames for replay and keeps a run history.
//
// Usage:
//
//	fdmsim -gcode part.gcode [options]
//
// Options:
//
//	-config string   Simulator configuration (.yaml or printer.cfg style)
//	-gcode string    G-code program to run (required)
//	-frames int      Ticks per second, overrides the config (0 runs unpaced)
//	-headless        Run unpaced, same as -frames 0
//	-status string   Status API address (e.g. ":7125")
//	-metrics string  Metrics server address (e.g. ":9100")
//	-record string   Frame recording path (.jsonl.zst)
//	-history string  Run history database path
//	-trace           Enable debug logging
//	-logfile string  Log file path (default: stderr)
//
// Examples:
//
//	# Run a program as fast as possible
//	fdmsim -gcode cube.gcode -headless
//
//	# Run in real time with a status API and history
//	fdmsim -config sim.yaml -gcode cube.gcode -status :7125 -history ~/.fdmsim/history.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"fdm-printer-sim/pkg/config"
	simerrors "fdm-printer-sim/pkg/errors"
	"fdm-printer-sim/pkg/gcode"
	"fdm-printer-sim/pkg/geometry"
	"fdm-printer-sim/pkg/history"
	"fdm-printer-sim/pkg/log"
	"fdm-printer-sim/pkg/metrics"
	"fdm-printer-sim/pkg/printer"
	"fdm-printer-sim/pkg/recording"
	"fdm-printer-sim/pkg/sim"
	"fdm-printer-sim/pkg/statusapi"
)

func main() {
	configFile := flag.String("config", "", "Simulator configuration file")
	gcodeFile := flag.String("gcode", "", "G-code program to run (required)")
	frames := flag.Int("frames", -1, "Ticks per second, overrides the config (0 runs unpaced)")
	headless := flag.Bool("headless", false, "Run unpaced, same as -frames 0")
	statusAddr := flag.String("status", "", "Status API address")
	metricsAddr := flag.String("metrics", "", "Metrics server address")
	recordPath := flag.String("record", "", "Frame recording path")
	historyPath := flag.String("history", "", "Run history database path")
	trace := flag.Bool("trace", false, "Enable debug logging")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")

	flag.Parse()

	if *gcodeFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -gcode is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.Default()
	if *logFile != "" {
		fl, fw, err := log.NewFileLogger("fdmsim", log.RotationConfig{Filename: *logFile, Compress: true}, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer fw.Close()
		log.SetDefaultLogger(fl)
		logger = fl
	}
	if *trace {
		logger.SetLevel(log.DEBUG)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithError(err).Error("Failed to load config")
		os.Exit(1)
	}
	fileCfg := cfg
	if *headless {
		*frames = 0
	}
	applyOverrides(&cfg, *frames, *statusAddr, *metricsAddr, *recordPath, *historyPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := newState(cfg)
	if *configFile != "" {
		watchConfig(ctx, fileCfg, *configFile, state, logger)
	}

	if err := run(ctx, cfg, state, *gcodeFile, logger); err != nil {
		logger.WithError(err).Error("Simulation failed")
		os.Exit(1)
	}
}

func applyOverrides(cfg *config.SimConfig, frames int, status, metricsAddr, record, hist string) {
	if frames >= 0 {
		cfg.Simulation.FrameRate = frames
	}
	if status != "" {
		cfg.Server.StatusAddr = status
	}
	if metricsAddr != "" {
		cfg.Server.MetricsAddr = metricsAddr
	}
	if record != "" {
		cfg.Storage.RecordPath = record
	}
	if hist != "" {
		cfg.Storage.HistoryDB = hist
	}
}

// watchConfig applies live config changes to state until ctx is done.
func watchConfig(ctx context.Context, cfg config.SimConfig, path string, state *printer.State, logger *log.Logger) {
	rm := config.NewReloadManager(cfg, path)
	prev := cfg
	rm.SetCallbacks(func(res config.ReloadResult) {
		applyLive(state, prev, res.Config)
		prev = res.Config
		logger.WithField("sections", strings.Join(res.Changed, ",")).Info("Config reloaded")
		if len(res.Restart) > 0 {
			logger.Warn("Changes to %s apply on the next run", strings.Join(res.Restart, ", "))
		}
	}, func(err error) {
		logger.WithError(err).Warn("Config reload failed")
	})
	go rm.Watch(ctx, time.Second)
}

// applyLive pushes only the live options that differ between prev and next
// into state. A new cap alone keeps the current speed, clamped.
func applyLive(state *printer.State, prev, next config.SimConfig) {
	if next.Printer.ExtrusionSpeed != prev.Printer.ExtrusionSpeed {
		state.SetExtrusionSpeed(next.Printer.ExtrusionSpeed)
	}
	ps, ns := prev.Simulation, next.Simulation
	if ns.SimulationSpeed == ps.SimulationSpeed && ns.MaxSimulationSpeed == ps.MaxSimulationSpeed {
		return
	}
	speed := state.SimulationSpeed()
	if ns.SimulationSpeed != ps.SimulationSpeed {
		speed = ns.SimulationSpeed
	}
	state.SetSimulationSpeed(speed, ns.MaxSimulationSpeed)
}

func newState(cfg config.SimConfig) *printer.State {
	opts := []printer.Option{
		printer.WithSimulationSpeed(cfg.Simulation.SimulationSpeed),
		printer.WithExtrusionSpeed(cfg.Printer.ExtrusionSpeed),
	}
	if cfg.Simulation.MaxSimulationSpeed > 0 {
		opts = append(opts, printer.WithMaxSimulationSpeed(cfg.Simulation.MaxSimulationSpeed))
	}
	return printer.New(opts...)
}

func run(ctx context.Context, cfg config.SimConfig, state *printer.State, path string, logger *log.Logger) error {
	program, err := gcode.LoadProgram(path)
	if err != nil {
		return err
	}

	simulator := sim.New(state, program, sim.Config{
		TickRate: cfg.Simulation.TickRate,
		Plate:    geometry.NewPlate(cfg.Printer.Dimension, cfg.Printer.XOffset),
		Head:     geometry.NewHead(cfg.Printer.Dimension, cfg.Printer.XOffset),
		Logger:   log.GetLogger("sim"),
	})

	var store *history.Store
	if cfg.Storage.HistoryDB != "" {
		store, err = history.Open(cfg.Storage.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	simMetrics := metrics.NewSimMetrics()
	simulator.AddObserver(simMetrics)

	var rec *recording.Writer
	if cfg.Storage.RecordPath != "" {
		rec, err = recording.Create(cfg.Storage.RecordPath)
		if err != nil {
			return err
		}
		simulator.AddObserver(rec)
	}

	var shutdowns []func(context.Context) error
	if cfg.Server.MetricsAddr != "" {
		mcfg := metrics.DefaultServerConfig()
		mcfg.Address = cfg.Server.MetricsAddr
		ms := metrics.NewServer(simMetrics, mcfg)
		go serve("metrics", ms.Start, logger)
		shutdowns = append(shutdowns, ms.Shutdown)
		logger.Info("Metrics server listening on %s", mcfg.Address)
	}
	if cfg.Server.StatusAddr != "" {
		api := statusapi.New(statusapi.Config{
			Addr:              cfg.Server.StatusAddr,
			Printer:           state,
			Progress:          simulator,
			BroadcastInterval: cfg.Server.BroadcastInterval,
			Logger:            log.GetLogger("statusapi"),
			History:           historySource(store),
		})
		go serve("status api", api.Start, logger)
		shutdowns = append(shutdowns, api.Shutdown)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range shutdowns {
			if err := fn(sctx); err != nil {
				logger.WithError(err).Warn("Server shutdown")
			}
		}
	}()

	var runID string
	if store != nil {
		r, err := store.Start(ctx, path)
		if err != nil {
			return err
		}
		runID = r.ID
	}

	start := time.Now()
	runErr := simulator.Run(ctx, cfg.Simulation.FrameRate)
	elapsed := time.Since(start)

	if rec != nil {
		if err := rec.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}

	stats := simulator.Stats()
	if store != nil {
		res := history.Result{
			Status:   runStatus(runErr),
			Commands: stats.Planned,
			Ticks:    stats.TicksConsumed,
			Filament: state.TotalExtruded(),
			Err:      runErr,
		}
		if err := store.Finish(context.Background(), runID, res); err != nil {
			logger.WithError(err).Warn("Failed to record run")
		}
	}

	printSummary(logger, path, stats, state.Snapshot(), elapsed, cfg.Storage.RecordPath)

	if errors.Is(runErr, context.Canceled) {
		logger.Warn("Simulation cancelled")
		return nil
	}
	if runErr != nil {
		logger.WithField("code", simerrors.CodeOf(runErr)).Error("Simulation halted")
	}
	return runErr
}

// historySource avoids handing the status API a typed nil store.
func historySource(store *history.Store) statusapi.History {
	if store == nil {
		return nil
	}
	return store
}

func serve(name string, fn func() error, logger *log.Logger) {
	if err := fn(); err != nil {
		logger.WithError(err).Error("%s stopped", name)
	}
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return history.StatusCompleted
	case errors.Is(err, context.Canceled):
		return history.StatusCancelled
	default:
		return history.StatusError
	}
}

func printSummary(logger *log.Logger, path string, stats sim.Stats, status printer.Status, elapsed time.Duration, record string) {
	fields := log.Fields{
		"program":  path,
		"commands": fmt.Sprintf("%s/%s", humanize.Comma(int64(stats.Planned)), humanize.Comma(int64(stats.Commands))),
		"ticks":    humanize.Comma(int64(stats.TicksConsumed)),
		"segments": stats.Segments,
		"filament": humanize.FtoaWithDigits(status.TotalExtruded, 5),
		"elapsed":  elapsed.Round(time.Millisecond).String(),
	}
	if record != "" {
		if fi, err := os.Stat(record); err == nil {
			fields["recording"] = humanize.Bytes(uint64(fi.Size()))
		}
	}
	logger.WithFields(fields).Info("Run finished")

	n := status.NozzlePosition
	logger.Info("Nozzle at X: %.3f | Y: %.3f | Z: %.3f", n.X, n.Y, n.Z)
}
