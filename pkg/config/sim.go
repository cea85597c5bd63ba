package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SimConfig is the complete simulator configuration.
type SimConfig struct {
	Printer    PrinterConfig    `yaml:"printer"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
}

// PrinterConfig describes the printer model.
type PrinterConfig struct {
	// Dimension scales every printer part; 37.5 gives a 180mm plate.
	Dimension float64 `yaml:"dimension"`
	// XOffset shifts the whole printer relative to the camera.
	XOffset float64 `yaml:"x_offset"`
	// ExtrusionSpeed is the filament amount added per extruding tick.
	ExtrusionSpeed float64 `yaml:"extrusion_speed"`
}

// MaxFrameRate bounds SimulationConfig.FrameRate.
const MaxFrameRate = 1_000_000

// SimulationConfig controls the motion pipeline.
type SimulationConfig struct {
	// TickRate is the time per render tick, in milliseconds.
	TickRate float64 `yaml:"tick_rate"`
	// FrameRate is the number of ticks consumed per second; 0 runs unpaced.
	FrameRate int `yaml:"frame_rate"`
	// SimulationSpeed is the initial speed multiplier.
	SimulationSpeed int `yaml:"simulation_speed"`
	// MaxSimulationSpeed caps IncreaseSimulationSpeed; 0 means no cap.
	MaxSimulationSpeed int `yaml:"max_simulation_speed"`
}

// ServerConfig holds listen addresses for the status and metrics servers.
type ServerConfig struct {
	StatusAddr        string        `yaml:"status_addr"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// StorageConfig locates the frame recording and the run history database.
type StorageConfig struct {
	RecordPath string `yaml:"record_path"`
	HistoryDB  string `yaml:"history_db"`
}

// Defaults returns the built-in configuration.
func Defaults() SimConfig {
	const dimension = 37.5
	return SimConfig{
		Printer: PrinterConfig{
			Dimension:      dimension,
			XOffset:        dimension * 2.6,
			ExtrusionSpeed: 0.05,
		},
		Simulation: SimulationConfig{
			TickRate:        16,
			FrameRate:       60,
			SimulationSpeed: 1,
		},
		Server: ServerConfig{
			BroadcastInterval: 250 * time.Millisecond,
		},
	}
}

// Load reads a configuration file. The format is chosen by extension:
// .yaml/.yml use YAML, anything else is parsed as printer.cfg style INI.
// An empty path returns the defaults.
func Load(path string) (SimConfig, error) {
	if path == "" {
		return Defaults(), nil
	}

	var (
		cfg SimConfig
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		var c *Config
		c, err = LoadINI(path)
		if err == nil {
			cfg, err = FromINI(c)
		}
	}
	if err != nil {
		return SimConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return SimConfig{}, err
	}
	return cfg, nil
}

func loadYAML(path string) (SimConfig, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// FromINI builds a SimConfig from parsed INI sections, starting from the
// defaults. Unknown options are reported as errors.
func FromINI(c *Config) (SimConfig, error) {
	cfg := Defaults()
	var err error

	printer := c.GetSectionOptional("printer")
	if cfg.Printer.Dimension, err = printer.GetFloat("dimension", cfg.Printer.Dimension); err != nil {
		return cfg, err
	}
	// x_offset follows the dimension unless set explicitly
	if cfg.Printer.XOffset, err = printer.GetFloat("x_offset", cfg.Printer.Dimension*2.6); err != nil {
		return cfg, err
	}
	if cfg.Printer.ExtrusionSpeed, err = printer.GetFloat("extrusion_speed", cfg.Printer.ExtrusionSpeed); err != nil {
		return cfg, err
	}

	sim := c.GetSectionOptional("simulation")
	if cfg.Simulation.TickRate, err = sim.GetFloat("tick_rate", cfg.Simulation.TickRate); err != nil {
		return cfg, err
	}
	if cfg.Simulation.FrameRate, err = sim.GetInt("frame_rate", cfg.Simulation.FrameRate); err != nil {
		return cfg, err
	}
	if cfg.Simulation.SimulationSpeed, err = sim.GetInt("simulation_speed", cfg.Simulation.SimulationSpeed); err != nil {
		return cfg, err
	}
	if cfg.Simulation.MaxSimulationSpeed, err = sim.GetInt("max_simulation_speed", 0); err != nil {
		return cfg, err
	}

	server := c.GetSectionOptional("server")
	if cfg.Server.StatusAddr, err = server.Get("status_addr", ""); err != nil {
		return cfg, err
	}
	if cfg.Server.MetricsAddr, err = server.Get("metrics_addr", ""); err != nil {
		return cfg, err
	}
	if cfg.Server.BroadcastInterval, err = server.GetDuration("broadcast_interval", cfg.Server.BroadcastInterval); err != nil {
		return cfg, err
	}

	storage := c.GetSectionOptional("storage")
	if cfg.Storage.RecordPath, err = storage.Get("record_path", ""); err != nil {
		return cfg, err
	}
	if cfg.Storage.HistoryDB, err = storage.Get("history_db", ""); err != nil {
		return cfg, err
	}

	if err := c.CheckUnusedOptions(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c SimConfig) Validate() error {
	if c.Printer.Dimension <= 0 {
		return ErrOutOfRange("printer", "dimension", c.Printer.Dimension, "must be above 0")
	}
	if c.Printer.ExtrusionSpeed < 0 {
		return ErrOutOfRange("printer", "extrusion_speed", c.Printer.ExtrusionSpeed, "must not be negative")
	}
	if c.Simulation.TickRate <= 0 {
		return ErrOutOfRange("simulation", "tick_rate", c.Simulation.TickRate, "must be above 0")
	}
	if c.Simulation.FrameRate < 0 {
		return ErrOutOfRange("simulation", "frame_rate", float64(c.Simulation.FrameRate), "must not be negative")
	}
	if c.Simulation.FrameRate > MaxFrameRate {
		return ErrOutOfRange("simulation", "frame_rate", float64(c.Simulation.FrameRate), fmt.Sprintf("must not exceed %d", MaxFrameRate))
	}
	if c.Simulation.SimulationSpeed < 1 {
		return ErrOutOfRange("simulation", "simulation_speed", float64(c.Simulation.SimulationSpeed), "must have minimum of 1")
	}
	if m := c.Simulation.MaxSimulationSpeed; m != 0 && m < c.Simulation.SimulationSpeed {
		return ErrOutOfRange("simulation", "max_simulation_speed", float64(m), "must not be below simulation_speed")
	}
	if c.Server.BroadcastInterval < 0 {
		return ErrOutOfRange("server", "broadcast_interval", c.Server.BroadcastInterval.Seconds(), "must not be negative")
	}
	return nil
}

// BedLevel is the plate height in model space.
func (p PrinterConfig) BedLevel() float64 {
	return -p.Dimension * 4.5
}
