// Structured logging tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(prefix string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(prefix)
	logger.SetWriter(&buf)
	logger.SetColorize(false)
	logger.SetLevel(DEBUG)
	return logger, &buf
}

func TestLoggerBasic(t *testing.T) {
	logger, buf := newBufferLogger("test")

	logger.Info("hello %s", "world")

	output := buf.String()
	if !strings.Contains(output, "[INFO ]") {
		t.Errorf("expected INFO level, got: %s", output)
	}
	if !strings.Contains(output, "test:") {
		t.Errorf("expected prefix 'test:', got: %s", output)
	}
	if !strings.Contains(output, "hello world") {
		t.Errorf("expected message 'hello world', got: %s", output)
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger("test")
	logger.SetLevel(INFO)

	logger.Debug("debug message")
	if buf.Len() != 0 {
		t.Errorf("expected DEBUG to be filtered, got: %s", buf.String())
	}
	if logger.Enabled(DEBUG) {
		t.Errorf("DEBUG should not be enabled at INFO level")
	}

	for _, tc := range []struct {
		log  func(string, ...interface{})
		msg  string
		name string
	}{
		{logger.Info, "info message", "INFO"},
		{logger.Warn, "warn message", "WARN"},
		{logger.Error, "error message", "ERROR"},
	} {
		buf.Reset()
		tc.log(tc.msg)
		if !strings.Contains(buf.String(), tc.msg) {
			t.Errorf("expected %s to pass, got: %s", tc.name, buf.String())
		}
	}
}

func TestLoggerJSON(t *testing.T) {
	logger, buf := newBufferLogger("gcode")
	logger.SetFormat(FormatJSON)

	logger.WithField("line", 12).Info("processing")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v, output: %s", err, buf.String())
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got: %s", entry.Level)
	}
	if entry.Logger != "gcode" {
		t.Errorf("expected logger 'gcode', got: %s", entry.Logger)
	}
	if entry.Message != "processing" {
		t.Errorf("expected message 'processing', got: %s", entry.Message)
	}
	if v, ok := entry.Fields["line"].(float64); !ok || v != 12 {
		t.Errorf("expected field line=12, got: %v", entry.Fields["line"])
	}
}

func TestLoggerWithFields(t *testing.T) {
	logger, buf := newBufferLogger("test")

	logger.WithFields(Fields{"b": 2, "a": 1}).WithField("c", "x").Info("with fields")

	output := buf.String()
	if !strings.Contains(output, "{a=1, b=2, c=x}") {
		t.Errorf("expected sorted fields, got: %s", output)
	}
}

func TestWithPrefixSharesOutput(t *testing.T) {
	parent, buf := newBufferLogger("sim")
	child := parent.WithPrefix("planner")

	parent.SetLevel(WARN)
	child.Info("hidden")
	child.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("child should follow parent level, got: %s", output)
	}
	if !strings.Contains(output, "planner: shown") {
		t.Errorf("expected child prefix in output, got: %s", output)
	}
}

func TestCallerInfo(t *testing.T) {
	logger, buf := newBufferLogger("test")
	logger.SetCaller(true)

	logger.Info("where")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("expected caller file in output, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Setenv("FDMSIM_LOG_LEVEL", "error")
	t.Setenv("FDMSIM_LOG_FORMAT", "json")

	logger, buf := newBufferLogger("env")
	ConfigureFromEnv(logger)

	logger.Warn("dropped")
	logger.Error("kept")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("WARN should be filtered at ERROR level, got: %s", output)
	}
	if !strings.HasPrefix(output, "{") {
		t.Errorf("expected JSON output, got: %s", output)
	}
}
