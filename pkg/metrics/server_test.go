// Unit tests for the metrics HTTP server
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fdm-printer-sim/pkg/gcode"
	"fdm-printer-sim/pkg/motion"
	"fdm-printer-sim/pkg/printer"
	"fdm-printer-sim/pkg/sim"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Address != ":9100" || cfg.ReadTimeout != 10*time.Second || cfg.WriteTimeout != 10*time.Second {
		t.Errorf("unexpected default config %+v", cfg)
	}
}

// TestHandleMetrics tests the /metrics endpoint with simulator metrics
func TestHandleMetrics(t *testing.T) {
	m := NewSimMetrics()
	m.OnPlan(sim.PlanEvent{Plan: printer.Plan{Kind: gcode.MovePlane, Ticks: 7, MovementRate: 2}})
	m.OnFrame(sim.Frame{Status: printer.Status{
		NozzlePosition:  motion.Vec3{X: 10, Y: 5},
		SimulationSpeed: 1,
		TotalExtruded:   0.25,
	}})

	server := NewServer(m, DefaultServerConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{
		`fdmsim_commands_total{kind="plane"} 1`,
		`fdmsim_ticks_planned_total 7`,
		`fdmsim_ticks_consumed_total 1`,
		`fdmsim_position_mm{axis="x",frame="nozzle"} 10`,
		`fdmsim_filament_extruded 0.25`,
		`fdmsim_movement_rate 2`,
		`# TYPE fdmsim_plan_seconds histogram`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in body:\n%s", want, body)
		}
	}
}

func TestHandleMetricsHead(t *testing.T) {
	server := NewServer(NewSimMetrics(), DefaultServerConfig())
	req := httptest.NewRequest(http.MethodHead, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Error("HEAD response should have no body")
	}
	if w.Header().Get("Content-Length") == "" {
		t.Error("HEAD response should carry Content-Length")
	}
}

func TestHandleMetricsMethodNotAllowed(t *testing.T) {
	server := NewServer(NewSimMetrics(), DefaultServerConfig())
	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	server := NewServer(NewSimMetrics(), DefaultServerConfig())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "OK\n" {
		t.Errorf("unexpected health response %d %q", w.Code, w.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Username = "admin"
	cfg.Password = "secret"
	server := NewServer(NewSimMetrics(), cfg)

	cases := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "secret", true, http.StatusUnauthorized},
		{"valid", "admin", "secret", true, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tc.setAuth {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, w.Code)
			}
			if tc.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}

	// Health stays open
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health should not require auth, got %d", w.Code)
	}
}

func TestServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := NewServer(NewSimMetrics(), DefaultServerConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(l) }()

	url := "http://" + l.Addr().String() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK\n" {
		t.Errorf("unexpected body %q", body)
	}
	if !server.IsRunning() || server.Uptime() <= 0 {
		t.Error("server should report running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Serve returned %v", err)
	}
	if server.IsRunning() {
		t.Error("server should not be running after Shutdown")
	}
}
