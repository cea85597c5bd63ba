// Package statusapi serves live simulator status over HTTP, JSON-RPC and
// WebSocket. Clients subscribed over a WebSocket receive periodic
// notify_status_update notifications.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"fdm-printer-sim/pkg/history"
	"fdm-printer-sim/pkg/log"
	"fdm-printer-sim/pkg/printer"
	"fdm-printer-sim/pkg/sim"
)

// Printer is the live printer the server reports on.
type Printer interface {
	Snapshot() printer.Status
	IncreaseSimulationSpeed()
	DecreaseSimulationSpeed()
}

// Progress reports how far the current program has run.
type Progress interface {
	Stats() sim.Stats
}

// History is the run history backing the /server/history endpoints.
type History interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
	Get(ctx context.Context, id string) (history.Run, error)
	Totals(ctx context.Context) (history.Totals, error)
}

// Status is the payload of printer.status and notify_status_update.
type Status struct {
	Printer   printer.Status `json:"printer"`
	Progress  *sim.Stats     `json:"progress,omitempty"`
	EventTime float64        `json:"eventtime"`
}

// Config holds server configuration.
type Config struct {
	// HTTP address to listen on (e.g., ":7125")
	Addr string

	Printer  Printer
	Progress Progress // optional
	History  History  // optional

	// BroadcastInterval is the notify_status_update period. Defaults to 250ms.
	BroadcastInterval time.Duration

	Logger *log.Logger
}

const defaultBroadcastInterval = 250 * time.Millisecond

// Server provides the status API.
type Server struct {
	printer  Printer
	progress Progress
	history  History
	logger   *log.Logger

	httpServer *http.Server
	addr       string
	interval   time.Duration

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*wsClient
	wsClientMu sync.RWMutex
	nextWSID   int64

	subscribed map[int64]bool
	subMu      sync.RWMutex

	running   atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
	startTime time.Time
}

// New creates a status API server.
func New(cfg Config) *Server {
	s := &Server{
		printer:    cfg.Printer,
		progress:   cfg.Progress,
		history:    cfg.History,
		logger:     cfg.Logger,
		addr:       cfg.Addr,
		interval:   cfg.BroadcastInterval,
		wsClients:  make(map[int64]*wsClient),
		subscribed: make(map[int64]bool),
		stop:       make(chan struct{}),
		startTime:  time.Now(),
	}
	if s.logger == nil {
		s.logger = log.GetLogger("statusapi")
	}
	if s.interval <= 0 {
		s.interval = defaultBroadcastInterval
	}

	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/jsonrpc", s.handleJSONRPC)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/printer/status", s.handleStatus)
	mux.HandleFunc("/printer/speed/increase", s.handleSpeed(true))
	mux.HandleFunc("/printer/speed/decrease", s.handleSpeed(false))
	mux.HandleFunc("/server/history/list", s.handleHistoryList)
	mux.HandleFunc("/server/history/job", s.handleHistoryJob)
	mux.HandleFunc("/server/history/totals", s.handleHistoryTotals)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.corsMiddleware(mux),
	}
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on l and broadcasts status until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.running.Store(true)
	go s.statusBroadcastLoop()

	s.logger.Info("Status API listening on %s", l.Addr())
	err := s.httpServer.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status api error: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status api error: %w", err)
	}
	return s.Serve(l)
}

// Shutdown closes all WebSocket clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	s.stopOnce.Do(func() { close(s.stop) })

	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.Close()
	}
	s.wsClients = make(map[int64]*wsClient)
	s.wsClientMu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Serve is active.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Status returns the current status payload.
func (s *Server) Status() Status {
	st := Status{
		Printer:   s.printer.Snapshot(),
		EventTime: time.Since(s.startTime).Seconds(),
	}
	if s.progress != nil {
		p := s.progress.Stats()
		st.Progress = &p
	}
	return st
}

// JSON-RPC 2.0 structures

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

const (
	codeParseError = -32700
	codeNotFound   = -32601
	codeServer     = -32000
)

var errMethodNotFound = errors.New("method not found")

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, codeParseError, "Parse error")
		return
	}

	result, err := s.dispatchMethod(r.Context(), req.Method, req.Params, nil)
	if err != nil {
		writeJSONRPCError(w, req.ID, rpcCode(err), err.Error())
		return
	}
	writeJSONRPCResult(w, req.ID, result)
}

// dispatchMethod routes a method call. client is nil for plain HTTP calls.
func (s *Server) dispatchMethod(ctx context.Context, method string, params map[string]any, client *wsClient) (any, error) {
	switch method {
	case "printer.status":
		return s.Status(), nil
	case "printer.speed.increase":
		s.printer.IncreaseSimulationSpeed()
		return s.Status(), nil
	case "printer.speed.decrease":
		s.printer.DecreaseSimulationSpeed()
		return s.Status(), nil
	case "printer.subscribe":
		return s.methodSubscribe(client)
	case "server.history.list":
		return s.historyList(ctx, intParam(params, "limit", 50))
	case "server.history.job":
		uid, _ := params["uid"].(string)
		return s.historyJob(ctx, uid)
	case "server.history.totals":
		return s.historyTotals(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", errMethodNotFound, method)
	}
}

func (s *Server) methodSubscribe(client *wsClient) (any, error) {
	if client == nil {
		return nil, errors.New("printer.subscribe requires a websocket connection")
	}
	s.subMu.Lock()
	s.subscribed[client.id] = true
	s.subMu.Unlock()
	return s.Status(), nil
}

func (s *Server) historyList(ctx context.Context, limit int) (any, error) {
	if s.history == nil {
		return nil, errors.New("history is not enabled")
	}
	runs, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return map[string]any{"count": len(runs), "jobs": runs}, nil
}

func (s *Server) historyJob(ctx context.Context, uid string) (any, error) {
	if s.history == nil {
		return nil, errors.New("history is not enabled")
	}
	if uid == "" {
		return nil, errors.New("missing uid parameter")
	}
	run, err := s.history.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	return map[string]any{"job": run}, nil
}

func (s *Server) historyTotals(ctx context.Context) (any, error) {
	if s.history == nil {
		return nil, errors.New("history is not enabled")
	}
	totals, err := s.history.Totals(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"job_totals": totals}, nil
}

// REST handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{"result": s.Status()})
}

func (s *Server) handleSpeed(increase bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if increase {
			s.printer.IncreaseSimulationSpeed()
		} else {
			s.printer.DecreaseSimulationSpeed()
		}
		st := s.Status()
		s.logger.Info("Simulation speed: %d", st.Printer.SimulationSpeed)
		writeJSON(w, map[string]any{"result": st})
	}
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeJSONError(w, fmt.Errorf("invalid limit %q", l), http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.writeResult(w, r, func(ctx context.Context) (any, error) { return s.historyList(ctx, limit) })
}

func (s *Server) handleHistoryJob(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	s.writeResult(w, r, func(ctx context.Context) (any, error) { return s.historyJob(ctx, uid) })
}

func (s *Server) handleHistoryTotals(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, r, s.historyTotals)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, fn func(context.Context) (any, error)) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result, err := fn(r.Context())
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"result": result})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JSON response helpers

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": jsonRPCError{Code: codeServer, Message: err.Error()},
	})
}

func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	writeJSON(w, jsonRPCResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, jsonRPCResponse{
		JSONRPC: "2.0",
		Error:   &jsonRPCError{Code: code, Message: message},
		ID:      id,
	})
}

func rpcCode(err error) int {
	if errors.Is(err, errMethodNotFound) {
		return codeNotFound
	}
	return codeServer
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// statusBroadcastLoop pushes status to subscribed clients until Shutdown.
func (s *Server) statusBroadcastLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.broadcastStatus()
		}
	}
}

func (s *Server) broadcastStatus() {
	s.subMu.RLock()
	ids := make([]int64, 0, len(s.subscribed))
	for id := range s.subscribed {
		ids = append(ids, id)
	}
	s.subMu.RUnlock()
	if len(ids) == 0 {
		return
	}

	s.wsClientMu.RLock()
	clients := make([]*wsClient, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.wsClients[id]; ok {
			clients = append(clients, c)
		}
	}
	s.wsClientMu.RUnlock()

	msg := jsonRPCNotification{
		JSONRPC: "2.0",
		Method:  "notify_status_update",
		Params:  []any{s.Status()},
	}
	for _, c := range clients {
		c.Send(msg)
	}
}
