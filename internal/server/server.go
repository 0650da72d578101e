// Package server serves the live altitude view and pushes pipeline events
// to WebSocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/pipeline"
)

// Server broadcasts pipeline events to WebSocket clients.
type Server struct {
	addr    string
	session string
	webFS   fs.FS
	metrics http.Handler
	log     *zap.SugaredLogger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	stateMu sync.RWMutex
	state   Status
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Config holds live view settings.
type Config struct {
	ListenAddr string
	Session    string
	Metrics    http.Handler // served at /metrics when set
}

// Status is the latest known state, served at /api/status and sent to
// each client on connect.
type Status struct {
	Session   string             `json:"session"`
	Phase     string             `json:"phase"` // "calibrating" or "flight"
	Collected int                `json:"collected"`
	Target    int                `json:"target"`
	Baseline  *altitude.Baseline `json:"baseline,omitempty"`
	Last      *altitude.Report   `json:"last,omitempty"`
	Warnings  map[string]int     `json:"warnings"`
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Type     string             `json:"type"` // status, progress, baseline, reading, warning
	Status   *Status            `json:"status,omitempty"`
	Progress *Progress          `json:"progress,omitempty"`
	Baseline *altitude.Baseline `json:"baseline,omitempty"`
	Report   *altitude.Report   `json:"report,omitempty"`
	Warning  string             `json:"warning,omitempty"`
	Stamp    int64              `json:"stamp"` // Unix ms
}

// Progress is one calibration step.
type Progress struct {
	Index      int     `json:"index"`
	Target     int     `json:"target"`
	Satellites int     `json:"satellites"`
	Altitude   float64 `json:"altitude"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// New creates a new Server.
func New(cfg Config, webFS fs.FS, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		addr:    cfg.ListenAddr,
		session: cfg.Session,
		webFS:   webFS,
		metrics: cfg.Metrics,
		log:     log.With("component", "ws"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		state: Status{
			Session:  cfg.Session,
			Phase:    "calibrating",
			Warnings: make(map[string]int),
		},
	}
}

// Handler returns the HTTP routes of the live view.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		s.closeClients()
	}()

	s.log.Infof("listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handle records the event in the status snapshot and broadcasts it.
func (s *Server) Handle(ev pipeline.Event) {
	frame := Frame{Stamp: time.Now().UnixMilli()}

	s.stateMu.Lock()
	switch ev := ev.(type) {
	case pipeline.CalibrationStarted:
		s.state.Target = ev.Target
		s.stateMu.Unlock()
		return
	case pipeline.CalibrationProgress:
		s.state.Collected = ev.Index
		s.state.Target = ev.Target
		frame.Type = "progress"
		frame.Progress = &Progress{
			Index:      ev.Index,
			Target:     ev.Target,
			Satellites: ev.Record.Satellites,
			Altitude:   ev.Record.Altitude,
			Latitude:   ev.Record.Latitude,
			Longitude:  ev.Record.Longitude,
		}
	case pipeline.BaselineReady:
		b := ev.Baseline
		s.state.Phase = "flight"
		s.state.Baseline = &b
		frame.Type = "baseline"
		frame.Baseline = &b
	case pipeline.Reading:
		r := ev.Report
		s.state.Last = &r
		frame.Type = "reading"
		frame.Report = &r
	case pipeline.Warning:
		s.state.Warnings[ev.Kind.String()]++
		if ev.Kind == pipeline.KindNotGGA {
			s.stateMu.Unlock()
			return
		}
		frame.Type = "warning"
		frame.Warning = ev.Kind.String()
	default:
		s.stateMu.Unlock()
		return
	}
	s.stateMu.Unlock()

	s.broadcast(frame)
}

// Snapshot returns a copy of the current status.
func (s *Server) Snapshot() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	st := s.state
	st.Warnings = make(map[string]int, len(s.state.Warnings))
	for k, v := range s.state.Warnings {
		st.Warnings[k] = v
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Send current status before joining the broadcast set
	st := s.Snapshot()
	if data, err := json.Marshal(Frame{Type: "status", Status: &st, Stamp: time.Now().UnixMilli()}); err == nil {
		client.send <- data
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Infof("client connected (%d total)", n)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive, detects disconnect)
	go func() {
		defer s.removeClient(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	_, ok := s.clients[c]
	if ok {
		delete(s.clients, c)
		close(c.send)
	}
	n := len(s.clients)
	s.clientsMu.Unlock()
	if ok {
		s.log.Infof("client disconnected (%d total)", n)
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
