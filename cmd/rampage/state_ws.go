package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rampage/internal/cue"
	"rampage/internal/flow"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// Dashboards connect to /ws/state. On connect they get "state_init" with a
// full StateSnapshot; after that, one message per reducer broadcast.
//
// Constraints:
//   - DaemonState stays daemon-owned. The initial snapshot is requested
//     through the event loop like any other event.
//   - Slow clients are disconnected when their send buffer fills.
//   - Messages are JSON text frames: {type, ts, data}.
//
// ============================================================================

type wsPhaseData struct {
	Phase cue.Phase `json:"phase"`
}

type wsMonsterData struct {
	Monster cue.Monster `json:"monster"`
}

type wsIntroData struct {
	IntroPlayed bool `json:"intro_played"`
}

type wsScoreData struct {
	Score        int   `json:"score"`
	RecentPoints int64 `json:"recent_points"`
}

type wsChaosData struct {
	Chaos cue.ChaosLevel `json:"chaos"`
}

type wsCameraData struct {
	Camera   int           `json:"camera"`
	Enabled  bool          `json:"enabled"`
	WarmedUp bool          `json:"warmed_up"`
	Tier     flow.Severity `json:"tier"`
}

type wsParamsData struct {
	Params map[string]float64 `json:"params"`
}

// wsOutboundEvent is a typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

// envelope is the wire format for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

const (
	wsTypeStateInit      = "state_init"
	wsTypePhaseChanged   = "phase_changed"
	wsTypeMonsterChanged = "monster_changed"
	wsTypeIntroChanged   = "intro_changed"
	wsTypeScoreChanged   = "score_changed"
	wsTypeChaosChanged   = "chaos_changed"
	wsTypeCameraChanged  = "camera_changed"
	wsTypeParamsChanged  = "params_changed"
)

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int

	// BroadcastBuf is the hub inbound queue size.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Debug("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("ws hub stopping")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	// Closing send tells writePump to exit.
	safeCloseChan(c.send)

	h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // close of closed channel
	}()
	close(ch)
}

// BroadcastBytes enqueues a serialized frame. It drops the frame if the hub
// queue is full.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsScoreCoalesceWindow bounds how often score_changed goes out. Score can
// move on every tick.
const wsScoreCoalesceWindow = 200 * time.Millisecond

func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Debug("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Debug("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump drains the send queue and pings. It exits on write error or when
// send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards inbound frames so control frames are handled and
// disconnects noticed, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

type StateServer struct {
	logger *slog.Logger
	hub    *Hub

	// Snapshot requests go through the event loop.
	events chan<- Event
}

func NewStateServer(logger *slog.Logger, events chan<- Event, cfg HubConfig) *StateServer {
	return &StateServer{
		logger: logger,
		hub:    NewHub(logger, cfg),
		events: events,
	}
}

func (s *StateServer) Hub() *Hub { return s.hub }

// Register installs the WS handler on mux.
func (s *StateServer) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	// Dashboards are served from other origins on the installation LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades, registers the client and sends state_init.
func (s *StateServer) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// Pumps must outlive the request context, which net/http cancels when
	// this handler returns. The hub and socket errors end them.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	snap, ok := s.requestSnapshot(r.Context())
	if !ok {
		return
	}

	now := time.Now().UTC()
	initMsg, err := json.Marshal(envelope{Type: wsTypeStateInit, Ts: &now, Data: snap})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	select {
	case client.send <- initMsg:
	default:
		s.hub.unregister <- client
	}
}

// requestSnapshot asks the daemon loop for a snapshot and waits up to
// snapshotWait for it.
func (s *StateServer) requestSnapshot(ctx context.Context) (StateSnapshot, bool) {
	if s.events == nil {
		return StateSnapshot{}, false
	}
	reply := make(chan StateSnapshot, 1)

	waitCtx, cancel := context.WithTimeout(ctx, snapshotWait)
	defer cancel()

	select {
	case <-waitCtx.Done():
		return StateSnapshot{}, false
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-waitCtx.Done():
		if !errors.Is(waitCtx.Err(), context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", waitCtx.Err())
		}
		return StateSnapshot{}, false
	case snap := <-reply:
		return snap, true
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster marshals reducer broadcasts and fans them out through hub.
// score_changed is rate limited, latest wins; everything else goes out
// immediately, after any pending score.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pendingScore *wsOutboundEvent
	var scoreTimer *time.Timer
	var scoreTimerCh <-chan time.Time

	emit := func(ev wsOutboundEvent) {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msg, err := json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPendingScore := func() {
		if pendingScore == nil {
			return
		}
		emit(*pendingScore)
		pendingScore = nil
	}

	stopScoreTimer := func() {
		if scoreTimer != nil {
			scoreTimer.Stop()
		}
		scoreTimer = nil
		scoreTimerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPendingScore()
			stopScoreTimer()
			return

		case <-scoreTimerCh:
			flushPendingScore()
			stopScoreTimer()

		case b, ok := <-src:
			if !ok {
				flushPendingScore()
				stopScoreTimer()
				logger.Debug("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			// The timer is not reset per update, so a steady stream still
			// flushes once per window.
			if ev.Type == wsTypeScoreChanged {
				pendingScore = &ev
				if scoreTimer == nil {
					scoreTimer = time.NewTimer(wsScoreCoalesceWindow)
					scoreTimerCh = scoreTimer.C
				}
				continue
			}

			flushPendingScore()
			stopScoreTimer()
			emit(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastPhaseChanged:
		return wsOutboundEvent{Type: wsTypePhaseChanged, Data: wsPhaseData{Phase: ev.Phase}, At: ev.At}, true
	case BroadcastMonsterChanged:
		return wsOutboundEvent{Type: wsTypeMonsterChanged, Data: wsMonsterData{Monster: ev.Monster}, At: ev.At}, true
	case BroadcastIntroChanged:
		return wsOutboundEvent{Type: wsTypeIntroChanged, Data: wsIntroData{IntroPlayed: ev.IntroPlayed}, At: ev.At}, true
	case BroadcastScoreChanged:
		return wsOutboundEvent{
			Type: wsTypeScoreChanged,
			Data: wsScoreData{Score: ev.Score, RecentPoints: ev.RecentPoints},
			At:   ev.At,
		}, true
	case BroadcastChaosChanged:
		return wsOutboundEvent{Type: wsTypeChaosChanged, Data: wsChaosData{Chaos: ev.Chaos}, At: ev.At}, true
	case BroadcastCameraChanged:
		return wsOutboundEvent{
			Type: wsTypeCameraChanged,
			Data: wsCameraData{
				Camera:   ev.Camera.Camera,
				Enabled:  ev.Camera.Enabled,
				WarmedUp: ev.Camera.WarmedUp,
				Tier:     ev.Camera.Tier,
			},
			At: ev.At,
		}, true
	case BroadcastParamsChanged:
		return wsOutboundEvent{Type: wsTypeParamsChanged, Data: wsParamsData{Params: ev.Params}, At: ev.At}, true
	default:
		return wsOutboundEvent{}, false
	}
}
