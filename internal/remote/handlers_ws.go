package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/taote/taote/internal/session"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsCallTimeout  = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

// Request is a client message on the control socket.
type Request struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Window int    `json:"window,omitempty"`
}

// Response is a server message on the control socket.
type Response struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Event    string            `json:"event,omitempty"`
	OK       bool              `json:"ok,omitempty"`
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Time     time.Time         `json:"time"`
}

type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConnWriter) writeJSON(v Response) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v.Time.IsZero() {
		v.Time = time.Now().UTC()
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteJSON(v)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		remoteLog.Warn("ws_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	out := &wsConnWriter{conn: conn}
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.Burst)
	remoteLog.Debug("ws_connected", slog.String("remote", r.RemoteAddr))

	if err := out.writeJSON(Response{Type: "status", Event: "connected"}); err != nil {
		return
	}

	ctx := r.Context()
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				remoteLog.Debug("ws_read_failed", slog.String("error", err.Error()))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			_ = out.writeJSON(Response{Type: "error", Code: "INVALID_MESSAGE", Message: "invalid json"})
			continue
		}
		if !limiter.Allow() {
			_ = out.writeJSON(Response{Type: "error", ID: req.ID, Code: "RATE_LIMITED", Message: "too many requests"})
			continue
		}

		var resp Response
		switch req.Type {
		case "ping":
			resp = Response{Type: "status", ID: req.ID, Event: "pong"}
		case "snapshot", "list":
			resp = s.snapshotResponse(ctx, req)
		case "command":
			resp = s.commandResponse(ctx, req)
		default:
			resp = Response{Type: "error", ID: req.ID, Code: "UNKNOWN_TYPE", Message: "unknown message type"}
		}
		if err := out.writeJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) snapshotResponse(ctx context.Context, req Request) Response {
	cctx, cancel := context.WithTimeout(ctx, wsCallTimeout)
	defer cancel()
	snap, err := s.ctrl.Snapshot(cctx)
	if err != nil {
		return Response{Type: "error", ID: req.ID, Code: "UNAVAILABLE", Message: err.Error()}
	}
	return Response{Type: "snapshot", ID: req.ID, OK: true, Snapshot: &snap}
}

func (s *Server) commandResponse(ctx context.Context, req Request) Response {
	if req.Name == "" {
		return Response{Type: "error", ID: req.ID, Code: "INVALID_COMMAND", Message: "command name required"}
	}
	cctx, cancel := context.WithTimeout(ctx, wsCallTimeout)
	defer cancel()
	snap, err := s.ctrl.Command(cctx, req.Window, req.Name)
	switch {
	case errors.Is(err, ErrCommandRejected):
		return Response{Type: "error", ID: req.ID, Code: "REJECTED", Message: "unknown command or window", Snapshot: &snap}
	case err != nil:
		return Response{Type: "error", ID: req.ID, Code: "UNAVAILABLE", Message: err.Error()}
	}
	remoteLog.Info("remote_command", slog.String("name", req.Name), slog.Int("window", req.Window))
	return Response{Type: "result", ID: req.ID, OK: true, Snapshot: &snap}
}
