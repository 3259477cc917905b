package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// CommandSink applies keep-alive and withdrawal commands sent over the feed.
type CommandSink interface {
	Refresh(id string) error
	Remove(id string) error
}

// Handler serves the feed over a websocket. Each connection is one
// subscriber; the connection is dropped, and the subscriber removed, as soon
// as a write fails.
type Handler struct {
	pub      *Publisher
	sink     CommandSink
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler creates the websocket endpoint. sink may be nil, in which case
// inbound messages are discarded.
func NewHandler(pub *Publisher, sink CommandSink, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		pub:  pub,
		sink: sink,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log.With(slog.String("component", "feed-handler")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade failed", slog.String("remote", r.RemoteAddr), slog.Any("error", err))
		return
	}
	defer conn.Close()

	sub := h.pub.Subscribe()
	defer h.pub.Unsubscribe(sub)

	h.log.Info("WebSocket connection established", slog.String("remote", r.RemoteAddr), slog.String("subscriber", sub.ID()))

	readerDone := make(chan struct{})
	go h.readPump(conn, readerDone)

	h.writePump(conn, sub, readerDone)
	h.log.Info("WebSocket connection closed", slog.String("remote", r.RemoteAddr), slog.String("subscriber", sub.ID()))
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscription, readerDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.log.Debug("Feed write failed, dropping subscriber", slog.String("subscriber", sub.ID()), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
				time.Now().Add(writeWait))
			return
		case <-readerDone:
			return
		}
	}
}

func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("WebSocket read error", slog.Any("error", err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.apply(message)
	}
}

func (h *Handler) apply(message []byte) {
	if h.sink == nil {
		return
	}
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil || cmd.ID == "" {
		return
	}

	var err error
	switch cmd.Action {
	case ActionRefresh:
		err = h.sink.Refresh(cmd.ID)
	case ActionWithdraw:
		err = h.sink.Remove(cmd.ID)
	default:
		h.log.Debug("Ignoring unknown feed command", slog.String("action", cmd.Action))
		return
	}
	if err != nil {
		h.log.Debug("Feed command failed", slog.String("action", cmd.Action), slog.String("id", cmd.ID), slog.Any("error", err))
	}
}
