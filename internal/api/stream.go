package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer    = 256
	streamPing      = 30 * time.Second
	streamWriteWait = 10 * time.Second
	streamReadWait  = 60 * time.Second

	// FrameSubscribed первый кадр потока: подписка на шину установлена
	FrameSubscribed = "subscribed"
)

// StreamFrame кадр потока событий консоли
type StreamFrame struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Source    string          `json:"source,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func frameOf(ev *eventbus.Envelope) StreamFrame {
	f := StreamFrame{
		ID:        ev.ID,
		Type:      ev.EventType,
		Source:    ev.Source,
		Timestamp: ev.Timestamp,
	}
	if json.Valid(ev.Payload) {
		f.Payload = ev.Payload
	}
	return f
}

// parseTypes разбирает ?types=a,b,c; пусто = все события
func parseTypes(raw string) []string {
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// handleStream транслирует события шины в WebSocket.
// Клиент только читает; входящие сообщения игнорируются.
func (c *Console) handleStream(ctx *gin.Context) {
	if c.bus == nil {
		ctx.JSON(http.StatusServiceUnavailable, GenericResponse{Message: "Шина событий не подключена"})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logging.Debug("Консоль: upgrade потока: %v", err)
		return
	}
	defer conn.Close()

	streamCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := make(chan []byte, streamBuffer)
	var dropped atomic.Uint64

	filter := eventbus.Filter{Types: parseTypes(ctx.Query("types"))}
	sub, err := c.bus.Subscribe(streamCtx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		data, err := json.Marshal(frameOf(ev))
		if err != nil {
			return
		}
		select {
		case send <- data:
		default:
			// Медленный клиент
			dropped.Add(1)
		}
	})
	if err != nil {
		logging.Warn("Консоль: подписка потока: %v", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(time.Second))
		return
	}
	defer sub.Unsubscribe()

	hello, _ := json.Marshal(StreamFrame{Type: FrameSubscribed, Timestamp: time.Now().UTC()})
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	operator, _ := ctx.Get(ctxOperatorID)
	logging.Info("📡 Оператор %v подключился к потоку событий %v", operator, filter.Types)
	defer func() {
		logging.Info("📡 Поток событий оператора %v закрыт (пропущено %d)", operator, dropped.Load())
	}()

	go readPump(conn, cancel)

	ticker := time.NewTicker(streamPing)
	defer ticker.Stop()

	for {
		select {
		case <-streamCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			return
		case data := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump держит read deadline и ловит закрытие соединения клиентом
func readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Консоль: чтение потока: %v", err)
			}
			return
		}
	}
}
