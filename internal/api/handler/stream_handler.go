package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/api/metrics"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// StreamHandler pushes the loan view to websocket clients after every change.
type StreamHandler struct {
	view     LoanView
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewStreamHandler(v LoanView, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		view: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Stream handles GET /v1/loans/stream.
//
// @Summary      Live loan table
// @Description  Upgrades to a websocket. The current view is sent immediately and again after every render pass.
// @Tags         loans
// @Success      101
// @Router       /v1/loans/stream [get]
func (h *StreamHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	updates, cancel := h.view.Subscribe()
	defer cancel()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	if err := h.write(conn, h.view.Snapshot()); err != nil {
		return nil
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := h.write(conn, snap); err != nil {
				h.log.Debug().Err(err).Msg("stream client write failed")
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(v)
}

// readPump discards client messages and answers pongs; it closes closed when
// the client goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
