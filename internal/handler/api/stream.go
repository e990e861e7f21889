package api

import (
	"context"
	"net/http"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/service/metrics"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamMessage is one websocket frame of a streamed forecast.
type streamMessage struct {
	Type     string                   `json:"type"` // progress | result | error
	Progress *models.ForecastProgress `json:"progress,omitempty"`
	Result   *forecastResponse        `json:"result,omitempty"`
	Error    *xhttp.AppError          `json:"error,omitempty"`
}

// Stream runs a forecast and pushes every iteration to the client, followed by
// the final result. Closing the socket cancels the run.
func (h *ForecastHandler) Stream(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.HandlerLatency.WithLabelValues("stream").Observe(time.Since(start).Seconds()) }()

	if !h.allow(c, "stream") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	req, verr, err := parseRequest(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("ws upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// read loop: only control frames are expected; any error ends the run
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	out := make(chan streamMessage, 64)
	req.OnStep = func(p models.ForecastProgress) {
		select {
		case out <- streamMessage{Type: "progress", Progress: &p}:
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		res, err := h.svc.Run(ctx, req)
		var msg streamMessage
		if err != nil {
			h.l.Warn("ws forecast failed", applogger.Error(err))
			msg = streamMessage{Type: "error", Error: toAppError(err)}
		} else {
			msg = streamMessage{Type: "result", Result: &forecastResponse{
				RunID:   res.RunID,
				AsOf:    res.AsOf.Format(time.DateOnly),
				Results: res,
			}}
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.l.Debug("ws write failed", applogger.Error(err))
				cancel()
				<-done
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				<-done
				return nil
			}
		}
	}
}
