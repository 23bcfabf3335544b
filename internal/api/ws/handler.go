package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
)

const (
	writeTimeout   = 5 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 25 * time.Second
	subscribeQueue = 16
)

// Metrics receives stream observations
type Metrics interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(outcome string)
}

// Handler streams rendered plots to WebSocket clients
type Handler struct {
	plots    *display.Broadcaster
	metrics  Metrics
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(plots *display.Broadcaster, metrics Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		plots:   plots,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			// the stream is read-only; CORS rules do not apply to upgrades
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("ws"),
	}
}

// HandleConnection upgrades the request and streams plots until the client
// goes away. ?display=<title|handle> limits the stream to one display.
func (h *Handler) HandleConnection(c *gin.Context) {
	only := c.Query("display")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	plots, cancel := h.plots.Subscribe(subscribeQueue)
	defer cancel()

	closed := h.readPump(conn)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			return
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case plot, ok := <-plots:
			if !ok {
				return
			}
			if only != "" && plot.Display != only && plot.Handle != only {
				continue
			}
			if err := h.send(conn, plot); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed. The
// returned channel closes when the client disconnects.
func (h *Handler) readPump(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func (h *Handler) send(conn *websocket.Conn, plot display.Plot) error {
	payload, err := sonic.Marshal(plot)
	if err != nil {
		h.record("encode_error")
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.record("write_error")
		return err
	}
	h.record("sent")
	return nil
}

func (h *Handler) record(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(outcome)
	}
}
