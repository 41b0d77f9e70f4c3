package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/logger"
	"github.com/stemsi/exstem-papers/internal/middleware"
	"github.com/stemsi/exstem-papers/internal/service"
	ws "github.com/stemsi/exstem-papers/internal/websocket"
)

const snapshotTimeout = 5 * time.Second // a slow query must not stall the socket loop

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams an exam's session activity to its owner.
type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            logger.Component(log, "monitor_handler"),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// MonitorExam godoc
// WS /ws/v1/teacher/exams/:exam_id/monitor
// Sends a snapshot of record counts and recent events, then relays every
// session event published for the exam.
func (h *MonitorHandler) MonitorExam(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	if _, err := h.monitorService.Authorize(c.Request.Context(), middleware.CallerFrom(c), examID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("exam_id", examID.String()).Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.monitorService.Subscribe(ctx, examID)
	defer pubsub.Close()
	events := pubsub.Channel()

	if err := h.sendSnapshot(ctx, conn, examID); err != nil {
		wsLog.Warn().Err(err).Msg("Failed to send monitor snapshot")
		return
	}

	requests := make(chan ws.Action)
	go h.readLoop(ctx, cancel, conn, requests)

	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	wsLog.Info().Msg("Teacher attached to live monitor")
	defer wsLog.Info().Msg("Teacher detached from live monitor")

	for {
		var err error
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-events:
			if !ok {
				return
			}
			err = ws.WriteTyped(conn, ws.SessionResponse{Event: ws.EventSession, Data: []byte(msg.Payload)})

		case action := <-requests:
			switch action {
			case ws.ActionPing:
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			case ws.ActionRefresh:
				err = h.sendSnapshot(ctx, conn, examID)
			default:
				err = ws.WriteError(conn, "unknown action: "+string(action))
			}

		case <-ping.C:
			err = ws.WritePing(conn)
		}

		if err != nil {
			wsLog.Debug().Err(err).Msg("Monitor write failed")
			return
		}
	}
}

// readLoop owns the read side of the connection and hands actions to the
// writer loop. It cancels ctx when the client goes away.
func (h *MonitorHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- ws.Action) {
	defer cancel()
	ws.KeepAlive(conn)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected monitor close")
			}
			return
		}
		select {
		case out <- msg.Action:
		case <-ctx.Done():
			return
		}
	}
}

func (h *MonitorHandler) sendSnapshot(parent context.Context, conn *websocket.Conn, examID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(parent, snapshotTimeout)
	defer cancel()

	snap, err := h.monitorService.Snapshot(ctx, examID)
	if err != nil {
		return err
	}
	return ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Data: snap})
}
