package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

const (
	// envelopeReadTimeout bounds how long a client may take to send the
	// analysis envelope after the upgrade.
	envelopeReadTimeout = 30 * time.Second
	// streamWriteTimeout bounds each outbound message.
	streamWriteTimeout = 10 * time.Second
)

// streamMessage is one frame on the analysis stream. Type is "progress",
// "result", or "error"; exactly one payload field is set to match.
type streamMessage struct {
	Type   string                 `json:"type"`
	Event  *domain.ProgressEvent  `json:"event,omitempty"`
	Result *domain.AnalysisResult `json:"result,omitempty"`
	Error  *domain.APIError       `json:"error,omitempty"`
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleAnalyzeStream runs one analysis per websocket session, streaming
// stage events while it computes. The client sends a single analysis
// envelope; the session ends after the result or error frame. Closing the
// socket mid-analysis cancels the computation.
func (s *Server) handleAnalyzeStream(c *gin.Context) {
	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the handshake failure.
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	correlationID := c.GetString("correlation_id")
	log := s.logger.WithField("correlation_id", correlationID)

	if err := conn.SetReadDeadline(time.Now().Add(envelopeReadTimeout)); err != nil {
		log.WithError(err).Debug("Setting stream read deadline failed")
		return
	}

	var req domain.AnalysisRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.writeStream(conn, log, streamMessage{
			Type:  "error",
			Error: domain.NewAPIError(domain.CodeInvalidInput, "malformed analysis envelope", err.Error(), correlationID),
		})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Watch for the client going away. No further inbound frames are
	// expected, so any read outcome ends the session.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	progress := func(event domain.ProgressEvent) {
		e := event
		s.writeStream(conn, log, streamMessage{Type: "progress", Event: &e})
	}

	result, err := s.dispatcher.RunWithProgress(ctx, req, progress)
	if err != nil {
		_, code, message := classify(err)
		s.writeStream(conn, log, streamMessage{
			Type:  "error",
			Error: domain.NewAPIError(code, message, err.Error(), correlationID),
		})
		return
	}

	s.writeStream(conn, log, streamMessage{Type: "result", Result: result})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteTimeout))
}

// writeStream sends one frame with a write deadline. Failures are logged
// and otherwise ignored; the disconnect watcher tears the session down.
func (s *Server) writeStream(conn *websocket.Conn, log *logrus.Entry, msg streamMessage) {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		log.WithError(err).Debug("Setting stream write deadline failed")
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.WithError(err).Debug("Stream write failed")
	}
}
