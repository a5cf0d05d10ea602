package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type generateRequestPayload struct {
	RepositoryID string `json:"repositoryId"`
	RepoID       string `json:"repoId"`
}

func (p generateRequestPayload) repositoryID() string {
	if trimmed := strings.TrimSpace(p.RepositoryID); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(p.RepoID)
}

func (h *httpHandler) handleGenerateDocs(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}

	var payload generateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.repositoryID() == "" {
		h.writeBadRequest(c, "missing parameters")
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), docs.GenerateRequest{
		UserID:       claims.UserID,
		AccessToken:  claims.AccessToken,
		RepositoryID: payload.repositoryID(),
	})
	if err != nil {
		h.writeError(c, "docs.generate", err)
		return
	}

	h.realtime.Publish(RealtimeMessage{
		UserID:         claims.UserID,
		EventType:      RealtimeEventDocsGenerated,
		RepositoryID:   result.RepositoryID,
		ProcessedCount: result.ProcessedCount,
		Timestamp:      time.Now().UTC(),
	})
	c.JSON(http.StatusOK, result)
}

type realtimeEventPayload struct {
	RepositoryID   string `json:"repositoryId,omitempty"`
	ProcessedCount int    `json:"processedCount"`
	Timestamp      string `json:"timestamp"`
	Source         string `json:"source"`
}

// handleEvents streams docs-generated events for the caller, with periodic heartbeats.
func (h *httpHandler) handleEvents(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, claims.UserID)
	defer cleanup()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(realtimeEventHeartbeat, heartbeatPayload())
	c.Writer.Flush()

	h.logger.Debug("realtime stream opened", zap.String("user_id", claims.UserID))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, realtimeEventPayload{
				RepositoryID:   message.RepositoryID,
				ProcessedCount: message.ProcessedCount,
				Timestamp:      message.Timestamp.Format(time.RFC3339),
				Source:         realtimeSourceBackend,
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, heartbeatPayload())
			return true
		}
	})
	h.logger.Debug("realtime stream closed", zap.String("user_id", claims.UserID))
}

func heartbeatPayload() realtimeEventPayload {
	return realtimeEventPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    realtimeSourceBackend,
	}
}
