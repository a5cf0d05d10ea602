package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/docs"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const genericFailureMessage = "internal server error"

type codedError interface {
	Code() string
}

// statusForError maps domain sentinels onto HTTP status codes and client messages.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, codehost.ErrUnauthorized), errors.Is(err, docs.ErrMissingAccessToken):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, repos.ErrInvalidActivation), errors.Is(err, codehost.ErrInvalidRepository):
		return http.StatusBadRequest, "missing or invalid parameters"
	case errors.Is(err, repos.ErrRepositoryNotFound):
		return http.StatusNotFound, "repository not found"
	case errors.Is(err, docs.ErrNoCandidates):
		return http.StatusNotFound, "no documentable files"
	case errors.Is(err, codehost.ErrNotFound):
		return http.StatusNotFound, "resource not found on GitHub"
	case errors.Is(err, repos.ErrRepositoryOwnedElsewhere):
		return http.StatusConflict, "repository is tracked by another user"
	default:
		return http.StatusInternalServerError, genericFailureMessage
	}
}

func (h *httpHandler) writeError(c *gin.Context, operation string, err error) {
	status, message := statusForError(err)
	body := gin.H{"error": message}
	var coded codedError
	if errors.As(err, &coded) {
		body["code"] = coded.Code()
	}

	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func (h *httpHandler) writeBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
