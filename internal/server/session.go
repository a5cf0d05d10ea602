package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionContextKey = "autodocs_session"
	loginPath         = "/login"
	dashboardPath     = "/dashboard"
	apiPathPrefix     = "/api/"
)

var protectedPagePrefixes = []string{"/dashboard", "/repos", "/docs", "/settings"}

func isProtectedPage(path string) bool {
	for _, prefix := range protectedPagePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// sessionGate loads the session cookie into the context, sends anonymous page
// visits to /login, answers anonymous API calls with 401 and sends signed-in
// users away from /login.
func (h *httpHandler) sessionGate(c *gin.Context) {
	path := c.Request.URL.Path
	claims, err := h.validator.ValidateRequest(c.Request)
	if err == nil {
		c.Set(sessionContextKey, claims)
	}

	switch {
	case err != nil && strings.HasPrefix(path, apiPathPrefix):
		h.logSessionFailure(err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	case err != nil && isProtectedPage(path):
		h.logSessionFailure(err)
		c.Redirect(http.StatusFound, loginPath)
		c.Abort()
		return
	case err == nil && path == loginPath:
		c.Redirect(http.StatusFound, dashboardPath)
		c.Abort()
		return
	}
	c.Next()
}

func (h *httpHandler) logSessionFailure(err error) {
	switch {
	case errors.Is(err, auth.ErrMissingSessionToken):
		h.logger.Debug("session missing", zap.Error(err))
	case errors.Is(err, auth.ErrExpiredSessionToken):
		h.logger.Info("session validation failed", zap.Error(err))
	default:
		h.logger.Warn("session validation failed", zap.Error(err))
	}
}

// sessionFromContext returns the claims stored by sessionGate.
func sessionFromContext(c *gin.Context) (auth.SessionClaims, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, ok := value.(auth.SessionClaims)
	return claims, ok
}

func (h *httpHandler) setSessionCookie(c *gin.Context, token string, maxAgeSeconds int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.validator.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
}
