package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateTTL        = 10 * time.Minute
)

func loginErrorURL(reason string) string {
	return loginPath + "?error=" + url.QueryEscape(reason)
}

func (h *httpHandler) handleGitHubLogin(c *gin.Context) {
	state := xid.New().String()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, h.oauth.AuthURL(state))
}

func (h *httpHandler) handleGitHubCallback(c *gin.Context) {
	if providerError := c.Query("error"); providerError != "" {
		h.logger.Info("github authorization declined", zap.String("reason", providerError))
		c.Redirect(http.StatusFound, loginErrorURL("access_denied"))
		return
	}

	expectedState, err := c.Cookie(oauthStateCookieName)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/auth/github",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil || expectedState == "" || c.Query("state") != expectedState {
		h.logger.Warn("oauth state mismatch")
		c.Redirect(http.StatusFound, loginErrorURL("state_mismatch"))
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.Redirect(http.StatusFound, loginErrorURL("missing_code"))
		return
	}

	profile, token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("github oauth exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, loginErrorURL("exchange_failed"))
		return
	}

	user, err := h.users.UpsertFromProfile(c.Request.Context(), users.Profile{
		GitHubID:  profile.ID,
		Login:     profile.Login,
		Name:      profile.Name,
		Email:     profile.Email,
		AvatarURL: profile.AvatarURL,
	})
	if err != nil {
		h.logger.Error("failed to store user", zap.Error(err), zap.String("login", profile.Login))
		c.Redirect(http.StatusFound, loginErrorURL("sign_in_failed"))
		return
	}

	sessionToken, _, err := h.sessions.Issue(auth.SessionSubject{
		UserID:      user.ID,
		Login:       user.Login,
		Name:        user.Name,
		Email:       user.Email,
		AvatarURL:   user.AvatarURL,
		AccessToken: token.AccessToken,
	})
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err), zap.String("user_id", user.ID))
		c.Redirect(http.StatusFound, loginErrorURL("sign_in_failed"))
		return
	}

	h.setSessionCookie(c, sessionToken, int(h.sessions.TTL().Seconds()))
	h.logger.Info("user signed in", zap.String("user_id", user.ID), zap.String("login", user.Login))
	c.Redirect(http.StatusFound, dashboardPath)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

type sessionProfilePayload struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

type sessionResponsePayload struct {
	UserID    string                `json:"userId"`
	Profile   sessionProfilePayload `json:"profile"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

func (h *httpHandler) handleSession(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	response := sessionResponsePayload{
		UserID: claims.UserID,
		Profile: sessionProfilePayload{
			Login:     claims.Login,
			Name:      claims.Name,
			Email:     claims.Email,
			AvatarURL: claims.AvatarURL,
		},
	}
	if claims.ExpiresAt != nil {
		response.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	c.JSON(http.StatusOK, response)
}
