package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const pageTimeLayout = "Jan 2, 2006 15:04 MST"

func (h *httpHandler) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown": h.markdown.Render,
		"formatTime": func(value time.Time) string {
			if value.IsZero() {
				return "never"
			}
			return value.UTC().Format(pageTimeLayout)
		},
		"formatTimePtr": func(value *time.Time) string {
			if value == nil || value.IsZero() {
				return "never"
			}
			return value.UTC().Format(pageTimeLayout)
		},
		"deref": func(value *string) string {
			if value == nil {
				return ""
			}
			return *value
		},
	}
}

type pageViewer struct {
	Login     string
	Name      string
	AvatarURL string
}

func (h *httpHandler) viewer(c *gin.Context) *pageViewer {
	claims, ok := sessionFromContext(c)
	if !ok {
		return nil
	}
	return &pageViewer{Login: claims.Login, Name: claims.DisplayName(), AvatarURL: claims.AvatarURL}
}

func (h *httpHandler) handleLandingPage(c *gin.Context) {
	c.HTML(http.StatusOK, "landing.tmpl", gin.H{
		"Title":  "AutoDocs",
		"Viewer": h.viewer(c),
	})
}

var loginErrorMessages = map[string]string{
	"access_denied":   "GitHub authorization was cancelled.",
	"state_mismatch":  "The sign-in request expired. Please try again.",
	"missing_code":    "GitHub did not return an authorization code.",
	"exchange_failed": "GitHub sign-in failed. Please try again.",
	"sign_in_failed":  "We could not complete your sign-in. Please try again.",
}

func (h *httpHandler) handleLoginPage(c *gin.Context) {
	message := ""
	if reason := c.Query("error"); reason != "" {
		message = loginErrorMessages[reason]
		if message == "" {
			message = "Sign-in failed. Please try again."
		}
	}
	c.HTML(http.StatusOK, "login.tmpl", gin.H{
		"Title": "Sign in",
		"Error": message,
	})
}

// dashboardRow joins a GitHub repository with its tracked counterpart, if any.
type dashboardRow struct {
	Remote        codehost.Repository
	Tracked       *repos.Repository
	DocumentCount int64
}

func (r dashboardRow) Active() bool {
	return r.Tracked != nil && r.Tracked.IsActive
}

func (h *httpHandler) handleDashboardPage(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	ctx := c.Request.Context()

	remote, err := h.codeHost.ForToken(claims.AccessToken).ListRepositories(ctx)
	if err != nil {
		if errors.Is(err, codehost.ErrUnauthorized) {
			h.logger.Info("github token rejected, ending session", zap.String("user_id", claims.UserID))
			h.clearSessionCookie(c)
			c.Redirect(http.StatusFound, loginPath)
			return
		}
		h.renderPageError(c, "dashboard", err)
		return
	}

	tracked, err := h.repositories.ListForUser(ctx, claims.UserID)
	if err != nil {
		h.renderPageError(c, "dashboard", err)
		return
	}
	trackedByGitHubID := make(map[int64]*repos.Repository, len(tracked))
	for index := range tracked {
		trackedByGitHubID[tracked[index].GitHubID] = &tracked[index]
	}

	rows := make([]dashboardRow, 0, len(remote))
	activeCount := 0
	var lastUpdate time.Time
	for _, repository := range remote {
		row := dashboardRow{Remote: repository, Tracked: trackedByGitHubID[repository.ID]}
		if row.Tracked != nil {
			count, countErr := h.documents.CountByRepository(ctx, row.Tracked.ID)
			if countErr != nil {
				h.renderPageError(c, "dashboard", countErr)
				return
			}
			row.DocumentCount = count
			if row.Tracked.LastSync != nil && row.Tracked.LastSync.After(lastUpdate) {
				lastUpdate = *row.Tracked.LastSync
			}
		}
		if row.Active() {
			activeCount++
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Active() && !rows[j].Active()
	})

	c.HTML(http.StatusOK, "dashboard.tmpl", gin.H{
		"Title":          "Dashboard",
		"Viewer":         h.viewer(c),
		"Rows":           rows,
		"AvailableCount": len(remote),
		"ActiveCount":    activeCount,
		"LastUpdate":     lastUpdate,
	})
}

func (h *httpHandler) handleDocumentsPage(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	ctx := c.Request.Context()

	repository, err := h.repositories.GetForUser(ctx, claims.UserID, c.Param("id"))
	if err != nil {
		h.renderPageError(c, "documents", err)
		return
	}
	documents, err := h.documents.ListForRepository(ctx, repository.ID)
	if err != nil {
		h.renderPageError(c, "documents", err)
		return
	}
	c.HTML(http.StatusOK, "docs.tmpl", gin.H{
		"Title":      repository.FullName,
		"Viewer":     h.viewer(c),
		"Repository": repository,
		"Documents":  documents,
	})
}

func (h *httpHandler) handleSettingsPage(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	user, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.renderPageError(c, "settings", err)
		return
	}
	c.HTML(http.StatusOK, "settings.tmpl", gin.H{
		"Title":  "Settings",
		"Viewer": h.viewer(c),
		"User":   user,
	})
}

func (h *httpHandler) renderPageError(c *gin.Context, page string, err error) {
	status, message := statusForError(err)
	fields := []zap.Field{zap.String("page", page), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("page render failed", fields...)
	} else {
		h.logger.Info("page request rejected", fields...)
	}
	_ = c.Error(err)
	c.HTML(status, "error.tmpl", gin.H{
		"Title":   "Something went wrong",
		"Viewer":  h.viewer(c),
		"Message": message,
	})
}
