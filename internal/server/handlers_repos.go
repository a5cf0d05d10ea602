package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/repos"
	"github.com/gin-gonic/gin"
)

const (
	defaultCommitLimit = 10
	maxCommitLimit     = 100
)

func (h *httpHandler) requireSession(c *gin.Context) (auth.SessionClaims, bool) {
	claims, ok := sessionFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	}
	return claims, ok
}

func (h *httpHandler) handleListRepositories(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}

	list := h.repositories.ListForUser
	if activeOnly, _ := strconv.ParseBool(c.Query("active")); activeOnly {
		list = h.repositories.ListActiveForUser
	}
	repositories, err := list(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, "repos.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repositories": repositories})
}

type activationPayload struct {
	GitHubID    int64  `json:"githubId"`
	Name        string `json:"name"`
	FullName    string `json:"fullName"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Language    string `json:"language"`
	IsPrivate   bool   `json:"isPrivate"`
}

func (h *httpHandler) handleActivateRepository(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}

	var payload activationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeBadRequest(c, "invalid request body")
		return
	}

	result, err := h.repositories.ToggleActivation(c.Request.Context(), claims.UserID, repos.ActivationRequest{
		GitHubID:    payload.GitHubID,
		Name:        payload.Name,
		FullName:    payload.FullName,
		Description: payload.Description,
		URL:         payload.URL,
		Language:    payload.Language,
		IsPrivate:   payload.IsPrivate,
	})
	if err != nil {
		h.writeError(c, "repos.activate", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"repository": result.Repository, "created": result.Created})
}

func (h *httpHandler) handleDeleteRepository(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}
	if err := h.repositories.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		h.writeError(c, "repos.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}
	repository, err := h.repositories.GetForUser(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		h.writeError(c, "docs.list", err)
		return
	}
	documents, err := h.documents.ListForRepository(c.Request.Context(), repository.ID)
	if err != nil {
		h.writeError(c, "docs.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repository": repository, "documents": documents})
}

func (h *httpHandler) handleClearDocuments(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}
	repository, err := h.repositories.GetForUser(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		h.writeError(c, "docs.clear", err)
		return
	}
	removed, err := h.documents.DeleteForRepository(c.Request.Context(), repository.ID)
	if err != nil {
		h.writeError(c, "docs.clear", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}

func (h *httpHandler) handleListCommits(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}
	limit := defaultCommitLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxCommitLimit {
			h.writeBadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	client, owner, name, ok := h.trackedRepositoryClient(c, claims, "commits.list")
	if !ok {
		return
	}
	commits, err := client.ListCommits(c.Request.Context(), owner, name, limit)
	if err != nil {
		h.writeError(c, "commits.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commits": commits})
}

func (h *httpHandler) handleCommitDetails(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}
	sha := strings.TrimSpace(c.Param("sha"))
	if sha == "" {
		h.writeBadRequest(c, "commit sha is required")
		return
	}

	client, owner, name, ok := h.trackedRepositoryClient(c, claims, "commits.details")
	if !ok {
		return
	}
	details, err := client.GetCommitDetails(c.Request.Context(), owner, name, sha)
	if err != nil {
		h.writeError(c, "commits.details", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *httpHandler) handleListGitHubRepositories(c *gin.Context) {
	claims, ok := h.requireSession(c)
	if !ok {
		return
	}
	repositories, err := h.codeHost.ForToken(claims.AccessToken).ListRepositories(c.Request.Context())
	if err != nil {
		h.writeError(c, "github.repos", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repositories": repositories})
}

// trackedRepositoryClient resolves the caller's tracked repository from the
// :id parameter and returns a code-host client for it.
func (h *httpHandler) trackedRepositoryClient(c *gin.Context, claims auth.SessionClaims, operation string) (codehost.Client, string, string, bool) {
	repository, err := h.repositories.GetForUser(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		h.writeError(c, operation, err)
		return nil, "", "", false
	}
	owner, name, err := codehost.SplitFullName(repository.FullName)
	if err != nil {
		h.writeError(c, operation, err)
		return nil, "", "", false
	}
	return h.codeHost.ForToken(claims.AccessToken), owner, name, true
}
