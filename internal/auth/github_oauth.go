package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var (
	errMissingClientID     = errors.New("github oauth: client id required")
	errMissingClientSecret = errors.New("github oauth: client secret required")
	errMissingRedirectURL  = errors.New("github oauth: redirect url required")

	// ErrInvalidGitHubProfile indicates GitHub returned a user without an id or login.
	ErrInvalidGitHubProfile = errors.New("github oauth: invalid user profile")
)

// GitHubScopes grants profile, email and repository read access.
var GitHubScopes = []string{"read:user", "user:email", "repo"}

// GitHubProfile is the part of the authenticated GitHub user kept by the session.
type GitHubProfile struct {
	ID        int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// GitHubOAuthConfig describes the OAuth app and the endpoints it talks to.
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint defaults to github.com; tests point it at a stub server.
	Endpoint   oauth2.Endpoint
	APIBaseURL string
	HTTPClient *http.Client
}

// GitHubProvider runs the GitHub authorization code flow.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL *url.URL
	httpClient *http.Client
}

// NewGitHubProvider validates credentials and constructs the provider.
func NewGitHubProvider(cfg GitHubOAuthConfig) (*GitHubProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errMissingClientID
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errMissingClientSecret
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errMissingRedirectURL
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = github.Endpoint
	}

	provider := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       GitHubScopes,
			Endpoint:     endpoint,
		},
		httpClient: cfg.HTTPClient,
	}
	if trimmed := strings.TrimSpace(cfg.APIBaseURL); trimmed != "" {
		if !strings.HasSuffix(trimmed, "/") {
			trimmed += "/"
		}
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("github oauth: parsing api base url: %w", err)
		}
		provider.apiBaseURL = parsed
	}
	return provider, nil
}

// AuthURL is the GitHub consent page URL carrying the CSRF state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token and loads the user's profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (GitHubProfile, *oauth2.Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return GitHubProfile{}, nil, fmt.Errorf("github oauth: exchanging code: %w", err)
	}

	client := gh.NewClient(p.config.Client(ctx, token))
	if p.apiBaseURL != nil {
		client.BaseURL = p.apiBaseURL
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return GitHubProfile{}, nil, fmt.Errorf("github oauth: loading user: %w", err)
	}
	profile := GitHubProfile{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		Email:     user.GetEmail(),
		AvatarURL: user.GetAvatarURL(),
	}
	if profile.ID == 0 || profile.Login == "" {
		return GitHubProfile{}, nil, ErrInvalidGitHubProfile
	}

	if profile.Email == "" {
		profile.Email = primaryEmail(ctx, client)
	}
	return profile, token, nil
}

// primaryEmail looks up the verified primary address when the public profile hides it.
func primaryEmail(ctx context.Context, client *gh.Client) string {
	emails, _, err := client.Users.ListEmails(ctx, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return ""
	}
	for _, email := range emails {
		if email.GetPrimary() && email.GetVerified() {
			return email.GetEmail()
		}
	}
	return ""
}
