package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// ExternalIdentity is the normalised profile a federated provider returns
// after a successful code exchange. It carries facts only: account creation,
// linking and role assignment happen in the identity provider.
type ExternalIdentity struct {
	Provider      string // e.g. "google", "github"
	Subject       string // provider-scoped stable user ID
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// FederatedProvider is implemented by every OAuth 2.0 identity provider the
// portal can sign in with.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW (with PKCE):
//  1. The portal redirects the browser to AuthCodeURL(state, verifier).
//  2. The user approves (or cancels) on the provider's page.
//  3. The provider redirects back with a short-lived code.
//  4. Exchange trades the code (+ the PKCE verifier) for tokens server-side
//     and loads the user's profile.
type FederatedProvider interface {
	Name() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*ExternalIdentity, error)
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

const githubUserURL = "https://api.github.com/user"

// GitHubUser is the portion of the GitHub /user API response we care about.
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID, stable across renames
	Login     string `json:"login"`      // GitHub username
	Name      string `json:"name"`       // display name (may be empty)
	Email     string `json:"email"`      // primary public email (empty if hidden)
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider creates a GitHubProvider with the given OAuth App credentials.
// callbackURL must match the "Authorization callback URL" configured on GitHub.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return newGitHubProvider(clientID, clientSecret, callbackURL, github.Endpoint, githubUserURL)
}

func newGitHubProvider(clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint, userURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		userURL: userURL,
	}
}

// Name returns the registry key for this provider.
func (p *GitHubProvider) Name() string {
	return "github"
}

// AuthCodeURL returns the URL to redirect the user to for authorization.
func (p *GitHubProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the authorization code for an access token and loads the
// GitHub profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code, verifier string) (*ExternalIdentity, error) {
	oauthToken, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	name := ghUser.Name
	if name == "" {
		name = ghUser.Login
	}

	return &ExternalIdentity{
		Provider:  p.Name(),
		Subject:   strconv.FormatInt(ghUser.ID, 10),
		Email:     ghUser.Email,
		Name:      name,
		AvatarURL: ghUser.AvatarURL,
	}, nil
}
