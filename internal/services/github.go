package services

import (
	"context"
	"fmt"

	"github.com/google/go-github/github"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

// GitHubUser is the identity returned by a GitHub OAuth exchange
type GitHubUser struct {
	ID        int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// GitHubIdentity resolves an OAuth authorization code to a GitHub user
type GitHubIdentity interface {
	Identify(ctx context.Context, code string) (*GitHubUser, error)
}

// GitHubOAuth exchanges codes with github.com and reads the user profile
type GitHubOAuth struct {
	config *oauth2.Config
}

// NewGitHubOAuth creates a GitHub identity provider for an OAuth app
func NewGitHubOAuth(clientID, clientSecret string) *GitHubOAuth {
	return &GitHubOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
	}
}

// Identify exchanges the code for a token and loads the authenticated user
func (g *GitHubOAuth) Identify(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange github code: %w", err)
	}

	client := github.NewClient(g.config.Client(ctx, token))
	u, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}

	user := &GitHubUser{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		Email:     u.GetEmail(),
		AvatarURL: u.GetAvatarURL(),
	}

	// Private emails are only listed through the emails endpoint.
	if user.Email == "" {
		emails, _, err := client.Users.ListEmails(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list github emails: %w", err)
		}
		for _, e := range emails {
			if e.GetPrimary() && e.GetVerified() {
				user.Email = e.GetEmail()
				break
			}
		}
	}

	return user, nil
}
