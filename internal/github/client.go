package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub REST API
type Client struct {
	apiClient *github.Client
	logger    *zap.Logger
}

// NewClient creates a new GitHub client. baseURL replaces the public API
// endpoint when set, for GitHub Enterprise or tests.
func NewClient(accessToken, baseURL string, logger *zap.Logger) (*Client, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: accessToken},
	)
	tc := oauth2.NewClient(ctx, ts)

	apiClient := github.NewClient(tc)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse api base url: %w", err)
		}
		apiClient.BaseURL = u
	}

	return &Client{
		apiClient: apiClient,
		logger:    logger,
	}, nil
}

// BranchHead returns the SHA of the commit at the tip of a remote branch
func (c *Client) BranchHead(ctx context.Context, owner, repo, branch string) (string, error) {
	b, _, err := c.apiClient.Repositories.GetBranch(ctx, owner, repo, branch, 1)
	if err != nil {
		return "", fmt.Errorf("failed to get branch %s: %w", branch, err)
	}

	sha := b.GetCommit().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("branch %s has no head commit", branch)
	}

	c.logger.Debug("fetched branch head",
		zap.String("repo", owner+"/"+repo),
		zap.String("branch", branch),
		zap.String("sha", sha),
	)

	return sha, nil
}
