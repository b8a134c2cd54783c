package prsync

import (
	"context"

	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/githubclt"
)

// DryGithubClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to a wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	return c.clt.FileContent(ctx, owner, repo, path, ref)
}

func (c *DryGithubClient) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	return c.clt.DefaultBranch(ctx, owner, repo)
}

func (c *DryGithubClient) BranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	return c.clt.BranchHeadSHA(ctx, owner, repo, branch)
}

func (c *DryGithubClient) CommitTreeSHA(ctx context.Context, owner, repo, commitSHA string) (string, error) {
	return c.clt.CommitTreeSHA(ctx, owner, repo, commitSHA)
}

func (c *DryGithubClient) CreateBlob(context.Context, string, string, []byte) (string, error) {
	c.logger.Info("simulated creating a blob, no object created on github")
	return "dry-run-blob-sha", nil
}

func (c *DryGithubClient) CreateTree(context.Context, string, string, string, []githubclt.TreeEntry) (string, error) {
	c.logger.Info("simulated creating a tree, no object created on github")
	return "dry-run-tree-sha", nil
}

func (c *DryGithubClient) CreateCommit(context.Context, string, string, string, string, string) (string, error) {
	c.logger.Info("simulated creating a commit, no object created on github")
	return "dry-run-commit-sha", nil
}

func (c *DryGithubClient) UpdateBranchRef(context.Context, string, string, string, string) error {
	c.logger.Info("simulated updating a branch ref, branch unchanged on github")
	return nil
}

func (c *DryGithubClient) CreateCommitStatus(context.Context, string, string, string, string, string, string) error {
	c.logger.Info("simulated creating a commit status, no status reported to github")
	return nil
}

func (c *DryGithubClient) ListOpenPullRequests(ctx context.Context, owner, repo, baseBranch string) githubclt.PRIterator {
	return c.clt.ListOpenPullRequests(ctx, owner, repo, baseBranch)
}
