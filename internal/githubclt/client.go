// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vocoder/vocoder/internal/logfields"
	"github.com/vocoder/vocoder/internal/vocerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// ErrRefNotFastForward is returned by UpdateBranchRef when the branch moved
// since the commit's parent was read and the update would not be a
// fast-forward. The caller can re-read the head and rebuild the commit.
var ErrRefNotFastForward = errors.New("ref update is not a fast forward")

// New returns a new github api client.
// All methods classify remote failures into vocerr.APIError kinds.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a github API client.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// TreeEntry describes one file blob to be recorded in a new git tree.
type TreeEntry struct {
	Path    string
	BlobSHA string
}

// FileContent returns the decoded content of the file at path for the given
// revision. ref can be a SHA, branch or tag name.
// If the file does not exist at the revision, a vocerr.APIError with
// KindNotFound is returned.
func (clt *Client) FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	fileContent, _, _, err := clt.restClt.Repositories.GetContents(
		ctx, owner, repo, path,
		&github.RepositoryContentGetOptions{Ref: ref},
	)
	if err != nil {
		return nil, clt.wrapError(err)
	}

	if fileContent == nil {
		return nil, vocerr.New(vocerr.KindNotFound, fmt.Errorf("%s is a directory at revision %s", path, ref))
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding content of %s at %s failed: %w", path, ref, err)
	}

	return []byte(content), nil
}

// DefaultBranch returns the name of the repository's default branch.
func (clt *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var q struct {
		Repository struct {
			DefaultBranchRef struct {
				Name githubv4.String
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return "", clt.wrapGraphQLError(err)
	}

	branch := string(q.Repository.DefaultBranchRef.Name)
	if branch == "" {
		return "", errors.New("github returned an empty default branch ref")
	}

	return branch, nil
}

// BranchHeadSHA returns the commit SHA the branch currently points at.
func (clt *Client) BranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	ref, _, err := clt.restClt.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		return "", clt.wrapError(err)
	}

	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", errors.New("github returned a ref with an empty object sha")
	}

	return sha, nil
}

// CommitTreeSHA returns the SHA of the tree that the commit records.
func (clt *Client) CommitTreeSHA(ctx context.Context, owner, repo, commitSHA string) (string, error) {
	commit, _, err := clt.restClt.Git.GetCommit(ctx, owner, repo, commitSHA)
	if err != nil {
		return "", clt.wrapError(err)
	}

	sha := commit.GetTree().GetSHA()
	if sha == "" {
		return "", errors.New("github returned a commit with an empty tree sha")
	}

	return sha, nil
}

// CreateBlob stores content as a git blob object and returns its SHA.
func (clt *Client) CreateBlob(ctx context.Context, owner, repo string, content []byte) (string, error) {
	blob, _, err := clt.restClt.Git.CreateBlob(ctx, owner, repo, &github.Blob{
		Content:  github.String(string(content)),
		Encoding: github.String("utf-8"),
	})
	if err != nil {
		return "", clt.wrapError(err)
	}

	return blob.GetSHA(), nil
}

// CreateTree creates a tree based on baseTreeSHA with the given file entries
// added or replaced. Files of the base tree that are not listed in entries
// are left untouched.
func (clt *Client) CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []TreeEntry) (string, error) {
	ghEntries := make([]*github.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		ghEntries = append(ghEntries, &github.TreeEntry{
			Path: github.String(entry.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  github.String(entry.BlobSHA),
		})
	}

	tree, _, err := clt.restClt.Git.CreateTree(ctx, owner, repo, baseTreeSHA, ghEntries)
	if err != nil {
		return "", clt.wrapError(err)
	}

	return tree.GetSHA(), nil
}

// CreateCommit creates a commit for treeSHA with a single parent.
func (clt *Client) CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parentSHA string) (string, error) {
	commit, _, err := clt.restClt.Git.CreateCommit(ctx, owner, repo, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(treeSHA)},
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	}, nil)
	if err != nil {
		return "", clt.wrapError(err)
	}

	return commit.GetSHA(), nil
}

// UpdateBranchRef points the branch at commitSHA.
// The update is done without force, github rejects it when it is not a
// fast-forward. In that case ErrRefNotFastForward is returned and the caller
// can rebuild its commit on the new head.
func (clt *Client) UpdateBranchRef(ctx context.Context, owner, repo, branch, commitSHA string) error {
	_, _, err := clt.restClt.Git.UpdateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	}, false)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) &&
			respErr.Response.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(respErr.Message), "fast forward") {
			clt.logger.Debug(
				"branch changed since head was read, ref update rejected",
				logfields.RepositoryOwner(owner),
				logfields.Repository(repo),
				logfields.Branch(branch),
				logfields.Event("github_ref_update_not_fast_forward"),
			)

			return fmt.Errorf("%w: %s", ErrRefNotFastForward, respErr.Message)
		}

		return clt.wrapError(err)
	}

	return nil
}

// CreateCommitStatus attaches a commit status to the given revision.
// state must be one of pending, success, failure or error.
func (clt *Client) CreateCommitStatus(ctx context.Context, owner, repo, sha, state, statusContext, description string) error {
	_, _, err := clt.restClt.Repositories.CreateStatus(ctx, owner, repo, sha, &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(statusContext),
		Description: github.String(description),
	})

	return clt.wrapError(err)
}

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx        context.Context
	owner      string
	repo       string
	baseBranch string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pull request.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State: "open",
		Base:  it.baseBranch,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: 100,
		},
	})
	if err != nil {
		return nil, it.clt.wrapError(err)
	}

	if resp.NextPage == 0 || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs

	if len(it.unseen) == 0 {
		return nil, nil
	}

	return it.Next()
}

// ListOpenPullRequests returns an iterator over all open pull requests whose
// base branch is baseBranch.
func (clt *Client) ListOpenPullRequests(ctx context.Context, owner, repo, baseBranch string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:        clt,
		ctx:        ctx,
		owner:      owner,
		repo:       repo,
		baseBranch: baseBranch,
		nextPage:   1,
	}
}

func (clt *Client) wrapError(err error) error {
	if err == nil {
		return nil
	}

	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return vocerr.NewRateLimited(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		var retryAfter time.Time
		if v.RetryAfter != nil {
			retryAfter = time.Now().Add(*v.RetryAfter)
		}

		return vocerr.NewRateLimited(err, retryAfter)

	case *github.ErrorResponse:
		switch v.Response.StatusCode {
		case http.StatusNotFound:
			return vocerr.New(vocerr.KindNotFound, err)

		case http.StatusUnauthorized, http.StatusForbidden:
			return vocerr.New(vocerr.KindAuthFailure, err)
		}

		return vocerr.New(vocerr.KindOther, err)
	}

	return vocerr.New(vocerr.KindOther, err)
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLError(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return vocerr.New(vocerr.KindOther, err)
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return vocerr.New(vocerr.KindOther, err)
	}

	switch errcode {
	case http.StatusNotFound:
		return vocerr.New(vocerr.KindNotFound, err)

	case http.StatusUnauthorized, http.StatusForbidden:
		return vocerr.New(vocerr.KindAuthFailure, err)

	case http.StatusTooManyRequests:
		return vocerr.NewRateLimited(err, time.Time{})
	}

	return vocerr.New(vocerr.KindOther, err)
}
