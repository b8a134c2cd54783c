package prsync

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/logfields"
)

// PullRequestContext is an immutable snapshot of a pull request taken from
// the triggering event or from a pull-request listing.
// It is the unit of work of one synchronization pass.
type PullRequestContext struct {
	Owner   string
	Repo    string
	Number  int
	BaseRef string
	BaseSHA string
	HeadRef string
	HeadSHA string

	LogFields []zap.Field
}

func NewPullRequestContext(owner, repo string, nr int, baseRef, baseSHA, headRef, headSHA string) (*PullRequestContext, error) {
	if owner == "" {
		return nil, errors.New("repository owner is empty")
	}

	if repo == "" {
		return nil, errors.New("repository is empty")
	}

	if nr <= 0 {
		return nil, fmt.Errorf("pull request number is %d, must be >0", nr)
	}

	if baseRef == "" || headRef == "" {
		return nil, errors.New("base or head branch is empty")
	}

	if baseSHA == "" || headSHA == "" {
		return nil, errors.New("base or head commit sha is empty")
	}

	return &PullRequestContext{
		Owner:   owner,
		Repo:    repo,
		Number:  nr,
		BaseRef: baseRef,
		BaseSHA: baseSHA,
		HeadRef: headRef,
		HeadSHA: headSHA,
		LogFields: []zap.Field{
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
			logfields.PullRequest(nr),
			logfields.BaseBranch(baseRef),
			logfields.Branch(headRef),
			logfields.Commit(headSHA),
		},
	}, nil
}

func NewPullRequestContextFromEvent(ev *github.PullRequestEvent) (*PullRequestContext, error) {
	pr := ev.GetPullRequest()

	return NewPullRequestContext(
		ev.GetRepo().GetOwner().GetLogin(),
		ev.GetRepo().GetName(),
		ev.GetNumber(),
		pr.GetBase().GetRef(),
		pr.GetBase().GetSHA(),
		pr.GetHead().GetRef(),
		pr.GetHead().GetSHA(),
	)
}

func NewPullRequestContextFromPR(owner, repo string, pr *github.PullRequest) (*PullRequestContext, error) {
	return NewPullRequestContext(
		owner,
		repo,
		pr.GetNumber(),
		pr.GetBase().GetRef(),
		pr.GetBase().GetSHA(),
		pr.GetHead().GetRef(),
		pr.GetHead().GetSHA(),
	)
}
