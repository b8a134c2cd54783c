package prsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/diff"
	"github.com/vocoder/vocoder/internal/githubclt"
	"github.com/vocoder/vocoder/internal/logfields"
	"github.com/vocoder/vocoder/internal/translate"
	"github.com/vocoder/vocoder/internal/vocerr"
)

// DefMaxCommitRetries bounds how often a commit construction is repeated
// when the branch head moves while it is being built.
const DefMaxCommitRetries = 3

// Committer appends translated locale files as a new commit onto an
// existing branch.
type Committer struct {
	clt        GithubClient
	logger     *zap.Logger
	maxRetries uint64
}

func NewCommitter(clt GithubClient) *Committer {
	return &Committer{
		clt:        clt,
		logger:     zap.L().Named("branch_committer"),
		maxRetries: DefMaxCommitRetries,
	}
}

// CommitLocales creates one commit containing one file per translated locale
// at {outputDir}/{locale}.json and points the pull-request branch at it.
//
// The commit is always based on a freshly read branch head, not on the head
// recorded when the triggering event was received, so commits that landed on
// the branch in the meantime are preserved. The ref update is a
// compare-and-swap: it is rejected by github when it would not be a
// fast-forward, in which case the whole construction is retried with a fresh
// head read, bounded by maxRetries. Objects created by an aborted attempt
// stay unreferenced in github's object store, object creation is idempotent
// and content-addressed.
func (c *Committer) CommitLocales(ctx context.Context, pr *PullRequestContext, translations translate.Result, outputDir string, changes *diff.ChangeSet) (string, error) {
	var commitSHA string

	op := func() error {
		sha, err := c.tryCommit(ctx, pr, translations, outputDir, changes)
		if err != nil {
			if errors.Is(err, githubclt.ErrRefNotFastForward) {
				c.logger.Info(
					"branch head moved during commit construction, retrying with fresh head",
					append(pr.LogFields, logfields.Event("commit_head_moved"))...,
				)

				return err
			}

			return backoff.Permanent(err)
		}

		commitSHA = sha

		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}

	return commitSHA, nil
}

func (c *Committer) tryCommit(ctx context.Context, pr *PullRequestContext, translations translate.Result, outputDir string, changes *diff.ChangeSet) (string, error) {
	head, err := c.clt.BranchHeadSHA(ctx, pr.Owner, pr.Repo, pr.HeadRef)
	if err != nil {
		return "", fmt.Errorf("reading current branch head failed: %w", err)
	}

	baseTreeSHA, err := c.clt.CommitTreeSHA(ctx, pr.Owner, pr.Repo, head)
	if err != nil {
		return "", fmt.Errorf("reading tree of branch head %s failed: %w", head, err)
	}

	locales := sortedLocales(translations)

	entries := make([]githubclt.TreeEntry, 0, len(locales))
	for _, locale := range locales {
		filePath := localeFilePath(outputDir, locale)

		content, err := c.localeFileContent(ctx, pr, head, filePath, translations[locale])
		if err != nil {
			return "", fmt.Errorf("building content of %s failed: %w", filePath, err)
		}

		blobSHA, err := c.clt.CreateBlob(ctx, pr.Owner, pr.Repo, content)
		if err != nil {
			return "", fmt.Errorf("creating blob for %s failed: %w", filePath, err)
		}

		entries = append(entries, githubclt.TreeEntry{
			Path:    filePath,
			BlobSHA: blobSHA,
		})
	}

	treeSHA, err := c.clt.CreateTree(ctx, pr.Owner, pr.Repo, baseTreeSHA, entries)
	if err != nil {
		return "", fmt.Errorf("creating tree failed: %w", err)
	}

	commitSHA, err := c.clt.CreateCommit(ctx, pr.Owner, pr.Repo, commitMessage(changes, locales), treeSHA, head)
	if err != nil {
		return "", fmt.Errorf("creating commit failed: %w", err)
	}

	if err := c.clt.UpdateBranchRef(ctx, pr.Owner, pr.Repo, pr.HeadRef, commitSHA); err != nil {
		return "", err
	}

	c.logger.Info(
		"translated locale files committed",
		append(pr.LogFields,
			logfields.Event("locale_files_committed"),
			logfields.Locales(locales),
			zap.String("git.new_commit", commitSHA),
			zap.String("git.parent_commit", head),
		)...,
	)

	return commitSHA, nil
}

// localeFileContent merges the translated values over the locale file that
// already exists at the current head, keys missing from the translation
// result keep their committed value. Keys that were deleted from the source
// document are not pruned.
func (c *Committer) localeFileContent(ctx context.Context, pr *PullRequestContext, headSHA, filePath string, translated map[string]string) ([]byte, error) {
	merged := map[string]string{}

	raw, err := c.clt.FileContent(ctx, pr.Owner, pr.Repo, filePath, headSHA)
	switch {
	case err == nil:
		existing, parseErr := diff.ParseDocument(raw)
		if parseErr != nil {
			c.logger.Warn(
				"existing locale file is malformed, rewriting it from scratch",
				append(pr.LogFields,
					logfields.Event("locale_file_malformed"),
					zap.String("file_path", filePath),
					zap.Error(parseErr),
				)...,
			)
		} else {
			merged = existing
		}

	case vocerr.IsNotFound(err):
		// first translation into this locale

	default:
		return nil, err
	}

	for key, val := range translated {
		merged[key] = val
	}

	return marshalLocaleDocument(merged)
}

// marshalLocaleDocument serializes a flat locale document with stable
// formatting, json.Marshal orders map keys lexicographically.
func marshalLocaleDocument(doc map[string]string) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(raw, '\n'), nil
}

func localeFilePath(outputDir, locale string) string {
	return path.Join(outputDir, locale+".json")
}

func sortedLocales(translations translate.Result) []string {
	locales := make([]string, 0, len(translations))
	for locale := range translations {
		locales = append(locales, locale)
	}

	sort.Strings(locales)

	return locales
}
