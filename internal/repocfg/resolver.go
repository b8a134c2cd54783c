package repocfg

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/logfields"
	"github.com/vocoder/vocoder/internal/vocerr"
)

const loggerName = "config_resolver"

// ErrNotFound is returned when no parseable configuration document exists at
// any of the fallback revisions. It is a normal outcome, the caller skips
// processing the event.
var ErrNotFound = errors.New("no localization configuration found")

// ContentReader is the subset of the github client used for resolving
// configuration documents.
type ContentReader interface {
	FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

// Resolver reads the configuration document of a repository.
// The document is read fresh from the repository on every call, resolved
// configurations are never cached across events.
type Resolver struct {
	clt    ContentReader
	path   string
	logger *zap.Logger
}

func NewResolver(clt ContentReader) *Resolver {
	return &Resolver{
		clt:    clt,
		path:   Path,
		logger: zap.L().Named(loggerName),
	}
}

// ResolveForPullRequest resolves the configuration for a pull request event.
// Revisions are attempted in the order: pull-request head SHA, pull-request
// base branch, repository default branch. The first revision that yields a
// parseable document wins.
func (r *Resolver) ResolveForPullRequest(ctx context.Context, owner, repo, headSHA, baseBranch string) (*Config, error) {
	revisions := []string{headSHA, baseBranch}
	revisions = r.appendDefaultBranch(ctx, owner, repo, revisions)

	return r.resolve(ctx, owner, repo, revisions)
}

// ResolveForPush resolves the configuration for a push event.
// Revisions are attempted in the order: pushed branch, repository default
// branch.
func (r *Resolver) ResolveForPush(ctx context.Context, owner, repo, branch string) (*Config, error) {
	revisions := r.appendDefaultBranch(ctx, owner, repo, []string{branch})

	return r.resolve(ctx, owner, repo, revisions)
}

func (r *Resolver) appendDefaultBranch(ctx context.Context, owner, repo string, revisions []string) []string {
	defaultBranch, err := r.clt.DefaultBranch(ctx, owner, repo)
	if err != nil {
		r.logger.Warn(
			"could not determine default branch, revision skipped in configuration fallback",
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
			logfields.Event("config_default_branch_lookup_failed"),
			zap.Error(err),
		)

		return revisions
	}

	for _, rev := range revisions {
		if rev == defaultBranch {
			return revisions
		}
	}

	return append(revisions, defaultBranch)
}

func (r *Resolver) resolve(ctx context.Context, owner, repo string, revisions []string) (*Config, error) {
	logger := r.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
	)

	for _, revision := range revisions {
		if revision == "" {
			continue
		}

		cfg, found := r.tryRevision(ctx, logger, owner, repo, revision)
		if found {
			return cfg, nil
		}
	}

	logger.Debug(
		"no configuration found at any fallback revision",
		logfields.Event("config_not_found"),
		zap.Strings("revisions", revisions),
	)

	return nil, ErrNotFound
}

// tryRevision reads and parses the configuration file at one revision.
// A missing file is a normal not-found outcome. A malformed document or a
// failing read is logged and also treated as not found instead of being
// propagated, the next fallback revision is attempted.
func (r *Resolver) tryRevision(ctx context.Context, logger *zap.Logger, owner, repo, revision string) (*Config, bool) {
	logger = logger.With(zap.String("git.revision", revision))

	raw, err := r.clt.FileContent(ctx, owner, repo, r.path, revision)
	if err != nil {
		if vocerr.IsNotFound(err) {
			logger.Debug(
				"configuration file does not exist at revision",
				logfields.Event("config_file_not_found"),
			)

			return nil, false
		}

		logger.Warn(
			"reading configuration file failed, revision treated as not found",
			logfields.Event("config_file_read_failed"),
			zap.Error(err),
		)

		return nil, false
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn(
			"configuration file is malformed, revision treated as not found",
			logfields.Event("config_file_malformed"),
			zap.Error(err),
		)

		return nil, false
	}

	cfg, decisions := Validate(doc)
	for i := range decisions {
		logger.Info(
			"configuration field replaced by default value",
			logfields.Event("config_field_defaulted"),
			zap.String("field", decisions[i].Field),
			zap.String("reason", decisions[i].Reason),
		)
	}

	logger.Debug(
		"configuration resolved",
		logfields.Event("config_resolved"),
		zap.Strings("target_branches", cfg.TargetBranches),
		zap.String("source_file", cfg.SourceFile),
		zap.String("source_locale", cfg.SourceLocale),
		logfields.Locales(cfg.TargetLocales),
		zap.String("output_dir", cfg.OutputDir),
	)

	return cfg, true
}
