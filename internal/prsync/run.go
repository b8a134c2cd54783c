package prsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/diff"
	"github.com/vocoder/vocoder/internal/logfields"
	"github.com/vocoder/vocoder/internal/repocfg"
	"github.com/vocoder/vocoder/internal/translate"
	"github.com/vocoder/vocoder/internal/vocerr"
)

// Commit status states reported to github.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// github truncates longer status descriptions
const maxStatusDescriptionLen = 140

// SyncResult is the terminal value of one synchronization pass.
type SyncResult struct {
	Success bool
	// Skipped is true when the pass ended without any remote write, e.g.
	// because no configuration was found or the base branch is not
	// monitored. A skipped pass is a normal, silent outcome, no commit
	// status is reported for it.
	Skipped          bool
	ChangesProcessed int
	LocalesUpdated   int
	CommitSHA        string
	Err              error
}

// Process runs one full synchronization pass for a pull request.
// Every terminal Success or Failure outcome reports exactly one
// corresponding commit status on the head revision, Skipped outcomes report
// none. An unexpected panic anywhere in the pass is caught here, logged and
// best-effort mapped to a failure status, it never terminates the process.
func (s *Syncer) Process(ctx context.Context, pr *PullRequestContext) (result *SyncResult) {
	logger := s.logger.With(pr.LogFields...)
	stat := syncStat{StartTime: time.Now()}

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		logger.Error(
			"unexpected panic during synchronization pass",
			logfields.Event("sync_pass_panicked"),
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		result = &SyncResult{Err: fmt.Errorf("unexpected error: %v", r)}
		s.setStatus(ctx, logger, pr, StatusFailure, failureDescription(result.Err))
		metrics.SyncPassesInc(resultLabelFailure)
	}()

	result = s.run(ctx, logger, pr)

	stat.EndTime = time.Now()
	stat.Changes = result.ChangesProcessed
	stat.LocalesUpdated = result.LocalesUpdated

	switch {
	case result.Skipped:
		metrics.SyncPassesInc(resultLabelSkipped)
		logger.Debug("synchronization pass skipped", logfields.Event("sync_pass_skipped"))

	case result.Success:
		s.setStatus(ctx, logger, pr, StatusSuccess, successDescription(result))
		metrics.SyncPassesInc(resultLabelSuccess)
		metrics.TranslatedStringsAdd(result.ChangesProcessed * result.LocalesUpdated)
		logger.Info("synchronization pass finished", stat.LogFields()...)

	default:
		s.setStatus(ctx, logger, pr, StatusFailure, failureDescription(result.Err))
		metrics.SyncPassesInc(resultLabelFailure)
		logger.Error(
			"synchronization pass failed",
			append(stat.LogFields(), zap.Error(result.Err))...,
		)
	}

	return result
}

// run drives the state machine of one pass:
// config resolution, monitored-branch check, source diff, translation,
// branch commit. It emits the pending status, terminal statuses are emitted
// by Process.
func (s *Syncer) run(ctx context.Context, logger *zap.Logger, pr *PullRequestContext) *SyncResult {
	cfg, err := s.resolver.ResolveForPullRequest(ctx, pr.Owner, pr.Repo, pr.HeadSHA, pr.BaseRef)
	if err != nil {
		if !errors.Is(err, repocfg.ErrNotFound) {
			logger.Warn(
				"resolving configuration failed, pass skipped",
				logfields.Event("config_resolution_failed"),
				zap.Error(err),
			)
		}

		return &SyncResult{Skipped: true}
	}

	if !cfg.IsTargetBranch(pr.BaseRef) {
		logger.Debug(
			"base branch matches no configured branch pattern",
			logfields.Event("base_branch_not_monitored"),
		)

		return &SyncResult{Skipped: true}
	}

	s.setStatus(ctx, logger, pr, StatusPending, "Localization sync in progress")

	base, head, err := s.fetchSourceDocuments(ctx, cfg, pr)
	if err != nil {
		return &SyncResult{Err: err}
	}

	changes := diff.Diff(base, head)
	if changes.IsEmpty() {
		logger.Debug(
			"source document is unchanged",
			logfields.Event("source_document_unchanged"),
		)

		return &SyncResult{Success: true}
	}

	sourceStrings := changes.SourceStrings()
	if len(sourceStrings) == 0 {
		// change-set contains deletions only, stale keys are left in
		// the committed locale files
		logger.Info(
			"only deleted keys in change-set, locale files left untouched",
			logfields.Event("deletions_only_changeset"),
			zap.Int("deleted_keys", len(changes.Deleted)),
		)

		return &SyncResult{Success: true, ChangesProcessed: changes.Len()}
	}

	translations, err := s.gateway.Translate(ctx, &translate.Request{
		Strings:       sourceStrings,
		SourceLocale:  cfg.SourceLocale,
		TargetLocales: cfg.TargetLocales,
		APIKey:        cfg.ProjectAPIKey,
	})
	if err != nil {
		return &SyncResult{Err: fmt.Errorf("translation failed: %w", err)}
	}

	commitSHA, err := s.committer.CommitLocales(ctx, pr, translations, cfg.OutputDir, changes)
	if err != nil {
		return &SyncResult{Err: fmt.Errorf("committing translated locale files failed: %w", err)}
	}

	metrics.CommitsInc()

	return &SyncResult{
		Success:          true,
		ChangesProcessed: changes.Len(),
		LocalesUpdated:   len(translations),
		CommitSHA:        commitSHA,
	}
}

// fetchSourceDocuments reads and flattens the source-string document at the
// base and head revisions. The two reads are issued concurrently and joined
// before returning, they are the only parallelism within one pass.
func (s *Syncer) fetchSourceDocuments(ctx context.Context, cfg *repocfg.Config, pr *PullRequestContext) (base, head map[string]string, err error) {
	type fetchResult struct {
		doc map[string]string
		err error
	}

	fetch := func(ref, side string, c chan<- fetchResult) {
		raw, err := s.clt.FileContent(ctx, pr.Owner, pr.Repo, cfg.SourceFile, ref)
		if err != nil {
			if vocerr.IsNotFound(err) {
				err = fmt.Errorf("source file %s is missing on %s revision %s", cfg.SourceFile, side, ref)
			} else {
				err = fmt.Errorf("reading source file %s at %s revision %s failed: %w", cfg.SourceFile, side, ref, err)
			}

			c <- fetchResult{err: err}
			return
		}

		doc, err := diff.ParseDocument(raw)
		if err != nil {
			c <- fetchResult{err: fmt.Errorf("parsing source file %s at %s revision %s failed: %w", cfg.SourceFile, side, ref, err)}
			return
		}

		c <- fetchResult{doc: doc}
	}

	baseChan := make(chan fetchResult, 1)
	headChan := make(chan fetchResult, 1)

	go fetch(pr.BaseSHA, "base", baseChan)
	go fetch(pr.HeadSHA, "head", headChan)

	baseResult := <-baseChan
	headResult := <-headChan

	if headResult.err != nil {
		return nil, nil, headResult.err
	}

	if baseResult.err != nil {
		return nil, nil, baseResult.err
	}

	return baseResult.doc, headResult.doc, nil
}

// setStatus reports a commit status on the pull request's head revision.
// A failing status call is logged and never retried or escalated, it must
// not abort the surrounding pass.
func (s *Syncer) setStatus(ctx context.Context, logger *zap.Logger, pr *PullRequestContext, state, description string) {
	err := s.clt.CreateCommitStatus(ctx, pr.Owner, pr.Repo, pr.HeadSHA, state, s.statusContext, description)
	if err != nil {
		logger.Warn(
			"creating commit status failed",
			logfields.Event("commit_status_creation_failed"),
			zap.String("status_state", state),
			zap.Error(err),
		)
	}
}

func successDescription(result *SyncResult) string {
	if result.ChangesProcessed == 0 {
		return "No translatable string changes"
	}

	if result.LocalesUpdated == 0 {
		return fmt.Sprintf("Processed %d deleted strings, locale files unchanged", result.ChangesProcessed)
	}

	return fmt.Sprintf(
		"Processed %d changed strings, updated %d locales",
		result.ChangesProcessed, result.LocalesUpdated,
	)
}

func failureDescription(err error) string {
	description := "Localization sync failed: " + err.Error()
	if len(description) > maxStatusDescriptionLen {
		description = description[:maxStatusDescriptionLen-3] + "..."
	}

	return description
}
