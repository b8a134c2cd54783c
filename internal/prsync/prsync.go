package prsync

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	github_prov "github.com/vocoder/vocoder/internal/provider/github"

	"github.com/vocoder/vocoder/internal/githubclt"
	"github.com/vocoder/vocoder/internal/logfields"
	"github.com/vocoder/vocoder/internal/repocfg"
	"github.com/vocoder/vocoder/internal/translate"
)

const loggerName = "syncer"

const DefEventChannelBufferSize = 512

// DefStatusContext is the name under which commit statuses are reported.
const DefStatusContext = "vocoder/localization"

type GithubClient interface {
	FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	BranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error)
	CommitTreeSHA(ctx context.Context, owner, repo, commitSHA string) (string, error)
	CreateBlob(ctx context.Context, owner, repo string, content []byte) (string, error)
	CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []githubclt.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parentSHA string) (string, error)
	UpdateBranchRef(ctx context.Context, owner, repo, branch, commitSHA string) error
	CreateCommitStatus(ctx context.Context, owner, repo, sha, state, statusContext, description string) error
	ListOpenPullRequests(ctx context.Context, owner, repo, baseBranch string) githubclt.PRIterator
}

// Syncer consumes github webhook events and runs one synchronization pass
// per pull request.
// Every delivery is handled in its own goroutine, passes for different pull
// requests run concurrently without coordination. There is no shared mutable
// state across passes, all entities are reconstructed per event.
type Syncer struct {
	clt       GithubClient
	gateway   translate.Gateway
	resolver  *repocfg.Resolver
	committer *Committer

	statusContext string

	ch     chan *github_prov.Event
	logger *zap.Logger

	routineDeferFn    func()
	processedEventCnt atomic.Uint64

	wg sync.WaitGroup
}

type option func(*Syncer)

// WithRoutineDeferFunc sets a function that is deferred in every goroutine
// the syncer starts. It can be used to install a panic handler.
func WithRoutineDeferFunc(fn func()) option {
	return func(s *Syncer) {
		s.routineDeferFn = fn
	}
}

// WithStatusContext overrides the name of the reported commit status.
func WithStatusContext(name string) option {
	return func(s *Syncer) {
		s.statusContext = name
	}
}

func NewSyncer(clt GithubClient, gateway translate.Gateway, opts ...option) *Syncer {
	s := Syncer{
		clt:           clt,
		gateway:       gateway,
		resolver:      repocfg.NewResolver(clt),
		statusContext: DefStatusContext,
		ch:            make(chan *github_prov.Event, DefEventChannelBufferSize),
		logger:        zap.L().Named(loggerName),
	}

	s.committer = NewCommitter(clt)

	for _, opt := range opts {
		opt(&s)
	}

	return &s
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (s *Syncer) C() chan<- *github_prov.Event {
	return s.ch
}

func (s *Syncer) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.routineDeferFn != nil {
			defer s.routineDeferFn()
		}

		s.EventLoop()
	}()
}

// Stop closes the event channel and waits until all running synchronization
// passes terminated.
func (s *Syncer) Stop() {
	s.logger.Debug("syncer terminating", logfields.Event("syncer_terminating"))

	close(s.ch)
	s.wg.Wait()

	s.logger.Debug("syncer terminated", logfields.Event("syncer_terminated"))
}

var logFieldEventIgnored = logfields.Event("github_event_ignored")

func (s *Syncer) EventLoop() {
	s.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	for event := range s.ch {
		metrics.ProcessedEventsInc()

		logger := s.logger.With(event.LogFields...)
		logger.Debug("event received", logfields.Event("event_received"))

		switch ev := event.Event.(type) {
		case *github.PullRequestEvent:
			s.processPullRequestEvent(logger, ev)

		case *github.PushEvent:
			s.processPushEvent(logger, ev)

		case *github.InstallationEvent:
			// default-configuration bootstrap on installation is
			// handled by an external component
			logger.Info(
				"installation event received, nothing to do",
				zap.String("github.installation_event.action", ev.GetAction()),
			)
			s.processedEventCnt.Add(1)

		default:
			logger.Debug("event ignored", logFieldEventIgnored)
			s.processedEventCnt.Add(1)
		}
	}

	s.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

// dispatch runs fn in its own goroutine, one per webhook delivery.
func (s *Syncer) dispatch(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.processedEventCnt.Add(1)
		if s.routineDeferFn != nil {
			defer s.routineDeferFn()
		}

		fn()
	}()
}

func (s *Syncer) processPullRequestEvent(logger *zap.Logger, ev *github.PullRequestEvent) {
	action := ev.GetAction()
	logger = logger.With(zap.String("github.pull_request_event.action", action))

	switch action {
	case "opened", "synchronize", "reopened":
	default:
		logger.Debug("ignoring pull-request event", logFieldEventIgnored)
		s.processedEventCnt.Add(1)
		return
	}

	pr, err := NewPullRequestContextFromEvent(ev)
	if err != nil {
		logger.Warn(
			"ignoring event, incomplete pull-request information",
			logFieldEventIgnored,
			zap.Error(err),
		)
		s.processedEventCnt.Add(1)

		return
	}

	s.dispatch(func() {
		s.Process(context.Background(), pr)
	})
}

func (s *Syncer) processPushEvent(logger *zap.Logger, ev *github.PushEvent) {
	branch := branchRefToRef(ev.GetRef())

	owner := ev.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		owner = ev.GetRepo().GetOwner().GetName()
	}

	repo := ev.GetRepo().GetName()

	if owner == "" || repo == "" || branch == "" {
		logger.Warn(
			"ignoring event, incomplete repository or branch information",
			logFieldEventIgnored,
		)
		s.processedEventCnt.Add(1)

		return
	}

	s.dispatch(func() {
		s.Reprocess(context.Background(), owner, repo, branch)
	})
}

// Reprocess handles a push to a monitored branch.
// All open pull requests whose base is that branch are re-synchronized
// independently, a failing pass does not abort the remaining ones.
func (s *Syncer) Reprocess(ctx context.Context, owner, repo, branch string) {
	logger := s.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Branch(branch),
	)

	cfg, err := s.resolver.ResolveForPush(ctx, owner, repo, branch)
	if err != nil {
		logger.Debug(
			"skipping push event, no configuration resolved",
			logfields.Event("push_event_skipped"),
			zap.Error(err),
		)

		return
	}

	if !cfg.IsTargetBranch(branch) {
		logger.Debug(
			"skipping push event, branch is not monitored",
			logfields.Event("push_event_skipped"),
		)

		return
	}

	var seen, failed int

	it := s.clt.ListOpenPullRequests(ctx, owner, repo, branch)
	for {
		ghPr, err := it.Next()
		if err != nil {
			logger.Error(
				"listing open pull requests failed",
				logfields.Event("pull_request_listing_failed"),
				zap.Error(err),
			)

			return
		}

		if ghPr == nil { // iteration finished, no more results
			break
		}

		seen++

		pr, err := NewPullRequestContextFromPR(owner, repo, ghPr)
		if err != nil {
			logger.Warn(
				"skipping pull request, incomplete information in listing",
				logfields.PullRequest(ghPr.GetNumber()),
				zap.Error(err),
			)

			continue
		}

		if result := s.Process(ctx, pr); result.Err != nil {
			failed++
		}
	}

	logger.Info(
		"reprocessed open pull requests after push to base branch",
		logfields.Event("base_branch_reprocessed"),
		zap.Int("pull_requests_seen", seen),
		zap.Int("pull_requests_failed", failed),
	)
}

func branchRefToRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
