package prsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/go-github/v59/github"

	"github.com/vocoder/vocoder/internal/githubclt"
	"github.com/vocoder/vocoder/internal/vocerr"
)

type fakeCommit struct {
	Message   string
	TreeSHA   string
	ParentSHA string
}

type fakeStatus struct {
	SHA         string
	State       string
	Context     string
	Description string
}

// fakeGithubClient is an in-memory GithubClient.
// Read methods serve from the files map, write methods record the created
// objects. It is safe for concurrent use, source documents are fetched from
// multiple goroutines.
type fakeGithubClient struct {
	mu sync.Mutex

	// files maps revision -> file path -> raw content
	files         map[string]map[string][]byte
	defaultBranch string
	headSHA       string

	blobs      map[string][]byte
	trees      map[string][]githubclt.TreeEntry
	commits    map[string]fakeCommit
	commitSHAs []string
	statuses   []fakeStatus
	refUpdates []string

	// updateRefHook, when set, is consulted before a ref update is recorded
	updateRefHook func() error

	openPRs []*github.PullRequest
	listErr error

	objectCnt int
}

func newFakeGithubClient() *fakeGithubClient {
	return &fakeGithubClient{
		files:         map[string]map[string][]byte{},
		defaultBranch: "main",
		headSHA:       "headsha",
		blobs:         map[string][]byte{},
		trees:         map[string][]githubclt.TreeEntry{},
		commits:       map[string]fakeCommit{},
	}
}

func (f *fakeGithubClient) addFile(ref, path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.files[ref] == nil {
		f.files[ref] = map[string][]byte{}
	}

	f.files[ref][path] = content
}

func (f *fakeGithubClient) FileContent(_ context.Context, _, _, path, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, exist := f.files[ref][path]
	if !exist {
		return nil, vocerr.New(vocerr.KindNotFound, fmt.Errorf("%s does not exist at %s", path, ref))
	}

	return content, nil
}

func (f *fakeGithubClient) DefaultBranch(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.defaultBranch, nil
}

func (f *fakeGithubClient) BranchHeadSHA(context.Context, string, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.headSHA, nil
}

func (f *fakeGithubClient) CommitTreeSHA(_ context.Context, _, _, commitSHA string) (string, error) {
	return "tree-of-" + commitSHA, nil
}

func (f *fakeGithubClient) CreateBlob(_ context.Context, _, _ string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.objectCnt++
	sha := fmt.Sprintf("blob-%d", f.objectCnt)
	f.blobs[sha] = content

	return sha, nil
}

func (f *fakeGithubClient) CreateTree(_ context.Context, _, _, _ string, entries []githubclt.TreeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.objectCnt++
	sha := fmt.Sprintf("tree-%d", f.objectCnt)
	f.trees[sha] = entries

	return sha, nil
}

func (f *fakeGithubClient) CreateCommit(_ context.Context, _, _, message, treeSHA, parentSHA string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.objectCnt++
	sha := fmt.Sprintf("commit-%d", f.objectCnt)
	f.commits[sha] = fakeCommit{
		Message:   message,
		TreeSHA:   treeSHA,
		ParentSHA: parentSHA,
	}
	f.commitSHAs = append(f.commitSHAs, sha)

	return sha, nil
}

func (f *fakeGithubClient) UpdateBranchRef(_ context.Context, _, _, _, commitSHA string) error {
	f.mu.Lock()
	hook := f.updateRefHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.headSHA = commitSHA
	f.refUpdates = append(f.refUpdates, commitSHA)

	return nil
}

func (f *fakeGithubClient) CreateCommitStatus(_ context.Context, _, _, sha, state, statusContext, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statuses = append(f.statuses, fakeStatus{
		SHA:         sha,
		State:       state,
		Context:     statusContext,
		Description: description,
	})

	return nil
}

func (f *fakeGithubClient) ListOpenPullRequests(context.Context, string, string, string) githubclt.PRIterator {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &fakePRIterator{prs: f.openPRs, err: f.listErr}
}

func (f *fakeGithubClient) recordedStatuses() []fakeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]fakeStatus{}, f.statuses...)
}

func (f *fakeGithubClient) recordedCommits() []fakeCommit {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]fakeCommit, 0, len(f.commitSHAs))
	for _, sha := range f.commitSHAs {
		result = append(result, f.commits[sha])
	}

	return result
}

func (f *fakeGithubClient) blobContent(treeSHA, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range f.trees[treeSHA] {
		if entry.Path == path {
			return f.blobs[entry.BlobSHA], nil
		}
	}

	return nil, errors.New("no tree entry for " + path)
}

type fakePRIterator struct {
	prs []*github.PullRequest
	err error
}

func (it *fakePRIterator) Next() (*github.PullRequest, error) {
	if it.err != nil {
		return nil, it.err
	}

	if len(it.prs) == 0 {
		return nil, nil
	}

	pr := it.prs[0]
	it.prs = it.prs[1:]

	return pr, nil
}
