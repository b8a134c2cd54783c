package prsync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/vocoder/vocoder/internal/diff"
	"github.com/vocoder/vocoder/internal/githubclt"
	"github.com/vocoder/vocoder/internal/translate"
)

func testChangeSet() *diff.ChangeSet {
	return diff.Diff(
		map[string]string{"a": "1"},
		map[string]string{"a": "1", "b": "2"},
	)
}

func testTranslations() translate.Result {
	return translate.Result{
		"de": {"b": "[DE] 2"},
	}
}

func TestCommitLocalesParentIsFreshBranchHead(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	clt := newFakeGithubClient()
	// the branch advanced since the triggering event was received
	clt.headSHA = "advancedsha"

	committer := NewCommitter(clt)

	commitSHA, err := committer.CommitLocales(context.Background(), newTestPR(t), testTranslations(), "locales", testChangeSet())
	require.NoError(t, err)

	commits := clt.recordedCommits()
	require.Len(t, commits, 1)
	assert.Equal(t, "advancedsha", commits[0].ParentSHA)
	assert.NotEqual(t, "headsha", commits[0].ParentSHA)
	assert.Equal(t, []string{commitSHA}, clt.refUpdates)
}

func TestCommitLocalesRetriesWhenHeadMovesDuringConstruction(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	clt := newFakeGithubClient()
	clt.headSHA = "head1"

	attempts := 0
	clt.updateRefHook = func() error {
		attempts++
		if attempts == 1 {
			// simulate a commit that landed between head read and ref update
			clt.mu.Lock()
			clt.headSHA = "head2"
			clt.mu.Unlock()

			return fmt.Errorf("%w: update refused", githubclt.ErrRefNotFastForward)
		}

		return nil
	}

	committer := NewCommitter(clt)

	commitSHA, err := committer.CommitLocales(context.Background(), newTestPR(t), testTranslations(), "locales", testChangeSet())
	require.NoError(t, err)

	require.Equal(t, 2, attempts)

	commits := clt.recordedCommits()
	require.Len(t, commits, 2)
	assert.Equal(t, "head1", commits[0].ParentSHA)
	assert.Equal(t, "head2", commits[1].ParentSHA)

	assert.Equal(t, []string{commitSHA}, clt.refUpdates)
	assert.Equal(t, clt.commitSHAs[1], commitSHA)
}

func TestCommitLocalesDoesNotRetryOtherErrors(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	clt := newFakeGithubClient()

	attempts := 0
	clt.updateRefHook = func() error {
		attempts++
		return assert.AnError
	}

	committer := NewCommitter(clt)

	_, err := committer.CommitLocales(context.Background(), newTestPR(t), testTranslations(), "locales", testChangeSet())
	require.Error(t, err)

	assert.Equal(t, 1, attempts)
	assert.Empty(t, clt.refUpdates)
}

func TestCommitLocalesMergesOverExistingLocaleFile(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	clt := newFakeGithubClient()
	clt.addFile("headsha", "locales/de.json", []byte(`{"existing": "[DE] old"}`))

	committer := NewCommitter(clt)

	_, err := committer.CommitLocales(context.Background(), newTestPR(t), testTranslations(), "locales", testChangeSet())
	require.NoError(t, err)

	commits := clt.recordedCommits()
	require.Len(t, commits, 1)

	content, err := clt.blobContent(commits[0].TreeSHA, "locales/de.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": \"[DE] 2\",\n  \"existing\": \"[DE] old\"\n}\n", string(content))
}

func TestCommitLocalesMalformedExistingFileIsRewritten(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	clt := newFakeGithubClient()
	clt.addFile("headsha", "locales/de.json", []byte(`{broken`))

	committer := NewCommitter(clt)

	_, err := committer.CommitLocales(context.Background(), newTestPR(t), testTranslations(), "locales", testChangeSet())
	require.NoError(t, err)

	commits := clt.recordedCommits()
	require.Len(t, commits, 1)

	content, err := clt.blobContent(commits[0].TreeSHA, "locales/de.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": \"[DE] 2\"\n}\n", string(content))
}

func TestCommitLocalesWritesOneFilePerLocale(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	clt := newFakeGithubClient()
	committer := NewCommitter(clt)

	translations := translate.Result{
		"de": {"b": "[DE] 2"},
		"es": {"b": "[ES] 2"},
	}

	_, err := committer.CommitLocales(context.Background(), newTestPR(t), translations, "i18n", testChangeSet())
	require.NoError(t, err)

	commits := clt.recordedCommits()
	require.Len(t, commits, 1)

	for _, locale := range []string{"de", "es"} {
		_, err := clt.blobContent(commits[0].TreeSHA, "i18n/"+locale+".json")
		assert.NoErrorf(t, err, "no tree entry for locale %s", locale)
	}
}
