package repocfg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/vocoder/vocoder/internal/vocerr"
)

type fakeContentReader struct {
	// files maps revision -> raw configuration document
	files            map[string][]byte
	defaultBranch    string
	defaultBranchErr error

	readRevisions []string
}

func (f *fakeContentReader) FileContent(_ context.Context, _, _, path, ref string) ([]byte, error) {
	f.readRevisions = append(f.readRevisions, ref)

	raw, exist := f.files[ref]
	if !exist {
		return nil, vocerr.New(vocerr.KindNotFound, errors.New(path+" does not exist"))
	}

	return raw, nil
}

func (f *fakeContentReader) DefaultBranch(context.Context, string, string) (string, error) {
	if f.defaultBranchErr != nil {
		return "", f.defaultBranchErr
	}

	return f.defaultBranch, nil
}

func TestResolveForPullRequestPrefersHeadRevision(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	reader := fakeContentReader{
		files: map[string][]byte{
			"headsha": []byte(`{"sourceLocale": "de"}`),
			"main":    []byte(`{"sourceLocale": "en"}`),
		},
		defaultBranch: "main",
	}

	cfg, err := NewResolver(&reader).ResolveForPullRequest(context.Background(), "owner", "repo", "headsha", "main")
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.SourceLocale)
	assert.Equal(t, []string{"headsha"}, reader.readRevisions)
}

func TestResolveForPullRequestFallsBackToDefaultBranch(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	reader := fakeContentReader{
		files: map[string][]byte{
			"develop": []byte(`{"sourceLocale": "fr"}`),
		},
		defaultBranch: "develop",
	}

	cfg, err := NewResolver(&reader).ResolveForPullRequest(context.Background(), "owner", "repo", "headsha", "main")
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.SourceLocale)
	assert.Equal(t, []string{"headsha", "main", "develop"}, reader.readRevisions)
}

func TestResolveReturnsErrNotFoundWhenNoRevisionHasConfig(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	reader := fakeContentReader{defaultBranch: "main"}

	_, err := NewResolver(&reader).ResolveForPullRequest(context.Background(), "owner", "repo", "headsha", "main")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMalformedConfigTriesNextRevision(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	reader := fakeContentReader{
		files: map[string][]byte{
			"headsha": []byte(`{invalid json`),
			"main":    []byte(`{"sourceLocale": "en"}`),
		},
		defaultBranch: "main",
	}

	cfg, err := NewResolver(&reader).ResolveForPullRequest(context.Background(), "owner", "repo", "headsha", "main")
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.SourceLocale)
	assert.Equal(t, []string{"headsha", "main"}, reader.readRevisions)
}

func TestResolveDefaultBranchLookupFailureIsNotFatal(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	reader := fakeContentReader{
		files: map[string][]byte{
			"main": []byte(`{}`),
		},
		defaultBranchErr: errors.New("api unavailable"),
	}

	cfg, err := NewResolver(&reader).ResolveForPullRequest(context.Background(), "owner", "repo", "headsha", "main")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestResolveForPushUsesPushedBranchFirst(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	reader := fakeContentReader{
		files: map[string][]byte{
			"release-1": []byte(`{"outputDir": "translations"}`),
		},
		defaultBranch: "main",
	}

	cfg, err := NewResolver(&reader).ResolveForPush(context.Background(), "owner", "repo", "release-1")
	require.NoError(t, err)

	assert.Equal(t, "translations", cfg.OutputDir)
	assert.Equal(t, []string{"release-1"}, reader.readRevisions)
}
