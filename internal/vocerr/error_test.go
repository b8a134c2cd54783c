package vocerr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindHelpersMatchWrappedErrors(t *testing.T) {
	base := errors.New("remote call failed")

	notFound := fmt.Errorf("reading file failed: %w", New(KindNotFound, base))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsAuthFailure(notFound))
	assert.False(t, IsRateLimited(notFound))

	assert.True(t, IsAuthFailure(New(KindAuthFailure, base)))
	assert.True(t, IsRateLimited(NewRateLimited(base, time.Time{})))

	assert.False(t, IsNotFound(base))
	assert.False(t, IsNotFound(nil))
}

func TestErrorStringContainsKindAndCause(t *testing.T) {
	err := New(KindNotFound, errors.New("no such file"))

	assert.Equal(t, "not_found: no such file", err.Error())
	assert.Equal(t, "no such file", errors.Unwrap(err).Error())
}

func TestNewRateLimitedRecordsRetryAfter(t *testing.T) {
	reset := time.Now().Add(time.Hour)
	err := NewRateLimited(errors.New("rate limit exceeded"), reset)

	assert.Equal(t, reset, err.RetryAfter)
	assert.Equal(t, KindRateLimited, err.Kind)
}
