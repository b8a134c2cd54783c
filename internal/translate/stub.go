package translate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/logfields"
)

// Stub is a translation gateway for testing and evaluation setups.
// It marks each value with an uppercase locale prefix instead of calling a
// translation provider, e.g. "Hi" becomes "[ES] Hi" for locale "es".
// It must be selected explicitly, a missing provider API key never silently
// falls back to it.
type Stub struct {
	logger *zap.Logger
}

func NewStub() *Stub {
	return &Stub{
		logger: zap.L().Named("translation_stub"),
	}
}

func (s *Stub) Translate(_ context.Context, req *Request) (Result, error) {
	result := make(Result, len(req.TargetLocales))

	for _, locale := range req.TargetLocales {
		translated := make(map[string]string, len(req.Strings))
		for key, val := range req.Strings {
			translated[key] = "[" + strings.ToUpper(locale) + "] " + val
		}

		result[locale] = translated
	}

	s.logger.Debug(
		"produced stub translations",
		logfields.Event("stub_translation_produced"),
		zap.Int("string_count", len(req.Strings)),
		logfields.Locales(req.TargetLocales),
	)

	return result, nil
}
