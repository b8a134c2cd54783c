package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/logfields"
	"github.com/vocoder/vocoder/internal/vocerr"
)

const DefaultHTTPClientTimeout = time.Minute

// Provider is a translation gateway backed by a remote HTTP translation
// service.
// Per target locale one batch request with all changed strings is sent, the
// request count is bounded by the locale count, not by the key count.
type Provider struct {
	url    string
	clt    *http.Client
	logger *zap.Logger
}

// providerRequest is the wire format of one batch translation call.
type providerRequest struct {
	Texts      []string `json:"texts"`
	SourceLang string   `json:"sourceLang"`
	TargetLang string   `json:"targetLang"`
}

type providerResponse struct {
	Translations []string `json:"translations"`
	Error        string   `json:"error,omitempty"`
}

func NewProvider(url string) *Provider {
	return &Provider{
		url: url,
		clt: &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		},
		logger: zap.L().Named("translation_provider"),
	}
}

func (p *Provider) Translate(ctx context.Context, req *Request) (Result, error) {
	if req.APIKey == "" {
		return nil, vocerr.New(
			vocerr.KindAuthFailure,
			errors.New("project api key is empty, translation provider requires authentication"),
		)
	}

	keys := make([]string, 0, len(req.Strings))
	texts := make([]string, 0, len(req.Strings))
	for _, key := range sortedStringKeys(req.Strings) {
		keys = append(keys, key)
		texts = append(texts, req.Strings[key])
	}

	result := make(Result, len(req.TargetLocales))

	for _, locale := range req.TargetLocales {
		translations, err := p.translateBatch(ctx, req, texts, locale)
		if err != nil {
			return nil, fmt.Errorf("translating into %s failed: %w", locale, err)
		}

		if len(translations) != len(keys) {
			return nil, fmt.Errorf(
				"provider returned %d translations for %d strings for locale %s",
				len(translations), len(keys), locale,
			)
		}

		translated := make(map[string]string, len(keys))
		for i, key := range keys {
			translated[key] = translations[i]
		}

		result[locale] = translated
	}

	p.logger.Debug(
		"received provider translations",
		logfields.Event("provider_translation_received"),
		zap.Int("string_count", len(keys)),
		logfields.Locales(req.TargetLocales),
	)

	return result, nil
}

func (p *Provider) translateBatch(ctx context.Context, req *Request, texts []string, locale string) ([]string, error) {
	body, err := json.Marshal(&providerRequest{
		Texts:      texts,
		SourceLang: req.SourceLocale,
		TargetLang: locale,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := p.clt.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response failed: %w", err)
	}

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var providerResp providerResponse
	if err := json.Unmarshal(respBody, &providerResp); err != nil {
		return nil, fmt.Errorf("decoding response failed: %w", err)
	}

	if providerResp.Error != "" {
		return nil, fmt.Errorf("provider reported an error: %s", providerResp.Error)
	}

	return providerResp.Translations, nil
}

func classifyHTTPStatus(code int) error {
	if code == http.StatusOK {
		return nil
	}

	err := fmt.Errorf("provider returned http status %d", code)

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return vocerr.New(vocerr.KindAuthFailure, err)

	case http.StatusTooManyRequests:
		return vocerr.NewRateLimited(err, time.Time{})
	}

	return vocerr.New(vocerr.KindOther, err)
}
