package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/vocoder/vocoder/internal/vocerr"
)

func TestProviderTranslatesPerLocaleBatches(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	var requests []providerRequest

	srv := httptest.NewServer(http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer key123", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var provReq providerRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&provReq))
		requests = append(requests, provReq)

		translations := make([]string, 0, len(provReq.Texts))
		for _, text := range provReq.Texts {
			translations = append(translations, "<"+provReq.TargetLang+"> "+text)
		}

		require.NoError(t, json.NewEncoder(resp).Encode(&providerResponse{
			Translations: translations,
		}))
	}))
	t.Cleanup(srv.Close)

	result, err := NewProvider(srv.URL).Translate(context.Background(), &Request{
		Strings: map[string]string{
			"greeting": "Hi",
			"farewell": "Bye",
		},
		SourceLocale:  "en",
		TargetLocales: []string{"es", "fr"},
		APIKey:        "key123",
	})
	require.NoError(t, err)

	assert.Equal(t, Result{
		"es": {"greeting": "<es> Hi", "farewell": "<es> Bye"},
		"fr": {"greeting": "<fr> Hi", "farewell": "<fr> Bye"},
	}, result)

	require.Len(t, requests, 2)
	for _, provReq := range requests {
		assert.Equal(t, "en", provReq.SourceLang)
		// keys are sorted, "farewell" < "greeting"
		assert.Equal(t, []string{"Bye", "Hi"}, provReq.Texts)
	}
}

func TestProviderMissingAPIKeyIsAnAuthFailure(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	_, err := NewProvider("http://localhost:0").Translate(context.Background(), &Request{
		Strings:       map[string]string{"greeting": "Hi"},
		SourceLocale:  "en",
		TargetLocales: []string{"es"},
	})

	require.Error(t, err)
	assert.True(t, vocerr.IsAuthFailure(err))
}

func TestProviderErrorStatusClassification(t *testing.T) {
	testcases := []struct {
		name       string
		statusCode int
		check      func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, vocerr.IsAuthFailure},
		{"forbidden", http.StatusForbidden, vocerr.IsAuthFailure},
		{"rateLimited", http.StatusTooManyRequests, vocerr.IsRateLimited},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			srv := httptest.NewServer(http.HandlerFunc(func(resp http.ResponseWriter, _ *http.Request) {
				resp.WriteHeader(tc.statusCode)
			}))
			t.Cleanup(srv.Close)

			_, err := NewProvider(srv.URL).Translate(context.Background(), &Request{
				Strings:       map[string]string{"greeting": "Hi"},
				SourceLocale:  "en",
				TargetLocales: []string{"es"},
				APIKey:        "key123",
			})

			require.Error(t, err)
			assert.True(t, tc.check(err))
		})
	}
}

func TestProviderTranslationCountMismatchFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	srv := httptest.NewServer(http.HandlerFunc(func(resp http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(resp).Encode(&providerResponse{
			Translations: []string{"only one"},
		}))
	}))
	t.Cleanup(srv.Close)

	_, err := NewProvider(srv.URL).Translate(context.Background(), &Request{
		Strings: map[string]string{
			"greeting": "Hi",
			"farewell": "Bye",
		},
		SourceLocale:  "en",
		TargetLocales: []string{"es"},
		APIKey:        "key123",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 translations for 2 strings")
}

func TestProviderReportedErrorFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	srv := httptest.NewServer(http.HandlerFunc(func(resp http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(resp).Encode(&providerResponse{
			Error: "unsupported locale pair",
		}))
	}))
	t.Cleanup(srv.Close)

	_, err := NewProvider(srv.URL).Translate(context.Background(), &Request{
		Strings:       map[string]string{"greeting": "Hi"},
		SourceLocale:  "en",
		TargetLocales: []string{"xx"},
		APIKey:        "key123",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported locale pair")
}
