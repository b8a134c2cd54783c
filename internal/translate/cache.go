package translate

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/logfields"
)

const DefaultCacheSize = 4096

type cacheKey struct {
	text         string
	sourceLocale string
	targetLocale string
}

// Caching wraps a Gateway with an in-memory LRU translation cache.
// Entries are keyed by source text and locale pair, so an unchanged string
// that reappears in a later change-set is not translated again.
// Only translation values are cached, repository configuration is read fresh
// per event elsewhere.
type Caching struct {
	gateway Gateway
	cache   *lru.Cache[cacheKey, string]
	logger  *zap.Logger
}

func NewCaching(gateway Gateway, size int) (*Caching, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, err
	}

	return &Caching{
		gateway: gateway,
		cache:   cache,
		logger:  zap.L().Named("translation_cache"),
	}, nil
}

func (c *Caching) Translate(ctx context.Context, req *Request) (Result, error) {
	result := make(Result, len(req.TargetLocales))
	missing := map[string]string{}
	var missingLocales []string

	hits := 0

	for _, locale := range req.TargetLocales {
		translated := make(map[string]string, len(req.Strings))
		localeComplete := true

		for key, text := range req.Strings {
			val, ok := c.cache.Get(cacheKey{
				text:         text,
				sourceLocale: req.SourceLocale,
				targetLocale: locale,
			})
			if !ok {
				localeComplete = false
				missing[key] = text
				continue
			}

			hits++
			translated[key] = val
		}

		result[locale] = translated

		if !localeComplete {
			missingLocales = append(missingLocales, locale)
		}
	}

	if len(missingLocales) == 0 {
		c.logger.Debug(
			"served translation request from cache",
			logfields.Event("translation_cache_hit"),
			zap.Int("string_count", len(req.Strings)),
		)

		return result, nil
	}

	fetched, err := c.gateway.Translate(ctx, &Request{
		Strings:       missing,
		SourceLocale:  req.SourceLocale,
		TargetLocales: missingLocales,
		APIKey:        req.APIKey,
	})
	if err != nil {
		return nil, err
	}

	for locale, translations := range fetched {
		for key, val := range translations {
			result[locale][key] = val
			c.cache.Add(cacheKey{
				text:         missing[key],
				sourceLocale: req.SourceLocale,
				targetLocale: locale,
			}, val)
		}
	}

	c.logger.Debug(
		"translation cache partially missed",
		logfields.Event("translation_cache_miss"),
		zap.Int("cache_hits", hits),
		zap.Int("fetched_strings", len(missing)),
		logfields.Locales(missingLocales),
	)

	return result, nil
}
