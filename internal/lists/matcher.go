package lists

import (
	"context"
	"log/slog"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/database"
	"github.com/antifraude/url-sentinel/internal/normalize"
)

const (
	allowCacheKey = "allowlist"
	denyCacheKey  = "denylist"
)

// Source provides the active entries of one list
type Source interface {
	FindActive(ctx context.Context) ([]*database.ListEntry, error)
}

// MatchResult is the outcome of checking one list
type MatchResult struct {
	Hit          bool
	Code         string
	MatchedValue string
}

// Matcher checks normalized URLs and hosts against the active allow-list and
// deny-list entries. Active entries are cached in-process for a short TTL; the
// pipeline's own feedback writes invalidate the cache so a fresh verdict is
// matchable immediately.
type Matcher struct {
	allow  Source
	deny   Source
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewMatcher creates a matcher over the two list sources
func NewMatcher(allow, deny Source, cfg config.ListsConfig, logger *slog.Logger) *Matcher {
	return &Matcher{
		allow:  allow,
		deny:   deny,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: logger,
	}
}

// MatchAllow checks the allow-list
func (m *Matcher) MatchAllow(ctx context.Context, normalizedURL, host string) (MatchResult, error) {
	return m.match(ctx, m.allow, allowCacheKey, "ALLOW_HIT", normalizedURL, host)
}

// MatchDeny checks the deny-list
func (m *Matcher) MatchDeny(ctx context.Context, normalizedURL, host string) (MatchResult, error) {
	return m.match(ctx, m.deny, denyCacheKey, "DENY_HIT", normalizedURL, host)
}

// Invalidate drops the cached active entries. Called after feedback writes
// and administrative changes.
func (m *Matcher) Invalidate() {
	m.cache.Delete(allowCacheKey)
	m.cache.Delete(denyCacheKey)
}

func (m *Matcher) match(ctx context.Context, source Source, cacheKey, code, normalizedURL, host string) (MatchResult, error) {
	entries, err := m.activeEntries(ctx, source, cacheKey)
	if err != nil {
		return MatchResult{}, err
	}

	for _, entry := range entries {
		if matches(entry, normalizedURL, host) {
			return MatchResult{Hit: true, Code: code, MatchedValue: entry.Value}, nil
		}
	}
	return MatchResult{}, nil
}

func (m *Matcher) activeEntries(ctx context.Context, source Source, cacheKey string) ([]*database.ListEntry, error) {
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached.([]*database.ListEntry), nil
	}

	entries, err := source.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	m.cache.Set(cacheKey, entries, gocache.DefaultExpiration)
	return entries, nil
}

// matches applies the per-entry matching rule. URL entries are normalized the
// same way as input and compared exactly; DOMAIN entries compare the host,
// with a `*.suffix` form matching any subdomain. Blank values never match.
func matches(entry *database.ListEntry, normalizedURL, host string) bool {
	value := strings.TrimSpace(entry.Value)
	if value == "" {
		return false
	}

	if entry.Type == database.ListEntryTypeURL {
		norm := normalize.Normalize(value)
		return strings.EqualFold(norm.NormalizedURL, normalizedURL)
	}

	// DOMAIN entry
	value = strings.ToLower(value)
	h := strings.ToLower(host)

	if base, ok := strings.CutPrefix(value, "*."); ok {
		return strings.HasSuffix(h, "."+base)
	}
	return value == h
}
