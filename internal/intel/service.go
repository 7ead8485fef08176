package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/domain"
	"github.com/antifraude/url-sentinel/internal/metrics"
)

// Provider is the external reputation capability consumed by the service
type Provider interface {
	Lookup(ctx context.Context, url string) (Finding, error)
}

// Result is the reputation answer plus its explainability trail. Every branch
// that produced the answer appends a hit code and a one-line evidence string.
type Result struct {
	Reputation domain.Reputation
	Hits       []string
	Evidence   []string
}

// Service resolves a URL reputation. It consults the external provider first;
// when the provider is inconclusive or unavailable it falls back to local
// typosquatting and decoy-pattern heuristics. Provider answers are optionally
// cached in Redis.
type Service struct {
	provider   Provider
	cache      *redis.Client
	cacheTTL   config.RedisConfig
	heuristics config.HeuristicsConfig
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewService creates the reputation service. provider and cache may be nil
// when the corresponding collaborator is not configured.
func NewService(provider Provider, cache *redis.Client, redisCfg config.RedisConfig, heuristics config.HeuristicsConfig, collector *metrics.Collector, logger *slog.Logger) *Service {
	return &Service{
		provider:   provider,
		cache:      cache,
		cacheTTL:   redisCfg,
		heuristics: heuristics,
		metrics:    collector,
		logger:     logger,
	}
}

// Check resolves the reputation of a normalized URL. Provider failures are
// degraded to UNKNOWN poll results and never propagate; the local heuristics
// then decide.
func (s *Service) Check(ctx context.Context, normalizedURL, host string) Result {
	url := strings.ToLower(normalizedURL)
	h := strings.ToLower(host)

	if finding, ok := s.providerFinding(ctx, url); ok && finding.Reputation != domain.ReputationUnknown {
		return Result{
			Reputation: finding.Reputation,
			Hits:       []string{"VT_" + string(finding.Reputation)},
			Evidence: []string{fmt.Sprintf(
				"Reputation provider: %s (malicious=%d, suspicious=%d, harmless=%d)",
				finding.Note, finding.Malicious, finding.Suspicious, finding.Harmless)},
		}
	}

	return s.localHeuristics(h)
}

// providerFinding consults the cache and then the provider. The second return
// is false when no provider answer is available at all.
func (s *Service) providerFinding(ctx context.Context, url string) (Finding, bool) {
	if s.provider == nil {
		return Finding{}, false
	}

	cacheKey := "intel:" + url
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var finding Finding
			if err := json.Unmarshal([]byte(raw), &finding); err == nil {
				return finding, true
			}
		}
	}

	finding, err := s.provider.Lookup(ctx, url)
	if err != nil {
		// Transport failure maps to UNKNOWN, never a fault.
		s.logger.Warn("Reputation provider unavailable, falling back to local heuristics", "error", err)
		s.metrics.RecordProviderFailure("reputation")
		return Finding{}, false
	}

	if s.cache != nil {
		if raw, err := json.Marshal(finding); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL.IntelTTL).Err(); err != nil {
				s.logger.Warn("Failed to cache reputation finding", "error", err)
			}
		}
	}

	return finding, true
}

// localHeuristics applies the fixed-priority fallback: typosquatting against
// protected brands, decoy-pattern substrings, trusted suffixes, then UNKNOWN.
func (s *Service) localHeuristics(host string) Result {
	// Protected brand token present but host not under the official domain.
	// Brands are scanned in sorted order so evidence is deterministic.
	brands := make([]string, 0, len(s.heuristics.ProtectedBrands))
	for brand := range s.heuristics.ProtectedBrands {
		brands = append(brands, brand)
	}
	sort.Strings(brands)

	for _, brand := range brands {
		official := s.heuristics.ProtectedBrands[brand]
		if strings.Contains(host, brand) && !hasOfficialSuffix(host, official) {
			return Result{
				Reputation: domain.ReputationMalicious,
				Hits:       []string{"INTEL_TYPO_" + strings.ToUpper(brand)},
				Evidence:   []string{fmt.Sprintf("Host resembles %q but is not the official domain (possible typosquat)", brand)},
			}
		}
	}

	// Known decoy substrings (benefit-scam bait, fake "secure" shorteners)
	for _, token := range s.heuristics.DecoyTokens {
		if token != "" && strings.Contains(host, strings.ToLower(token)) {
			return Result{
				Reputation: domain.ReputationMalicious,
				Hits:       []string{"INTEL_DECOY_PATTERN"},
				Evidence:   []string{fmt.Sprintf("Host contains the known decoy pattern %q", token)},
			}
		}
	}

	// Curated trusted suffixes
	for _, suffix := range s.heuristics.TrustedSuffixes {
		suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return Result{
				Reputation: domain.ReputationClean,
				Hits:       []string{"INTEL_LOCAL_TRUSTED"},
				Evidence:   []string{"Local heuristics: host is under a trusted domain suffix"},
			}
		}
	}

	return Result{
		Reputation: domain.ReputationUnknown,
		Hits:       []string{"INTEL_UNKNOWN"},
		Evidence:   []string{"Neither the reputation provider nor local heuristics produced a strong signal"},
	}
}

// hasOfficialSuffix reports whether host sits under any of the brand's
// official domains
func hasOfficialSuffix(host string, official []string) bool {
	for _, suffix := range official {
		if strings.HasSuffix(host, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
