package rules

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/domain"
)

var (
	digitHeavyPath = regexp.MustCompile(`\d{8,}`)
	sensitiveQuery = regexp.MustCompile(`(?i)(cpf|senha|password|token|codigo|code|chave|key)=`)
)

// Result is the outcome of one rules evaluation
type Result struct {
	Score    int
	Verdict  domain.Verdict
	Hits     []string
	Evidence []string
}

// Engine is the stateless local scorer. It inspects the normalized URL and
// host against weighted heuristics and derives a verdict with no network
// access. Weights and curated lists are injected so tests can substitute
// fixtures.
type Engine struct {
	weights    config.RulesConfig
	heuristics config.HeuristicsConfig
	logger     *slog.Logger
}

// NewEngine creates a rules engine
func NewEngine(weights config.RulesConfig, heuristics config.HeuristicsConfig, logger *slog.Logger) *Engine {
	return &Engine{
		weights:    weights,
		heuristics: heuristics,
		logger:     logger,
	}
}

// Evaluate scores a normalized URL and host. The score accumulates weighted
// rule contributions and is clamped to [0,100]. Zero rule hits is the only
// path to LEGIT from this stage; any hits with score under the suspect
// threshold yield UNKNOWN, leaving escalation to later stages.
func (e *Engine) Evaluate(normalizedURL, host string) Result {
	url := strings.ToLower(normalizedURL)
	h := strings.ToLower(host)

	score := 0
	var hits []string
	var evidence []string

	add := func(weight int, hit, note string) {
		score += weight
		hits = append(hits, hit)
		evidence = append(evidence, note)
	}

	trusted := hasSuffixIn(h, e.heuristics.TrustedSuffixes)

	// Plain HTTP
	if strings.HasPrefix(url, "http://") {
		add(e.weights.WeightNoTLS, "HTTP_NO_TLS", "URL uses plain http (no TLS)")
	}

	// Known URL shortener
	if inSet(h, e.heuristics.Shorteners) {
		add(e.weights.WeightShortener, "URL_SHORTENER", "Shortener domain: "+h)
	}

	// Risky TLD
	if inSet(topLevelLabel(h), e.heuristics.RiskyTLDs) {
		add(e.weights.WeightSuspiciousTLD, "SUSPICIOUS_TLD", "Top-level domain frequently seen in scams")
	}

	// Too many subdomain levels
	if countLabels(h) >= e.weights.MaxSubdomainLabels {
		add(e.weights.WeightExcessSubdomains, "EXCESS_SUBDOMAINS", "Host has many subdomain levels")
	}

	// Phishing keywords in URL and host, summed but capped. Hosts under a
	// trusted suffix are exempt: official domains legitimately carry these
	// terms.
	if !trusted {
		keywordAdds := 0
		if containsAny(url, e.heuristics.PhishingKeywords) {
			keywordAdds += e.weights.WeightPhishingKeyword
		}
		if containsAny(h, e.heuristics.PhishingKeywords) {
			keywordAdds += e.weights.WeightPhishingKeyword
		}
		if keywordAdds > 0 {
			if keywordAdds > e.weights.MaxPhishingAccum {
				keywordAdds = e.weights.MaxPhishingAccum
			}
			add(keywordAdds, "PHISHING_KEYWORDS", "Scam-related keywords in URL or host")
		}
	}

	govSuffix := e.heuristics.GovSuffix
	isGov := govSuffix != "" && strings.HasSuffix(h, govSuffix)

	// Government/benefit theme on a non-government domain
	mentionsGovTheme := strings.Contains(url, "gov") || strings.Contains(url, "valores")
	if mentionsGovTheme && !isGov {
		add(e.weights.WeightNonGovTheme, "NON_GOV_DOMAIN", "Government/benefit theme without an official "+govSuffix+" domain")
	}

	// "gov" inside the host but the registrable domain is not official
	if strings.Contains(h, "gov") && !isGov {
		add(e.weights.WeightBrandMislead, "BRAND_MISLEAD", "Host mentions 'gov' but is not an official government domain")
	}

	// Long digit run in the path (bait IDs)
	if digitHeavyPath.MatchString(url) {
		add(e.weights.WeightDigitHeavyPath, "DIGIT_HEAVY_PATH", "Path carries a long digit sequence")
	}

	// Sensitive key=value runs. Canonical URLs carry no query string, so in
	// practice this catches cpf=/senha= style pairs embedded in the path.
	if sensitiveQuery.MatchString(url) {
		add(e.weights.WeightSensitiveQuery, "QUERY_SENSITIVE_KEYS", "Sensitive parameter names in the URL (e.g. cpf, senha, token)")
	}

	// Decoy shortener lookalikes
	if e.isFakeShortener(h) {
		add(e.weights.WeightFakeShortener, "FAKE_SHORTENER", "Domain imitates a known URL shortener")
	}

	// Finance/security bait keywords
	if !trusted && containsAny(url+" "+h, e.heuristics.FinanceKeywords) {
		add(e.weights.WeightFinanceKeyword, "SUSPICIOUS_KEYWORD", "Finance/security bait keywords such as banking, secure, auth or login")
	}

	score = domain.ClampScore(score)

	verdict := domain.VerdictUnknown
	switch {
	case len(hits) == 0:
		verdict = domain.VerdictLegit
	case score >= e.weights.SuspectThreshold:
		verdict = domain.VerdictSuspect
	}

	e.logger.Debug("Rules evaluated", "url", normalizedURL, "score", score, "verdict", verdict, "hits", hits)

	return Result{
		Score:    score,
		Verdict:  verdict,
		Hits:     hits,
		Evidence: evidence,
	}
}

// isFakeShortener detects domains imitating shortener services, such as
// "bit-llly-secure.com", plus curated decoy tokens.
func (e *Engine) isFakeShortener(host string) bool {
	if host == "" {
		return false
	}
	if containsAny(host, e.heuristics.DecoyTokens) {
		return true
	}
	if strings.Contains(host, "bit-") && strings.Contains(host, "secure") {
		return true
	}
	if strings.Contains(host, "bitly") && !strings.HasSuffix(host, "bit.ly") {
		return true
	}
	return false
}
