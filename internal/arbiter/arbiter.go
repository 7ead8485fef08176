package arbiter

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/domain"
	"github.com/antifraude/url-sentinel/internal/intel"
	"github.com/antifraude/url-sentinel/internal/riskmodel"
)

const noEvidenceSummary = "No strong threat-intel evidence."

// IntelChecker is the reputation capability consumed by the arbiter
type IntelChecker interface {
	Check(ctx context.Context, normalizedURL, host string) intel.Result
}

// Classifier is the risk-model capability. A nil assessment with an error
// means the model is unavailable.
type Classifier interface {
	Classify(ctx context.Context, normalizedURL, host string, localScore int, evidenceSummary string) (*riskmodel.Assessment, error)
}

// Decision is the unified verdict combining reputation and risk model
type Decision struct {
	Verdict  domain.Verdict
	Score    int
	Source   string
	Hits     []string
	Evidence []string
}

// Arbiter combines the reputation service and the risk-model client into one
// verdict. Reputation decides first; the model is only consulted when the
// reputation signal is inconclusive, because the model prompt embeds the
// reputation evidence. The two external calls therefore run strictly in
// sequence.
type Arbiter struct {
	intel  IntelChecker
	model  Classifier
	cfg    config.ArbiterConfig
	logger *slog.Logger
}

// New creates an arbiter. model may be nil when no risk model is configured;
// that degrades to the unavailable path.
func New(intelChecker IntelChecker, model Classifier, cfg config.ArbiterConfig, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		intel:  intelChecker,
		model:  model,
		cfg:    cfg,
		logger: logger,
	}
}

// Decide resolves a verdict for a URL the earlier pipeline stages left
// undecided. localScore is the rules-stage score used as the floor for the
// final score.
func (a *Arbiter) Decide(ctx context.Context, normalizedURL, host string, localScore int) Decision {
	hits := []string{}
	evidence := []string{}

	// Step 1: reputation is authoritative when conclusive.
	rep := a.intel.Check(ctx, normalizedURL, host)
	hits = append(hits, rep.Hits...)
	evidence = append(evidence, rep.Evidence...)

	if rep.Reputation == domain.ReputationMalicious {
		score := localScore
		if score < a.cfg.MaliciousFloor {
			score = a.cfg.MaliciousFloor
		}
		hits = append(hits, "REPUTATION_MALICIOUS")
		return Decision{
			Verdict:  domain.VerdictSuspect,
			Score:    domain.ClampScore(score),
			Source:   domain.SourceReputation,
			Hits:     hits,
			Evidence: evidence,
		}
	}

	if rep.Reputation == domain.ReputationClean && localScore < a.cfg.WeakRulesCeiling {
		score := localScore
		if score > a.cfg.CleanCeiling {
			score = a.cfg.CleanCeiling
		}
		hits = append(hits, "REPUTATION_CLEAN")
		return Decision{
			Verdict:  domain.VerdictLegit,
			Score:    domain.ClampScore(score),
			Source:   domain.SourceReputation,
			Hits:     hits,
			Evidence: evidence,
		}
	}

	// Step 2: risk-model arbitration over everything gathered so far.
	summary := noEvidenceSummary
	if len(evidence) > 0 {
		summary = strings.Join(evidence, " | ")
	}

	var assessment *riskmodel.Assessment
	if a.model != nil {
		var err error
		assessment, err = a.model.Classify(ctx, normalizedURL, host, localScore, summary)
		if err != nil {
			a.logger.Warn("Risk model unavailable", "error", err)
			assessment = nil
		}
	}

	if assessment == nil {
		hits = append(hits, "MODEL_UNAVAILABLE")
		evidence = append(evidence, "External risk model unavailable; keeping UNKNOWN")
		return Decision{
			Verdict:  domain.VerdictUnknown,
			Score:    domain.ClampScore(localScore),
			Source:   domain.SourceRiskModel,
			Hits:     hits,
			Evidence: evidence,
		}
	}

	if assessment.Explanation != "" {
		evidence = append(evidence, "Risk model: "+assessment.Explanation)
	}

	finalScore := int(math.Round(math.Max(assessment.RiskScore*100, float64(localScore))))

	switch {
	case assessment.Phishing || assessment.RiskScore >= a.cfg.SuspectRiskThreshold:
		if finalScore < a.cfg.MinSuspectScore {
			finalScore = a.cfg.MinSuspectScore
		}
		hits = append(hits, "MODEL_PHISHING")
		return Decision{
			Verdict:  domain.VerdictSuspect,
			Score:    domain.ClampScore(finalScore),
			Source:   domain.SourceRiskModel,
			Hits:     hits,
			Evidence: evidence,
		}

	case !assessment.Phishing && assessment.RiskScore <= a.cfg.LegitRiskThreshold:
		hits = append(hits, "MODEL_CLEAN")
		return Decision{
			Verdict:  domain.VerdictLegit,
			Score:    domain.ClampScore(finalScore),
			Source:   domain.SourceRiskModel,
			Hits:     hits,
			Evidence: evidence,
		}

	default:
		hits = append(hits, "MODEL_INCONCLUSIVE")
		evidence = append(evidence, "Risk model had insufficient confidence for a final classification")
		return Decision{
			Verdict:  domain.VerdictUnknown,
			Score:    domain.ClampScore(finalScore),
			Source:   domain.SourceRiskModel,
			Hits:     hits,
			Evidence: evidence,
		}
	}
}
