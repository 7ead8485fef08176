package checker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antifraude/url-sentinel/internal/arbiter"
	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/database"
	"github.com/antifraude/url-sentinel/internal/domain"
	"github.com/antifraude/url-sentinel/internal/lists"
	"github.com/antifraude/url-sentinel/internal/metrics"
	"github.com/antifraude/url-sentinel/internal/normalize"
	"github.com/antifraude/url-sentinel/internal/rules"
)

// HistoryStore persists per-URL verdict history
type HistoryStore interface {
	FindByNormalizedURL(ctx context.Context, normalizedURL string) (*database.URLRecord, error)
	Upsert(ctx context.Context, normalizedURL, host string, verdict domain.Verdict, score int) (*database.URLRecord, error)
}

// ListWriter receives feedback entries for one of the two lists
type ListWriter interface {
	Insert(ctx context.Context, entryType, value, reason string) error
}

// ListMatcher matches URLs against the allow and deny lists
type ListMatcher interface {
	MatchAllow(ctx context.Context, normalizedURL, host string) (lists.MatchResult, error)
	MatchDeny(ctx context.Context, normalizedURL, host string) (lists.MatchResult, error)
	Invalidate()
}

// RuleEvaluator is the local scoring stage
type RuleEvaluator interface {
	Evaluate(normalizedURL, host string) rules.Result
}

// Decider resolves URLs the earlier stages left undecided
type Decider interface {
	Decide(ctx context.Context, normalizedURL, host string, localScore int) arbiter.Decision
}

// Checker runs the classification pipeline: normalize, allowlist, denylist,
// history cache, local rules, then reputation and risk-model arbitration.
// Stages are ordered cheapest first and every stage may terminate the
// pipeline. Each terminal verdict is written back to history, and conclusive
// verdicts from the later stages feed the lists so repeat traffic short
// circuits.
type Checker struct {
	history HistoryStore
	allow   ListWriter
	deny    ListWriter
	matcher ListMatcher
	rules   RuleEvaluator
	decider Decider
	cfg     config.ListsConfig
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a checker
func New(history HistoryStore, allow, deny ListWriter, matcher ListMatcher, evaluator RuleEvaluator, decider Decider, cfg config.ListsConfig, collector *metrics.Collector, logger *slog.Logger) *Checker {
	return &Checker{
		history: history,
		allow:   allow,
		deny:    deny,
		matcher: matcher,
		rules:   evaluator,
		decider: decider,
		cfg:     cfg,
		metrics: collector,
		logger:  logger,
	}
}

// Check classifies a raw URL and returns the persisted result
func (c *Checker) Check(ctx context.Context, rawURL string) (*domain.CheckResult, error) {
	started := time.Now()

	norm := normalize.Normalize(rawURL)

	result, err := c.run(ctx, norm)
	if err != nil {
		return nil, err
	}

	c.metrics.RecordCheck(string(result.Verdict), result.Source, time.Since(started))
	c.logger.Info("URL checked",
		"normalized_url", result.NormalizedURL,
		"verdict", result.Verdict,
		"score", result.Score,
		"source", result.Source)
	return result, nil
}

func (c *Checker) run(ctx context.Context, norm normalize.Result) (*domain.CheckResult, error) {
	// Stage 1: allowlist.
	stage := time.Now()
	allowMatch, err := c.matcher.MatchAllow(ctx, norm.NormalizedURL, norm.Domain)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordStage("allowlist", time.Since(stage))
	if allowMatch.Hit {
		return c.finish(ctx, norm, domain.VerdictLegit, c.cfg.AllowHitScore, domain.SourceList,
			[]string{allowMatch.Code},
			[]string{"Allowlist match: " + allowMatch.MatchedValue})
	}

	// Stage 2: denylist.
	stage = time.Now()
	denyMatch, err := c.matcher.MatchDeny(ctx, norm.NormalizedURL, norm.Domain)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordStage("denylist", time.Since(stage))
	if denyMatch.Hit {
		return c.finish(ctx, norm, domain.VerdictSuspect, c.cfg.DenyHitScore, domain.SourceList,
			[]string{denyMatch.Code},
			[]string{"Denylist match: " + denyMatch.MatchedValue})
	}

	// Stage 3: history cache. Any prior record answers verbatim, UNKNOWN
	// included; the cache trusts its own past output. Eviction is explicit,
	// via the retention pruner or DELETE /history/{id}.
	stage = time.Now()
	record, err := c.history.FindByNormalizedURL(ctx, norm.NormalizedURL)
	if err != nil {
		return nil, fmt.Errorf("looking up url history: %w", err)
	}
	c.metrics.RecordStage("cache", time.Since(stage))
	if record != nil {
		refreshed, err := c.history.Upsert(ctx, norm.NormalizedURL, norm.Domain, record.LastVerdict, record.LastScore)
		if err != nil {
			return nil, fmt.Errorf("refreshing url history: %w", err)
		}
		return &domain.CheckResult{
			ID:            refreshed.ID,
			Verdict:       refreshed.LastVerdict,
			Score:         refreshed.LastScore,
			RuleHits:      []string{"HISTORY_HIT"},
			Evidence:      []string{fmt.Sprintf("Previously classified %s on %s", record.LastVerdict, record.LastSeenAt.UTC().Format(time.RFC3339))},
			NormalizedURL: refreshed.NormalizedURL,
			Domain:        refreshed.Domain,
			Source:        domain.SourceCache,
			SubmittedAt:   time.Now().UTC(),
		}, nil
	}

	// Stage 4: local rules.
	stage = time.Now()
	local := c.rules.Evaluate(norm.NormalizedURL, norm.Domain)
	c.metrics.RecordStage("rules", time.Since(stage))
	if local.Verdict != domain.VerdictUnknown {
		res, err := c.finish(ctx, norm, local.Verdict, local.Score, domain.SourceRules, local.Hits, local.Evidence)
		if err != nil {
			return nil, err
		}
		c.feedback(ctx, res)
		return res, nil
	}

	// Stage 5: reputation and risk-model arbitration.
	stage = time.Now()
	decision := c.decider.Decide(ctx, norm.NormalizedURL, norm.Domain, local.Score)
	c.metrics.RecordStage("arbiter", time.Since(stage))

	hits := append(local.Hits, decision.Hits...)
	evidence := append(local.Evidence, decision.Evidence...)

	res, err := c.finish(ctx, norm, decision.Verdict, decision.Score, decision.Source, hits, evidence)
	if err != nil {
		return nil, err
	}
	c.feedback(ctx, res)
	return res, nil
}

// finish persists a terminal verdict and builds the check result
func (c *Checker) finish(ctx context.Context, norm normalize.Result, verdict domain.Verdict, score int, source string, hits, evidence []string) (*domain.CheckResult, error) {
	record, err := c.history.Upsert(ctx, norm.NormalizedURL, norm.Domain, verdict, domain.ClampScore(score))
	if err != nil {
		return nil, fmt.Errorf("persisting url history: %w", err)
	}
	if hits == nil {
		hits = []string{}
	}
	if evidence == nil {
		evidence = []string{}
	}
	return &domain.CheckResult{
		ID:            record.ID,
		Verdict:       record.LastVerdict,
		Score:         record.LastScore,
		RuleHits:      hits,
		Evidence:      evidence,
		NormalizedURL: record.NormalizedURL,
		Domain:        record.Domain,
		Source:        source,
		SubmittedAt:   time.Now().UTC(),
	}, nil
}

// feedback writes conclusive verdicts from the analytical stages back into
// the lists. Failures are logged and swallowed; the verdict already stands
// and the history record still short-circuits repeats.
func (c *Checker) feedback(ctx context.Context, res *domain.CheckResult) {
	var target ListWriter
	var list string
	switch res.Verdict {
	case domain.VerdictSuspect:
		target, list = c.deny, "denylist"
	case domain.VerdictLegit:
		target, list = c.allow, "allowlist"
	default:
		return
	}

	reason := fmt.Sprintf("Automatic feedback from %s stage (score %d)", res.Source, res.Score)
	if err := target.Insert(ctx, database.ListEntryTypeURL, res.NormalizedURL, reason); err != nil {
		c.logger.Error("Failed to record list feedback", "list", list, "url", res.NormalizedURL, "error", err)
		return
	}
	c.matcher.Invalidate()
	c.metrics.RecordListFeedback(list)
}
