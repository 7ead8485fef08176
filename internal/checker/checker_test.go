package checker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antifraude/url-sentinel/internal/arbiter"
	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/database"
	"github.com/antifraude/url-sentinel/internal/domain"
	"github.com/antifraude/url-sentinel/internal/lists"
	"github.com/antifraude/url-sentinel/internal/rules"
)

type memoryHistory struct {
	mu      sync.Mutex
	records map[string]*database.URLRecord
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{records: make(map[string]*database.URLRecord)}
}

func (m *memoryHistory) FindByNormalizedURL(ctx context.Context, normalizedURL string) (*database.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[normalizedURL]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryHistory) Upsert(ctx context.Context, normalizedURL, host string, verdict domain.Verdict, score int) (*database.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	record, ok := m.records[normalizedURL]
	if !ok {
		record = &database.URLRecord{
			ID:            uuid.New().String(),
			NormalizedURL: normalizedURL,
			Domain:        host,
			FirstSeenAt:   now,
		}
		m.records[normalizedURL] = record
	}
	record.LastSeenAt = now
	record.LastVerdict = verdict
	record.LastScore = score
	copied := *record
	return &copied, nil
}

type memoryList struct {
	mu      sync.Mutex
	entries []string
}

func (m *memoryList) Insert(ctx context.Context, entryType, value, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, value)
	return nil
}

func (m *memoryList) values() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries...)
}

type stubMatcher struct {
	allowHits   map[string]bool
	denyHits    map[string]bool
	invalidated int
}

func (s *stubMatcher) MatchAllow(ctx context.Context, normalizedURL, host string) (lists.MatchResult, error) {
	if s.allowHits[normalizedURL] {
		return lists.MatchResult{Hit: true, Code: "ALLOW_HIT", MatchedValue: normalizedURL}, nil
	}
	return lists.MatchResult{}, nil
}

func (s *stubMatcher) MatchDeny(ctx context.Context, normalizedURL, host string) (lists.MatchResult, error) {
	if s.denyHits[normalizedURL] {
		return lists.MatchResult{Hit: true, Code: "DENY_HIT", MatchedValue: normalizedURL}, nil
	}
	return lists.MatchResult{}, nil
}

func (s *stubMatcher) Invalidate() { s.invalidated++ }

type stubRules struct {
	results map[string]rules.Result
}

func (s *stubRules) Evaluate(normalizedURL, host string) rules.Result {
	if result, ok := s.results[normalizedURL]; ok {
		return result
	}
	return rules.Result{Verdict: domain.VerdictLegit}
}

type stubDecider struct {
	decision arbiter.Decision
	calls    int
}

func (s *stubDecider) Decide(ctx context.Context, normalizedURL, host string, localScore int) arbiter.Decision {
	s.calls++
	return s.decision
}

type fixture struct {
	checker *Checker
	history *memoryHistory
	allow   *memoryList
	deny    *memoryList
	matcher *stubMatcher
	rules   *stubRules
	decider *stubDecider
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		history: newMemoryHistory(),
		allow:   &memoryList{},
		deny:    &memoryList{},
		matcher: &stubMatcher{allowHits: map[string]bool{}, denyHits: map[string]bool{}},
		rules:   &stubRules{results: map[string]rules.Result{}},
		decider: &stubDecider{},
	}
	cfg := config.ListsConfig{CacheTTL: time.Minute, AllowHitScore: 10, DenyHitScore: 90}
	f.checker = New(f.history, f.allow, f.deny, f.matcher, f.rules, f.decider, cfg, nil, logger)
	return f
}

func TestChecker_Pipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("Allowlist Hit Short Circuits", func(t *testing.T) {
		f := newFixture()
		f.matcher.allowHits["https://ok.example/"] = true

		result, err := f.checker.Check(ctx, "https://ok.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictLegit, result.Verdict)
		assert.Equal(t, 10, result.Score)
		assert.Equal(t, domain.SourceList, result.Source)
		assert.Contains(t, result.RuleHits, "ALLOW_HIT")
		assert.Zero(t, f.decider.calls)
		assert.NotEmpty(t, result.ID, "verdict is persisted")
	})

	t.Run("Denylist Hit Short Circuits", func(t *testing.T) {
		f := newFixture()
		f.matcher.denyHits["http://evil.example/"] = true

		result, err := f.checker.Check(ctx, "http://evil.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictSuspect, result.Verdict)
		assert.Equal(t, 90, result.Score)
		assert.Equal(t, domain.SourceList, result.Source)
		assert.Zero(t, f.decider.calls)
	})

	t.Run("Allowlist Wins Over Denylist", func(t *testing.T) {
		f := newFixture()
		f.matcher.allowHits["https://both.example/"] = true
		f.matcher.denyHits["https://both.example/"] = true

		result, err := f.checker.Check(ctx, "https://both.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictLegit, result.Verdict)
	})

	t.Run("History Hit Returns Cached Verdict", func(t *testing.T) {
		f := newFixture()
		_, err := f.history.Upsert(ctx, "http://seen.example/", "seen.example", domain.VerdictSuspect, 85)
		require.NoError(t, err)

		result, err := f.checker.Check(ctx, "http://seen.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictSuspect, result.Verdict)
		assert.Equal(t, 85, result.Score)
		assert.Equal(t, domain.SourceCache, result.Source)
		assert.Contains(t, result.RuleHits, "HISTORY_HIT")
		assert.Zero(t, f.decider.calls)
	})

	t.Run("Unknown History Is Also Served From Cache", func(t *testing.T) {
		f := newFixture()
		_, err := f.history.Upsert(ctx, "http://pending.example/", "pending.example", domain.VerdictUnknown, 40)
		require.NoError(t, err)
		f.rules.results["http://pending.example/"] = rules.Result{Verdict: domain.VerdictUnknown, Score: 40, Hits: []string{"HTTP_NO_TLS"}}
		f.decider.decision = arbiter.Decision{Verdict: domain.VerdictLegit, Score: 5, Source: domain.SourceRiskModel, Hits: []string{"MODEL_CLEAN"}}

		result, err := f.checker.Check(ctx, "http://pending.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictUnknown, result.Verdict, "stored verdict returns verbatim")
		assert.Equal(t, 40, result.Score)
		assert.Equal(t, domain.SourceCache, result.Source)
		assert.Zero(t, f.decider.calls, "no stage past the cache runs")
	})

	t.Run("Repeated Submissions Keep Returning The Stored Verdict", func(t *testing.T) {
		f := newFixture()
		f.rules.results["http://odd.example/"] = rules.Result{Verdict: domain.VerdictUnknown, Score: 20, Hits: []string{"HTTP_NO_TLS"}}
		f.decider.decision = arbiter.Decision{Verdict: domain.VerdictUnknown, Score: 20, Source: domain.SourceRiskModel, Hits: []string{"MODEL_UNAVAILABLE"}}

		first, err := f.checker.Check(ctx, "http://odd.example/")
		require.NoError(t, err)
		require.Equal(t, 1, f.decider.calls)

		second, err := f.checker.Check(ctx, "http://odd.example/")
		require.NoError(t, err)
		third, err := f.checker.Check(ctx, "http://odd.example/")
		require.NoError(t, err)

		assert.Equal(t, 1, f.decider.calls, "later submissions never leave the cache stage")
		for _, result := range []*domain.CheckResult{second, third} {
			assert.Equal(t, first.Verdict, result.Verdict)
			assert.Equal(t, first.Score, result.Score)
			assert.Equal(t, domain.SourceCache, result.Source)
		}
	})

	t.Run("Rules Suspect Writes Deny Feedback", func(t *testing.T) {
		f := newFixture()
		f.rules.results["http://scam.example/"] = rules.Result{
			Verdict:  domain.VerdictSuspect,
			Score:    100,
			Hits:     []string{"FAKE_SHORTENER"},
			Evidence: []string{"decoy"},
		}

		result, err := f.checker.Check(ctx, "http://scam.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictSuspect, result.Verdict)
		assert.Equal(t, domain.SourceRules, result.Source)
		assert.Contains(t, f.deny.values(), "http://scam.example/")
		assert.Empty(t, f.allow.values())
		assert.Equal(t, 1, f.matcher.invalidated)
		assert.Zero(t, f.decider.calls)
	})

	t.Run("Rules Legit Writes Allow Feedback", func(t *testing.T) {
		f := newFixture()

		result, err := f.checker.Check(ctx, "https://clean.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictLegit, result.Verdict)
		assert.Contains(t, f.allow.values(), "https://clean.example/")
		assert.Empty(t, f.deny.values())
	})

	t.Run("Arbiter Unknown Writes No Feedback", func(t *testing.T) {
		f := newFixture()
		f.rules.results["http://odd.example/"] = rules.Result{Verdict: domain.VerdictUnknown, Score: 20, Hits: []string{"HTTP_NO_TLS"}}
		f.decider.decision = arbiter.Decision{Verdict: domain.VerdictUnknown, Score: 20, Source: domain.SourceRiskModel, Hits: []string{"MODEL_UNAVAILABLE"}}

		result, err := f.checker.Check(ctx, "http://odd.example/")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictUnknown, result.Verdict)
		assert.Empty(t, f.allow.values())
		assert.Empty(t, f.deny.values())
	})

	t.Run("Arbiter Hits Merge With Rule Hits", func(t *testing.T) {
		f := newFixture()
		f.rules.results["http://odd.example/"] = rules.Result{Verdict: domain.VerdictUnknown, Score: 25, Hits: []string{"HTTP_NO_TLS"}, Evidence: []string{"plain http"}}
		f.decider.decision = arbiter.Decision{
			Verdict:  domain.VerdictSuspect,
			Score:    90,
			Source:   domain.SourceReputation,
			Hits:     []string{"VT_MALICIOUS", "REPUTATION_MALICIOUS"},
			Evidence: []string{"provider flagged"},
		}

		result, err := f.checker.Check(ctx, "http://odd.example/")
		require.NoError(t, err)

		assert.Contains(t, result.RuleHits, "HTTP_NO_TLS")
		assert.Contains(t, result.RuleHits, "VT_MALICIOUS")
		assert.Contains(t, result.Evidence, "plain http")
		assert.Contains(t, result.Evidence, "provider flagged")
	})

	t.Run("Input Is Normalized Before Matching", func(t *testing.T) {
		f := newFixture()
		f.matcher.allowHits["https://example.com/login"] = true

		result, err := f.checker.Check(ctx, "HTTPS://Example.COM/login?q=1#top")
		require.NoError(t, err)

		assert.Equal(t, domain.VerdictLegit, result.Verdict)
		assert.Equal(t, "https://example.com/login", result.NormalizedURL)
		assert.Equal(t, "example.com", result.Domain)
	})

	t.Run("Concurrent Checks Converge On One Record", func(t *testing.T) {
		f := newFixture()

		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := f.checker.Check(ctx, "https://race.example/")
				if assert.NoError(t, err) {
					ids[i] = result.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids[1:] {
			assert.Equal(t, ids[0], id, "all checks share the same history record")
		}
	})
}
