package domain

import "time"

// Verdict is the tri-state classification outcome. It is a label, not a
// confidence scale.
type Verdict string

const (
	VerdictLegit   Verdict = "LEGIT"
	VerdictSuspect Verdict = "SUSPECT"
	VerdictUnknown Verdict = "UNKNOWN"
)

// Reputation is the tri-state signal produced by the threat-intel layer. The
// external provider DTO also knows SUSPICIOUS; decision logic treats it the
// same as UNKNOWN.
type Reputation string

const (
	ReputationMalicious  Reputation = "MALICIOUS"
	ReputationClean      Reputation = "CLEAN"
	ReputationSuspicious Reputation = "SUSPICIOUS"
	ReputationUnknown    Reputation = "UNKNOWN"
)

// CheckResult is the outcome of one classification request
type CheckResult struct {
	ID            string    `json:"id"`
	Verdict       Verdict   `json:"verdict"`
	Score         int       `json:"score"`
	RuleHits      []string  `json:"rule_hits"`
	Evidence      []string  `json:"evidence_summary"`
	NormalizedURL string    `json:"normalized_url"`
	Domain        string    `json:"domain"`
	Source        string    `json:"source"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Decision sources reported in CheckResult.Source
const (
	SourceList       = "LIST"
	SourceCache      = "CACHE"
	SourceRules      = "RULES"
	SourceReputation = "REPUTATION"
	SourceRiskModel  = "RISK_MODEL"
)

// ClampScore clamps a score to the [0,100] range used everywhere in the
// pipeline and in storage.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
