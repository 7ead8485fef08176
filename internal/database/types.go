package database

import (
	"time"

	"github.com/antifraude/url-sentinel/internal/domain"
)

// URLRecord is the classification history for one distinct normalized URL. It
// acts as a memoization cache for the whole pipeline: one row per normalized
// URL, updated in place on every later classification.
type URLRecord struct {
	ID            string         `db:"id" json:"id"`
	NormalizedURL string         `db:"normalized_url" json:"normalized_url"`
	Domain        string         `db:"domain" json:"domain"`
	FirstSeenAt   time.Time      `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt    time.Time      `db:"last_seen_at" json:"last_seen_at"`
	LastVerdict   domain.Verdict `db:"last_verdict" json:"last_verdict"`
	LastScore     int            `db:"last_score" json:"last_score"`
}

// List entry types
const (
	ListEntryTypeURL    = "URL"
	ListEntryTypeDomain = "DOMAIN"
)

// ListEntry is one allow-list or deny-list row. Entries are soft-deleted
// (deactivated), never removed.
type ListEntry struct {
	ID            string     `db:"id" json:"id"`
	Type          string     `db:"type" json:"type"`
	Value         string     `db:"value" json:"value"`
	Active        bool       `db:"active" json:"active"`
	Reason        string     `db:"reason" json:"reason"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivated_at,omitempty"`
}

// Filter contains pagination options for listing queries
type Filter struct {
	Limit  int
	Offset int
}
