package intel

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/domain"
)

// Finding is one reputation provider answer with the raw vote counts behind
// it
type Finding struct {
	Reputation domain.Reputation `json:"reputation"`
	Malicious  int64             `json:"malicious"`
	Suspicious int64             `json:"suspicious"`
	Harmless   int64             `json:"harmless"`
	Note       string            `json:"note"`
}

// VirusTotalClient queries the VirusTotal URL analysis API
type VirusTotalClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewVirusTotalClient creates a provider client with the configured base URL,
// key and timeout
func NewVirusTotalClient(cfg config.ReputationConfig, logger *slog.Logger) *VirusTotalClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("x-apikey", cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &VirusTotalClient{
		http:   client,
		logger: logger,
	}
}

// Lookup fetches the last analysis stats for a URL. The URL identifier is the
// base64url encoding of the URL without padding, per the provider API. Any
// transport or response problem is returned as an error; the caller maps
// errors to an UNKNOWN reputation.
func (c *VirusTotalClient) Lookup(ctx context.Context, url string) (Finding, error) {
	id := base64.RawURLEncoding.EncodeToString([]byte(url))

	resp, err := c.http.R().SetContext(ctx).Get("/urls/" + id)
	if err != nil {
		return Finding{}, fmt.Errorf("reputation lookup failed: %w", err)
	}
	if !resp.IsSuccess() {
		return Finding{}, fmt.Errorf("reputation lookup returned status %d", resp.StatusCode())
	}

	stats := gjson.GetBytes(resp.Body(), "data.attributes.last_analysis_stats")
	if !stats.Exists() {
		return Finding{}, fmt.Errorf("reputation response missing analysis stats")
	}

	finding := Finding{
		Malicious:  stats.Get("malicious").Int(),
		Suspicious: stats.Get("suspicious").Int(),
		Harmless:   stats.Get("harmless").Int(),
	}

	switch {
	case finding.Malicious > 0 || finding.Suspicious > 0:
		finding.Reputation = domain.ReputationMalicious
		finding.Note = "provider flagged the URL as malicious/suspicious"
	case finding.Harmless > 0:
		finding.Reputation = domain.ReputationClean
		finding.Note = "provider classified the URL as clean"
	default:
		finding.Reputation = domain.ReputationUnknown
		finding.Note = "provider has no strong signal for this URL"
	}

	c.logger.Debug("Reputation lookup completed",
		"url", url,
		"reputation", finding.Reputation,
		"malicious", finding.Malicious,
		"suspicious", finding.Suspicious,
		"harmless", finding.Harmless)

	return finding, nil
}
