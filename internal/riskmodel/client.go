package riskmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/metrics"
)

const systemPrompt = `You are an anti-fraud URL classifier for Brazilian banking and government services.

You receive a normalized URL, its domain, a local rules score and a technical evidence summary.
Assess the risk that the URL is a financial/"pending benefits" phishing scam, considering:
- URL and domain structure
- Common scam patterns (bank, government, IRPF, FGTS, "valores a receber")
- The technical evidence supplied

IMPORTANT:
- You have NO internet access. Use only the data in the prompt.
- Do not guess whether a domain is official without clear signals.
- Be conservative: only flag phishing on strong signals.

Reply with a strict JSON object: {"riskScore": <0.0..1.0>, "phishing": <bool>, "explanation": "<short text>"}`

// Assessment is the structured answer from the risk model
type Assessment struct {
	RiskScore   float64 `json:"riskScore"`
	Phishing    bool    `json:"phishing"`
	Explanation string  `json:"explanation"`
}

// Client consults an external chat-completions model for a risk assessment.
// Any transport, provider or parsing failure is returned as an error; callers
// treat an error as the "unavailable" sentinel, never as a numeric answer.
type Client struct {
	http    *resty.Client
	cfg     config.RiskModelConfig
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewClient creates a risk-model client
func NewClient(cfg config.RiskModelConfig, collector *metrics.Collector, logger *slog.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    client,
		cfg:     cfg,
		metrics: collector,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// Classify asks the model for a risk assessment of the URL given the local
// pipeline context
func (c *Client) Classify(ctx context.Context, normalizedURL, host string, localScore int, evidenceSummary string) (*Assessment, error) {
	userPrompt := fmt.Sprintf(
		"Analyze the following URL for a possible scam:\n\n"+
			"Normalized URL: %s\nDomain: %s\nLocal rules score: %d\nTechnical evidence: %s\n\n"+
			"Fill in the JSON fields riskScore, phishing and explanation.",
		normalizedURL, host, localScore, evidenceSummary)

	req := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	req.ResponseFormat.Type = "json_object"

	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post("/chat/completions")
	if err != nil {
		c.metrics.RecordProviderFailure("risk_model")
		return nil, fmt.Errorf("risk model call failed: %w", err)
	}
	if !resp.IsSuccess() {
		c.metrics.RecordProviderFailure("risk_model")
		return nil, fmt.Errorf("risk model returned status %d", resp.StatusCode())
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content")
	if !content.Exists() {
		c.metrics.RecordProviderFailure("risk_model")
		return nil, fmt.Errorf("risk model response missing message content")
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(content.String()), &assessment); err != nil {
		c.metrics.RecordProviderFailure("risk_model")
		return nil, fmt.Errorf("failed to parse risk model answer: %w", err)
	}

	if assessment.RiskScore < 0 || assessment.RiskScore > 1 {
		c.metrics.RecordProviderFailure("risk_model")
		return nil, fmt.Errorf("risk model answer out of range: %v", assessment.RiskScore)
	}

	c.logger.Debug("Risk model answered",
		"url", normalizedURL,
		"risk_score", assessment.RiskScore,
		"phishing", assessment.Phishing)

	return &assessment, nil
}
