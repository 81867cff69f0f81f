// Package analyzer implements the LLM-backed threat assessment client. It
// speaks an OpenAI-compatible chat completions API.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/samber/oops"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	scandomain "github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// maxArticlesPerAssessment bounds the prompt size per analysis call.
const maxArticlesPerAssessment = 5

// Assessment is the structured verdict produced from a batch of articles.
type Assessment struct {
	Severity          alertdomain.SeverityLevel
	Confidence        float64
	Title             string
	Summary           string
	KeyThreats        []string
	AttackVectors     []string
	AffectedSectors   []string
	GeographicalScope []string
	ThreatActors      []string
	Recommendations   string
}

// Usage reports the token consumption of one analysis call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Client turns a batch of articles into a threat assessment.
type Client interface {
	Assess(ctx context.Context, topic string, articles []scandomain.Article) (Assessment, Usage, error)
	Model() string
}

// Config carries the analysis API credentials and model selection.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// HTTPClient implements Client against an OpenAI-compatible endpoint.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds an analyzer client from configuration.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model reports the configured model name for cost attribution.
func (c *HTTPClient) Model() string { return c.cfg.Model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

const systemPrompt = `You are a cyber threat intelligence analyst. Assess the supplied news articles for threats related to the monitored topic. Respond with a single JSON object with keys: severity (low|medium|high|critical), confidence (0.0-1.0), title, summary, key_threats (list), attack_vectors (list), affected_sectors (list), geographical_scope (list), threat_actors (list), recommendations.`

// Assess sends at most five articles to the model and parses the structured
// verdict from its reply. A reply that cannot be parsed still yields a usable
// medium-severity assessment rather than an error.
func (c *HTTPClient) Assess(ctx context.Context, topic string, articles []scandomain.Article) (Assessment, Usage, error) {
	if len(articles) > maxArticlesPerAssessment {
		articles = articles[:maxArticlesPerAssessment]
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(topic, articles)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Assessment{}, Usage{}, oops.With("context", "failed to encode analysis request").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Assessment{}, Usage{}, oops.With("context", "failed to build analysis request").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Assessment{}, Usage{}, oops.With("topic", topic, "context", "analysis request failed").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests {
			return Assessment{}, Usage{}, oops.With("status", resp.StatusCode, "body", string(body)).Wrap(sharederrors.ErrQuotaExceeded)
		}
		return Assessment{}, Usage{}, oops.With("status", resp.StatusCode, "body", string(body)).Errorf("analysis API returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Assessment{}, Usage{}, oops.With("topic", topic, "context", "failed to decode analysis response").Wrap(err)
	}
	if len(parsed.Choices) == 0 {
		return Assessment{}, Usage{}, oops.With("topic", topic).Errorf("analysis API returned no choices")
	}

	usage := Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}
	return ParseAssessment(parsed.Choices[0].Message.Content, topic), usage, nil
}

func buildUserPrompt(topic string, articles []scandomain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monitored topic: %s\n\nArticles:\n", topic)
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\nSource: %s\n%s\n\n", i+1, a.Title, a.Domain, a.Snippet)
	}
	return b.String()
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

type assessmentJSON struct {
	Severity          string   `json:"severity"`
	Confidence        float64  `json:"confidence"`
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	KeyThreats        []string `json:"key_threats"`
	AttackVectors     []string `json:"attack_vectors"`
	AffectedSectors   []string `json:"affected_sectors"`
	GeographicalScope []string `json:"geographical_scope"`
	ThreatActors      []string `json:"threat_actors"`
	Recommendations   string   `json:"recommendations"`
}

// ParseAssessment extracts the JSON verdict from a model reply. Replies that
// contain no parseable JSON fall back to a medium-severity assessment carrying
// the raw text as its summary.
func ParseAssessment(reply, topic string) Assessment {
	if block := jsonBlockRe.FindString(reply); block != "" {
		var v assessmentJSON
		if err := json.Unmarshal([]byte(block), &v); err == nil {
			severity, err := alertdomain.ParseSeverityLevel(v.Severity)
			if err != nil {
				severity = alertdomain.SeverityLevelMedium
			}
			return Assessment{
				Severity:          severity,
				Confidence:        clampConfidence(v.Confidence),
				Title:             lo.CoalesceOrEmpty(strings.TrimSpace(v.Title), fallbackTitle(topic)),
				Summary:           strings.TrimSpace(v.Summary),
				KeyThreats:        v.KeyThreats,
				AttackVectors:     v.AttackVectors,
				AffectedSectors:   v.AffectedSectors,
				GeographicalScope: v.GeographicalScope,
				ThreatActors:      v.ThreatActors,
				Recommendations:   v.Recommendations,
			}
		}
	}
	return Assessment{
		Severity:        alertdomain.SeverityLevelMedium,
		Confidence:      0.5,
		Title:           fallbackTitle(topic),
		Summary:         truncate(strings.TrimSpace(reply), 300),
		Recommendations: "Review sources for details",
	}
}

func fallbackTitle(topic string) string {
	return fmt.Sprintf("Threats detected for %s", topic)
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so multibyte text is never split.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
