package watsonx

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// ModeTextGen tags forecasts produced by prompting the instruct model.
const ModeTextGen = "textgen"

// promptTailPoints caps how much history goes into the text prompt. The
// instruct model does not benefit from hundreds of rows the way the TTM
// context window does.
const promptTailPoints = 24

// TextGenerator calls the watsonx.ai text generation endpoint. It serves as
// both a domain.Forecaster fallback and the impact summary writer.
type TextGenerator struct {
	client *Client
}

// NewTextGenerator wraps a shared client.
func NewTextGenerator(c *Client) *TextGenerator {
	return &TextGenerator{client: c}
}

var _ domain.Forecaster = (*TextGenerator)(nil)

type genRequest struct {
	ModelID    string        `json:"model_id"`
	ProjectID  string        `json:"project_id"`
	Input      string        `json:"input"`
	Parameters genParameters `json:"parameters"`
}

type genParameters struct {
	DecodingMethod string  `json:"decoding_method"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
}

type genResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
	} `json:"results"`
}

// ForecastSeries prompts the instruct model with the county's recent history
// and parses a single number out of the completion.
func (g *TextGenerator) ForecastSeries(ctx context.Context, key domain.JoinKey, series domain.Series) (domain.Forecast, error) {
	if series.Len() == 0 {
		return domain.Forecast{}, fmt.Errorf("no history for %s", key)
	}

	tail := series.Points
	if len(tail) > promptTailPoints {
		tail = tail[len(tail)-promptTailPoints:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The monthly socioeconomic risk index for %s has been:\n", key)
	for _, p := range tail {
		fmt.Fprintf(&b, "%s: %.4f\n", p.Date.Format("2006-01"), p.Value)
	}
	b.WriteString("Predict the risk index for the next month. Respond with only the number.\n")

	req := genRequest{
		ModelID:   g.client.cfg.TextModelID,
		ProjectID: g.client.cfg.ProjectID,
		Input:     b.String(),
		Parameters: genParameters{
			DecodingMethod: "greedy",
			MaxNewTokens:   16,
		},
	}

	var resp genResponse
	if err := g.client.postJSON(ctx, "/ml/v1/text/generation", req, &resp); err != nil {
		return domain.Forecast{}, fmt.Errorf("text generation forecast for %s: %w", key, err)
	}
	if len(resp.Results) == 0 {
		return domain.Forecast{}, fmt.Errorf("text generation forecast for %s: empty results", key)
	}

	value, err := parseLeadingNumber(resp.Results[0].GeneratedText)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("text generation forecast for %s: %w", key, err)
	}
	return domain.Forecast{Value: value, Mode: ModeTextGen}, nil
}

// GenerateSummary asks the instruct model for a plain-English summary of the
// highest-risk regions in the export.
func (g *TextGenerator) GenerateSummary(ctx context.Context, records []domain.RiskRecord) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the key economic and social impacts by region in plain English.\n")
	b.WriteString("Regional risk scores:\n")
	limit := len(records)
	if limit > 25 {
		limit = 25
	}
	for _, rec := range records[:limit] {
		fmt.Fprintf(&b, "%s: %.2f\n", rec.Region, rec.RiskScore)
	}

	req := genRequest{
		ModelID:   g.client.cfg.TextModelID,
		ProjectID: g.client.cfg.ProjectID,
		Input:     b.String(),
		Parameters: genParameters{
			DecodingMethod: "sample",
			MaxNewTokens:   300,
			Temperature:    0.7,
			TopP:           0.95,
		},
	}

	var resp genResponse
	if err := g.client.postJSON(ctx, "/ml/v1/text/generation", req, &resp); err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", fmt.Errorf("generate summary: empty results")
	}
	return strings.TrimSpace(resp.Results[0].GeneratedText), nil
}

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseLeadingNumber extracts the first numeric token from a completion.
// Instruct models sometimes wrap the answer in prose even when told not to.
func parseLeadingNumber(text string) (float64, error) {
	match := numberRe.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("no number in completion %q", truncate(text, 80))
	}
	return strconv.ParseFloat(match, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
