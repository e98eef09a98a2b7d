package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"review-radar/config"
)

const systemPrompt = `You are a restaurant review analyst. Extract structured
intelligence from a single customer review and reply with ONLY a JSON object
matching this schema, no prose:

{
  "overall_sentiment": "positive" | "neutral" | "negative",
  "emotion": "<dominant emotion, one word>",
  "categories": {
    "food": <-1..1, omit if not mentioned>,
    "service": <-1..1, omit if not mentioned>,
    "ambience": <-1..1, omit if not mentioned>,
    "value": <-1..1, omit if not mentioned>
  },
  "strengths": ["<short phrase>", ...],
  "opportunities": ["<short phrase>", ...],
  "staff_mentioned": [{"name": "...", "role": "<inferred role>", "sentiment": "positive"|"neutral"|"negative"}],
  "items_mentioned": [{"name": "...", "polarity": "positive"|"neutral"|"negative", "intensity": <1-5>}],
  "severity_flags": ["quality"|"wait-time"|"hygiene", ...],
  "return_intent": "yes" | "no" | "unknown"
}

Use empty arrays when nothing applies. Never invent staff names or menu items
that the review does not contain.`

// Client calls the external AI extraction service through an
// OpenAI-compatible endpoint with a JSON response format.
type Client struct {
	model   llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates the extraction client from config.
func NewClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	model, err := openai.New(
		openai.WithToken(cfg.AIAPIKey),
		openai.WithBaseURL(cfg.AIBaseURL),
		openai.WithModel(cfg.AIModel),
		openai.WithResponseFormat(&openai.ResponseFormat{Type: "json_object"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}
	return &Client{model: model, timeout: cfg.AITimeout(), logger: logger}, nil
}

// Extract runs one extraction call with a hard per-call timeout. A timed-out
// or schema-invalid response is an error; the caller decides the review's
// fate. Note: some providers may finish (and bill) server-side work after a
// client timeout; we never count usage for such calls.
func (c *Client) Extract(ctx context.Context, reviewText string, rating int) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Star rating: %d/5\nReview:\n%s", rating, reviewText)),
	}

	resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}

	raw := resp.Choices[0].Content
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn("Extraction response is not valid JSON", zap.String("raw", raw))
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if err := result.Validate(); err != nil {
		c.logger.Warn("Extraction response failed schema validation",
			zap.Error(err), zap.String("raw", raw))
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return &result, nil
}
