// Package semantic implements the content-understanding classifier on top of
// an LLM chat completion API.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"classifier_server/core/domain"
	"classifier_server/core/port/out"
	"classifier_server/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultMaxTokens  = 512
	defaultTimeoutSec = 30

	// Batch calls pack several emails into one prompt; beyond this the
	// model starts dropping entries.
	maxBatchSize = 20
)

// OpenAIAdapter implements out.SemanticClassifier using OpenAI chat
// completions behind a circuit breaker.
type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
}

// Config holds the adapter configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TimeoutSec  int
}

// NewOpenAIAdapter creates a new semantic classifier adapter.
func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	timeoutSec := cfg.TimeoutSec
	if timeoutSec == 0 {
		timeoutSec = defaultTimeoutSec
	}

	cbSettings := gobreaker.Settings{
		Name:        "semantic-llm",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &OpenAIAdapter{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// semanticResponse is the JSON shape the model is asked to produce.
type semanticResponse struct {
	ID         int64   `json:"id,omitempty"`
	Category   string  `json:"category"`
	Importance int     `json:"importance"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Classify predicts a category and importance for a single email.
func (a *OpenAIAdapter) Classify(ctx context.Context, email out.EmailForAnalysis) (*out.SemanticResult, error) {
	prompt := buildSinglePrompt(email)

	content, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp semanticResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse semantic response: %w", err)
	}

	result, err := toResult(&resp)
	if err != nil {
		return nil, fmt.Errorf("semantic response rejected: %w", err)
	}

	return result, nil
}

// ClassifyBatch predicts categories for several emails in one completion.
// Entries the model skipped are absent from the result map.
func (a *OpenAIAdapter) ClassifyBatch(ctx context.Context, emails []out.EmailForAnalysis) (map[int64]*out.SemanticResult, error) {
	results := make(map[int64]*out.SemanticResult, len(emails))

	for start := 0; start < len(emails); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(emails) {
			end = len(emails)
		}
		chunk := emails[start:end]

		content, err := a.complete(ctx, buildBatchPrompt(chunk))
		if err != nil {
			return nil, err
		}

		var resp struct {
			Results []semanticResponse `json:"results"`
		}
		if err := json.Unmarshal([]byte(content), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse semantic batch response: %w", err)
		}

		for i := range resp.Results {
			result, err := toResult(&resp.Results[i])
			if err != nil {
				logger.WithError(err).WithField("email_id", resp.Results[i].ID).
					Warn("Skipping invalid semantic batch entry")
				continue
			}
			results[resp.Results[i].ID] = result
		}
	}

	return results, nil
}

// complete runs one chat completion through the circuit breaker.
func (a *OpenAIAdapter) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.cb.Execute(func() (interface{}, error) {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.model,
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("semantic classification failed: %w", err)
	}

	return raw.(string), nil
}

// toResult validates the model output against the closed category set and
// importance range. Out-of-range confidence is clamped to [0, 1].
func toResult(resp *semanticResponse) (*out.SemanticResult, error) {
	category := domain.EmailCategory(strings.ToLower(strings.TrimSpace(resp.Category)))
	if !domain.IsValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", resp.Category)
	}

	importance := domain.Importance(resp.Importance)
	if !domain.IsValidImportance(importance) {
		return nil, fmt.Errorf("importance %d out of range", resp.Importance)
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &out.SemanticResult{
		Category:   category,
		Importance: importance,
		Confidence: confidence,
		Reason:     resp.Reason,
	}, nil
}

var systemPrompt = fmt.Sprintf(`You are an email classification engine.
Classify each email into exactly one category from this list: %s.
Importance is an integer from 1 (normal) to 4 (critical).
Confidence is a number from 0.0 to 1.0 reflecting how certain you are.
Respond with JSON only.`, categoryList())

func categoryList() string {
	names := make([]string, len(domain.AllCategories))
	for i, c := range domain.AllCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func buildSinglePrompt(email out.EmailForAnalysis) string {
	var b strings.Builder
	b.WriteString("Classify this email.\n")
	writeEmail(&b, email)
	b.WriteString(`Respond as {"category": "...", "importance": N, "confidence": 0.N, "reason": "..."}`)
	return b.String()
}

func buildBatchPrompt(emails []out.EmailForAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify these %d emails.\n\n", len(emails))
	for _, email := range emails {
		fmt.Fprintf(&b, "Email id=%d\n", email.ID)
		writeEmail(&b, email)
		b.WriteString("\n")
	}
	b.WriteString(`Respond as {"results": [{"id": N, "category": "...", "importance": N, "confidence": 0.N}, ...]}`)
	return b.String()
}

func writeEmail(b *strings.Builder, email out.EmailForAnalysis) {
	fmt.Fprintf(b, "From: %s", email.Sender)
	if email.FromName != "" {
		fmt.Fprintf(b, " (%s)", email.FromName)
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "Subject: %s\n", email.Subject)
	if email.Snippet != "" {
		fmt.Fprintf(b, "Body: %s\n", email.Snippet)
	}
}

var _ out.SemanticClassifier = (*OpenAIAdapter)(nil)
