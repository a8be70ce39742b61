package classification

import (
	"context"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/port/out"
	"classifier_server/pkg/logger"
	"classifier_server/pkg/metrics"

	"github.com/google/uuid"
)

// =============================================================================
// Classification Cascade (4 layers)
// =============================================================================

// CascadeConfig holds thresholds for the cascade.
type CascadeConfig struct {
	// SemanticThreshold: minimum confidence to accept a semantic result.
	SemanticThreshold float64 // Default: 0.80

	// SemanticEnabled gates the semantic layer entirely.
	SemanticEnabled bool
}

// DefaultCascadeConfig returns the default configuration.
func DefaultCascadeConfig() *CascadeConfig {
	return &CascadeConfig{
		SemanticThreshold: 0.80,
		SemanticEnabled:   true,
	}
}

// CascadeResult is the outcome of one cascade run.
type CascadeResult struct {
	Category   domain.EmailCategory
	Importance domain.Importance
	Method     domain.ClassificationMethod
	RuleID     *int64
	Confidence float64

	ProcessingTimeMs int64
}

// Cascade runs the four classification layers in order.
//
//	Layer 1: User rules           → highest-priority matching rule wins
//	Layer 2: Semantic classifier  → accepted only above the confidence threshold
//	Layer 3: Keyword heuristics   → built-in bilingual keyword tables
//	Layer 4: Default              → general / normal importance
//
// Each layer is decisive: the first layer that produces an answer ends the
// run. Lower layers are never consulted to second-guess an upper layer.
type Cascade struct {
	config *CascadeConfig

	matcher  *Matcher
	keyword  *KeywordClassifier
	semantic out.SemanticClassifier

	ruleRepo domain.RuleRepository
}

// NewCascade creates a cascade. The semantic classifier may be nil; the
// cascade then skips layer 2.
func NewCascade(ruleRepo domain.RuleRepository, semantic out.SemanticClassifier, config *CascadeConfig) *Cascade {
	if config == nil {
		config = DefaultCascadeConfig()
	}
	return &Cascade{
		config:   config,
		matcher:  NewMatcher(),
		keyword:  NewKeywordClassifier(),
		semantic: semantic,
		ruleRepo: ruleRepo,
	}
}

// Matcher exposes the shared pattern matcher for rule validation and tests.
func (c *Cascade) Matcher() *Matcher {
	return c.matcher
}

// ClassifyInput is the content handed to the cascade.
type ClassifyInput struct {
	UserID  uuid.UUID
	EmailID int64 // 0 for ad-hoc previews
	Sender  string
	Subject string
	Body    string

	// CountHits updates rule hit counters on a layer-1 win. Previews leave
	// it false.
	CountHits bool
}

// Classify runs the cascade. It never returns an error for content it cannot
// place; the default layer always answers.
func (c *Cascade) Classify(ctx context.Context, input *ClassifyInput) (*CascadeResult, error) {
	startTime := time.Now()

	// Layer 1: user rules
	rules, err := c.ruleRepo.ListEnabled(ctx, input.UserID)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("rule listing failed, cascading past rules")
	} else if best := SelectBest(c.matcher, rules, input.Sender, input.Subject, input.Body); best != nil {
		if input.CountHits {
			go func(ruleID int64) {
				_ = c.ruleRepo.IncrementHitCount(context.WithoutCancel(ctx), ruleID)
			}(best.Rule.ID)
		}
		ruleID := best.Rule.ID
		return c.buildResult(domain.MethodRule, best.Rule.Category, best.Rule.Importance, &ruleID, 1.0, startTime), nil
	}

	// Layer 2: semantic classifier
	if c.config.SemanticEnabled && c.semantic != nil {
		result, err := c.semantic.Classify(ctx, out.EmailForAnalysis{
			ID:      input.EmailID,
			Sender:  input.Sender,
			Subject: input.Subject,
			Snippet: snippet(input.Body),
		})
		switch {
		case err != nil:
			// Unavailable semantic layer degrades to heuristics.
			logger.WithContext(ctx).WithError(err).Warn("semantic classify unavailable")
		case result != nil && result.Confidence >= c.config.SemanticThreshold && domain.IsValidCategory(result.Category):
			importance := result.Importance
			if !domain.IsValidImportance(importance) {
				importance = domain.ImportanceNormal
			}
			return c.buildResult(domain.MethodSemantic, result.Category, importance, nil, result.Confidence, startTime), nil
		}
	}

	// Layer 3: keyword heuristics
	if category, importance := c.keyword.Classify(input.Sender, input.Subject, input.Body); category != domain.CategoryGeneral {
		return c.buildResult(domain.MethodKeyword, category, importance, nil, 0.6, startTime), nil
	}

	// Layer 4: default
	return c.buildResult(domain.MethodDefault, domain.CategoryGeneral, domain.ImportanceNormal, nil, 0.5, startTime), nil
}

func (c *Cascade) buildResult(method domain.ClassificationMethod, category domain.EmailCategory, importance domain.Importance, ruleID *int64, confidence float64, startTime time.Time) *CascadeResult {
	metrics.RecordLatency("cascade."+string(method), time.Since(startTime))
	return &CascadeResult{
		Category:         category,
		Importance:       importance,
		Method:           method,
		RuleID:           ruleID,
		Confidence:       confidence,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}
}

// snippetLen caps the body text handed to the semantic classifier.
const snippetLen = 500

func snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= snippetLen {
		return body
	}
	return string(runes[:snippetLen])
}
