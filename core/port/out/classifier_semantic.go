// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"

	"classifier_server/core/domain"
)

// SemanticResult is one prediction from the semantic classifier.
type SemanticResult struct {
	Category   domain.EmailCategory `json:"category"`
	Importance domain.Importance    `json:"importance"`
	Confidence float64              `json:"confidence"`
	Reason     string               `json:"reason,omitempty"`
}

// EmailForAnalysis is the context handed to the semantic classifier.
type EmailForAnalysis struct {
	ID       int64  `json:"id"`
	Sender   string `json:"sender"`
	FromName string `json:"from_name,omitempty"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
}

// SemanticClassifier is the content-understanding capability. It may be
// unavailable (quota, outage, disabled); callers fall back to heuristics.
type SemanticClassifier interface {
	Classify(ctx context.Context, email EmailForAnalysis) (*SemanticResult, error)
	ClassifyBatch(ctx context.Context, emails []EmailForAnalysis) (map[int64]*SemanticResult, error)
}
