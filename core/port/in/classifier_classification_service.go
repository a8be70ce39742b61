package in

import (
	"context"

	"classifier_server/core/domain"

	"github.com/google/uuid"
)

// ClassificationService runs the cascade and manages assignments.
type ClassificationService interface {
	// ClassifyEmail runs the full cascade for one stored email and persists
	// the outcome.
	ClassifyEmail(ctx context.Context, userID uuid.UUID, emailID int64) (*ClassificationResult, error)

	// Preview runs the cascade on ad-hoc content without persisting.
	Preview(ctx context.Context, userID uuid.UUID, req *PreviewRequest) (*ClassificationResult, error)

	// Override records a manual category assignment.
	Override(ctx context.Context, userID uuid.UUID, emailID int64, category domain.EmailCategory, importance domain.Importance) (*domain.Email, error)

	// History lists the classification events for one email.
	History(ctx context.Context, userID uuid.UUID, emailID int64) ([]*domain.ClassificationEvent, error)

	// Stats aggregates category and method distributions.
	Stats(ctx context.Context, userID uuid.UUID) (*ClassificationStats, error)

	// StartReclassify enqueues a bulk reclassification job.
	StartReclassify(ctx context.Context, userID uuid.UUID, req *ReclassifyRequest) (*domain.Job, error)

	// StartApplyRule enqueues a single-rule application job.
	StartApplyRule(ctx context.Context, userID uuid.UUID, ruleID int64) (*domain.Job, error)

	// Job state
	GetJob(ctx context.Context, userID uuid.UUID, jobID string) (*domain.Job, error)
	CancelJob(ctx context.Context, userID uuid.UUID, jobID string) (*domain.Job, error)
}

// PreviewRequest is ad-hoc email content for a dry-run classification.
type PreviewRequest struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClassificationResult is one cascade outcome.
type ClassificationResult struct {
	Category   domain.EmailCategory        `json:"category"`
	Importance domain.Importance           `json:"importance"`
	Method     domain.ClassificationMethod `json:"method"`
	RuleID     *int64                      `json:"rule_id,omitempty"`
	Confidence float64                     `json:"confidence"`
}

// ReclassifyRequest scopes a bulk job.
type ReclassifyRequest struct {
	EmailIDs    []int64 `json:"email_ids,omitempty"`
	OnlyUnruled bool    `json:"only_unruled,omitempty"`
}

// ClassificationStats is the stats endpoint payload.
type ClassificationStats struct {
	Total              int                   `json:"total"`
	Categories         []domain.CategoryStat `json:"categories"`
	Methods            []domain.MethodStat   `json:"methods"`
	RuleCount          int                   `json:"rule_count"`
	PendingSuggestions int                   `json:"pending_suggestions"`
}
