package in

import (
	"context"

	"classifier_server/core/domain"

	"github.com/google/uuid"
)

// SuggestionService manages mined rule suggestions.
type SuggestionService interface {
	// ListSuggestions returns the owner's pending suggestions.
	ListSuggestions(ctx context.Context, userID uuid.UUID) ([]*domain.Suggestion, error)

	// Accept creates a rule from the suggestion and resolves it. Accepting
	// an already-resolved or missing suggestion is a no-op.
	Accept(ctx context.Context, userID uuid.UUID, suggestionID int64) (*AcceptResult, error)

	// Dismiss resolves the suggestion without creating a rule.
	Dismiss(ctx context.Context, userID uuid.UUID, suggestionID int64) (*AcceptResult, error)

	// StartMining enqueues a background mining pass.
	StartMining(ctx context.Context, userID uuid.UUID, req *MineRequest) (*domain.Job, error)
}

// MineRequest tunes a mining pass. Zero values take server defaults.
type MineRequest struct {
	LookbackDays int `json:"lookback_days,omitempty"`
	MinSamples   int `json:"min_samples,omitempty"`
}

// AcceptResult reports the lifecycle transition outcome.
type AcceptResult struct {
	Status     string             `json:"status"` // accepted, dismissed, already_resolved
	Suggestion *domain.Suggestion `json:"suggestion,omitempty"`
	Rule       *domain.Rule       `json:"rule,omitempty"`
}
