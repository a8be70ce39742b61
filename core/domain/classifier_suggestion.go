package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Rule Suggestions
// =============================================================================

// SuggestionType says what kind of rule a suggestion would create.
type SuggestionType string

const (
	SuggestSender         SuggestionType = "sender"          // exact sender address
	SuggestSenderDomain   SuggestionType = "sender_domain"   // whole domain
	SuggestSubjectKeyword SuggestionType = "subject_keyword" // single subject keyword
)

// SuggestionStatus is the lifecycle state of a mined suggestion.
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

// Suggestion is a mined rule candidate awaiting user review. Pattern holds
// the address, domain, or keyword depending on Type.
type Suggestion struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Type     SuggestionType `json:"type"`
	Pattern  string         `json:"pattern"`
	Category EmailCategory  `json:"category"`

	// Confidence is the fraction of sampled emails agreeing on Category.
	Confidence  float64 `json:"confidence"`
	SampleCount int     `json:"sample_count"`

	// Reason is the human-readable explanation shown to the user, e.g.
	// "5 emails from billing@acme.example were manually moved to finance".
	Reason string `json:"reason"`

	Status SuggestionStatus `json:"status"`

	// CreatedRuleID is set once the suggestion is accepted.
	CreatedRuleID *int64 `json:"created_rule_id,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// SuggestionRepository persists mined suggestions.
type SuggestionRepository interface {
	Create(ctx context.Context, s *Suggestion) (*Suggestion, error)
	GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*Suggestion, error)
	ListPending(ctx context.Context, ownerID uuid.UUID) ([]*Suggestion, error)
	CountPending(ctx context.Context, ownerID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, id int64, status SuggestionStatus, ruleID *int64) error
	// ExistsPattern reports whether an unresolved suggestion with the same
	// type and pattern already exists for the owner.
	ExistsPattern(ctx context.Context, ownerID uuid.UUID, typ SuggestionType, pattern string) (bool, error)
}

// MiningSample is one classified email observation fed to the miner.
type MiningSample struct {
	Sender   string
	Subject  string
	Category EmailCategory
}

// MiningSampleSource yields recent manually-corrected or rule-free
// classifications within a lookback window.
type MiningSampleSource interface {
	RecentSamples(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]MiningSample, error)
}
