package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClassificationEvent is one entry in an email's classification history.
// Every assignment, automatic or manual, appends an event.
type ClassificationEvent struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	EmailID int64     `json:"email_id"`

	FromCategory *EmailCategory       `json:"from_category,omitempty"`
	ToCategory   EmailCategory        `json:"to_category"`
	Importance   Importance           `json:"importance"`
	Method       ClassificationMethod `json:"method"`
	RuleID       *int64               `json:"rule_id,omitempty"`
	Confidence   *float64             `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository records and reads classification events.
type HistoryRepository interface {
	Append(ctx context.Context, ev *ClassificationEvent) error
	ListByEmail(ctx context.Context, ownerID uuid.UUID, emailID int64) ([]*ClassificationEvent, error)
	// ManualCorrections feeds the suggestion miner: manual overrides since
	// the given time.
	ManualCorrections(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]MiningSample, error)
}
