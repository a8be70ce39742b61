package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"classifier_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SuggestionAdapter implements domain.SuggestionRepository.
type SuggestionAdapter struct {
	db *sqlx.DB
}

// NewSuggestionAdapter creates a new SuggestionAdapter.
func NewSuggestionAdapter(db *sqlx.DB) *SuggestionAdapter {
	return &SuggestionAdapter{db: db}
}

// suggestionRow represents the database row.
type suggestionRow struct {
	ID            int64         `db:"id"`
	OwnerID       uuid.UUID     `db:"owner_id"`
	Type          string        `db:"type"`
	Pattern       string        `db:"pattern"`
	Category      string        `db:"category"`
	Confidence    float64       `db:"confidence"`
	SampleCount   int           `db:"sample_count"`
	Reason        string        `db:"reason"`
	Status        string        `db:"status"`
	CreatedRuleID sql.NullInt64 `db:"created_rule_id"`
	CreatedAt     time.Time     `db:"created_at"`
	ResolvedAt    sql.NullTime  `db:"resolved_at"`
}

func (r *suggestionRow) toEntity() *domain.Suggestion {
	s := &domain.Suggestion{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Type:        domain.SuggestionType(r.Type),
		Pattern:     r.Pattern,
		Category:    domain.EmailCategory(r.Category),
		Confidence:  r.Confidence,
		SampleCount: r.SampleCount,
		Reason:      r.Reason,
		Status:      domain.SuggestionStatus(r.Status),
		CreatedAt:   r.CreatedAt,
	}
	if r.CreatedRuleID.Valid {
		s.CreatedRuleID = &r.CreatedRuleID.Int64
	}
	if r.ResolvedAt.Valid {
		s.ResolvedAt = &r.ResolvedAt.Time
	}
	return s
}

// Create inserts a new pending suggestion.
func (a *SuggestionAdapter) Create(ctx context.Context, s *domain.Suggestion) (*domain.Suggestion, error) {
	query := `
		INSERT INTO rule_suggestions (owner_id, type, pattern, category, confidence, sample_count, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := a.db.QueryRowContext(ctx, query,
		s.OwnerID, string(s.Type), s.Pattern, string(s.Category), s.Confidence, s.SampleCount, s.Reason, string(s.Status),
	).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion: %w", err)
	}

	return s, nil
}

// GetByID retrieves a suggestion scoped to its owner.
func (a *SuggestionAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.Suggestion, error) {
	var row suggestionRow
	query := `SELECT * FROM rule_suggestions WHERE id = $1 AND owner_id = $2`

	if err := a.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}

	return row.toEntity(), nil
}

// ListPending retrieves unresolved suggestions, highest confidence first.
func (a *SuggestionAdapter) ListPending(ctx context.Context, ownerID uuid.UUID) ([]*domain.Suggestion, error) {
	var rows []suggestionRow
	query := `SELECT * FROM rule_suggestions WHERE owner_id = $1 AND status = $2 ORDER BY confidence DESC, id`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID, string(domain.SuggestionPending)); err != nil {
		return nil, fmt.Errorf("failed to list pending suggestions: %w", err)
	}

	suggestions := make([]*domain.Suggestion, len(rows))
	for i, row := range rows {
		suggestions[i] = row.toEntity()
	}

	return suggestions, nil
}

// CountPending counts the owner's unresolved suggestions.
func (a *SuggestionAdapter) CountPending(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM rule_suggestions WHERE owner_id = $1 AND status = $2`
	if err := a.db.GetContext(ctx, &count, query, ownerID, string(domain.SuggestionPending)); err != nil {
		return 0, fmt.Errorf("failed to count pending suggestions: %w", err)
	}
	return count, nil
}

// UpdateStatus resolves a suggestion, optionally linking the created rule.
func (a *SuggestionAdapter) UpdateStatus(ctx context.Context, id int64, status domain.SuggestionStatus, ruleID *int64) error {
	query := `UPDATE rule_suggestions SET status = $2, created_rule_id = $3, resolved_at = NOW() WHERE id = $1`

	var createdRuleID sql.NullInt64
	if ruleID != nil {
		createdRuleID = sql.NullInt64{Int64: *ruleID, Valid: true}
	}

	result, err := a.db.ExecContext(ctx, query, id, string(status), createdRuleID)
	if err != nil {
		return fmt.Errorf("failed to update suggestion status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("suggestion not found: %d: %w", id, ErrNotFound)
	}

	return nil
}

// ExistsPattern reports whether an unresolved suggestion with the same type
// and pattern already exists for the owner.
func (a *SuggestionAdapter) ExistsPattern(ctx context.Context, ownerID uuid.UUID, typ domain.SuggestionType, pattern string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM rule_suggestions
			WHERE owner_id = $1 AND type = $2 AND pattern = $3 AND status = $4
		)`

	var exists bool
	err := a.db.GetContext(ctx, &exists, query, ownerID, string(typ), pattern, string(domain.SuggestionPending))
	if err != nil {
		return false, fmt.Errorf("failed to check suggestion pattern: %w", err)
	}

	return exists, nil
}
