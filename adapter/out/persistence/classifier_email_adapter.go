package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"classifier_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EmailAdapter implements domain.EmailRepository.
type EmailAdapter struct {
	db *sqlx.DB
}

// NewEmailAdapter creates a new EmailAdapter.
func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

// emailRow represents the database row.
type emailRow struct {
	ID            int64          `db:"id"`
	OwnerID       uuid.UUID      `db:"owner_id"`
	Sender        string         `db:"sender"`
	FromName      sql.NullString `db:"from_name"`
	Subject       string         `db:"subject"`
	Snippet       string         `db:"snippet"`
	Category      string         `db:"category"`
	Importance    int            `db:"importance"`
	Method        string         `db:"classification_method"`
	MatchedRuleID sql.NullInt64  `db:"matched_rule_id"`
	ReceivedAt    time.Time      `db:"received_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *emailRow) toEntity() *domain.Email {
	email := &domain.Email{
		ID:                   r.ID,
		OwnerID:              r.OwnerID,
		Sender:               r.Sender,
		Subject:              r.Subject,
		Snippet:              r.Snippet,
		Category:             domain.EmailCategory(r.Category),
		Importance:           domain.Importance(r.Importance),
		ClassificationMethod: domain.ClassificationMethod(r.Method),
		ReceivedAt:           r.ReceivedAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.FromName.Valid {
		email.FromName = &r.FromName.String
	}
	if r.MatchedRuleID.Valid {
		email.MatchedRuleID = &r.MatchedRuleID.Int64
	}
	return email
}

// GetByID retrieves an email record by ID.
func (a *EmailAdapter) GetByID(ctx context.Context, id int64) (*domain.Email, error) {
	var row emailRow
	query := `SELECT * FROM emails WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	return row.toEntity(), nil
}

// ListIDsByOwner retrieves every email ID for an owner, oldest first. Bulk
// jobs iterate IDs and load records in batches to bound memory.
func (a *EmailAdapter) ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM emails WHERE owner_id = $1 ORDER BY id`

	if err := a.db.SelectContext(ctx, &ids, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list email ids: %w", err)
	}

	return ids, nil
}

// ListByIDs retrieves a batch of records, scoped to the owner.
func (a *EmailAdapter) ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []int64) ([]*domain.Email, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []emailRow
	query := `SELECT * FROM emails WHERE owner_id = $1 AND id = ANY($2) ORDER BY id`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}

	emails := make([]*domain.Email, len(rows))
	for i, row := range rows {
		emails[i] = row.toEntity()
	}

	return emails, nil
}

// CountByOwner returns the total number of records for an owner.
func (a *EmailAdapter) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM emails WHERE owner_id = $1`

	if err := a.db.GetContext(ctx, &total, query, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}

	return total, nil
}

// UpdateClassification persists a new assignment for one record.
func (a *EmailAdapter) UpdateClassification(ctx context.Context, id int64, category domain.EmailCategory, importance domain.Importance, method domain.ClassificationMethod, ruleID *int64) error {
	query := `
		UPDATE emails
		SET category = $2, importance = $3, classification_method = $4, matched_rule_id = $5, updated_at = NOW()
		WHERE id = $1`

	var matchedRuleID sql.NullInt64
	if ruleID != nil {
		matchedRuleID = sql.NullInt64{Int64: *ruleID, Valid: true}
	}

	result, err := a.db.ExecContext(ctx, query, id, string(category), int(importance), string(method), matchedRuleID)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("email not found: %d: %w", id, ErrNotFound)
	}

	return nil
}

// CategoryStats returns per-category totals for an owner.
func (a *EmailAdapter) CategoryStats(ctx context.Context, ownerID uuid.UUID) ([]domain.CategoryStat, error) {
	var rows []struct {
		Category string `db:"category"`
		Total    int    `db:"total"`
	}
	query := `SELECT category, COUNT(*) AS total FROM emails WHERE owner_id = $1 GROUP BY category ORDER BY total DESC`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get category stats: %w", err)
	}

	stats := make([]domain.CategoryStat, len(rows))
	for i, row := range rows {
		stats[i] = domain.CategoryStat{
			Category: domain.EmailCategory(row.Category),
			Total:    row.Total,
		}
	}

	return stats, nil
}

// MethodStats returns per-layer totals for an owner.
func (a *EmailAdapter) MethodStats(ctx context.Context, ownerID uuid.UUID) ([]domain.MethodStat, error) {
	var rows []struct {
		Method string `db:"classification_method"`
		Total  int    `db:"total"`
	}
	query := `SELECT classification_method, COUNT(*) AS total FROM emails WHERE owner_id = $1 GROUP BY classification_method ORDER BY total DESC`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get method stats: %w", err)
	}

	stats := make([]domain.MethodStat, len(rows))
	for i, row := range rows {
		stats[i] = domain.MethodStat{
			Method: domain.ClassificationMethod(row.Method),
			Total:  row.Total,
		}
	}

	return stats, nil
}
