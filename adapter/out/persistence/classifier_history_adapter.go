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

// HistoryAdapter implements domain.HistoryRepository.
type HistoryAdapter struct {
	db *sqlx.DB
}

// NewHistoryAdapter creates a new HistoryAdapter.
func NewHistoryAdapter(db *sqlx.DB) *HistoryAdapter {
	return &HistoryAdapter{db: db}
}

// historyRow represents the database row.
type historyRow struct {
	ID           int64           `db:"id"`
	OwnerID      uuid.UUID       `db:"owner_id"`
	EmailID      int64           `db:"email_id"`
	FromCategory sql.NullString  `db:"from_category"`
	ToCategory   string          `db:"to_category"`
	Importance   int             `db:"importance"`
	Method       string          `db:"method"`
	RuleID       sql.NullInt64   `db:"rule_id"`
	Confidence   sql.NullFloat64 `db:"confidence"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r *historyRow) toEntity() *domain.ClassificationEvent {
	ev := &domain.ClassificationEvent{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		EmailID:    r.EmailID,
		ToCategory: domain.EmailCategory(r.ToCategory),
		Importance: domain.Importance(r.Importance),
		Method:     domain.ClassificationMethod(r.Method),
		CreatedAt:  r.CreatedAt,
	}
	if r.FromCategory.Valid {
		from := domain.EmailCategory(r.FromCategory.String)
		ev.FromCategory = &from
	}
	if r.RuleID.Valid {
		ev.RuleID = &r.RuleID.Int64
	}
	if r.Confidence.Valid {
		ev.Confidence = &r.Confidence.Float64
	}
	return ev
}

// Append records one classification event.
func (a *HistoryAdapter) Append(ctx context.Context, ev *domain.ClassificationEvent) error {
	query := `
		INSERT INTO classification_history
			(owner_id, email_id, from_category, to_category, importance, method, rule_id, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	var fromCategory sql.NullString
	if ev.FromCategory != nil {
		fromCategory = sql.NullString{String: string(*ev.FromCategory), Valid: true}
	}
	var ruleID sql.NullInt64
	if ev.RuleID != nil {
		ruleID = sql.NullInt64{Int64: *ev.RuleID, Valid: true}
	}
	var confidence sql.NullFloat64
	if ev.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *ev.Confidence, Valid: true}
	}

	err := a.db.QueryRowContext(ctx, query,
		ev.OwnerID, ev.EmailID, fromCategory, string(ev.ToCategory), int(ev.Importance),
		string(ev.Method), ruleID, confidence,
	).Scan(&ev.ID, &ev.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append classification event: %w", err)
	}

	return nil
}

// ListByEmail retrieves the full history of one email, newest first.
func (a *HistoryAdapter) ListByEmail(ctx context.Context, ownerID uuid.UUID, emailID int64) ([]*domain.ClassificationEvent, error) {
	var rows []historyRow
	query := `SELECT * FROM classification_history WHERE owner_id = $1 AND email_id = $2 ORDER BY created_at DESC, id DESC`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID, emailID); err != nil {
		return nil, fmt.Errorf("failed to list classification events: %w", err)
	}

	events := make([]*domain.ClassificationEvent, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}

	return events, nil
}

// ManualCorrections returns miner samples from manual overrides since the
// given time. Each sample joins the corrected category with the email's
// sender and subject.
func (a *HistoryAdapter) ManualCorrections(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]domain.MiningSample, error) {
	var rows []struct {
		Sender   string `db:"sender"`
		Subject  string `db:"subject"`
		Category string `db:"to_category"`
	}
	query := `
		SELECT e.sender, e.subject, h.to_category
		FROM classification_history h
		JOIN emails e ON e.id = h.email_id
		WHERE h.owner_id = $1 AND h.method = $2 AND h.created_at >= $3
		ORDER BY h.created_at`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID, string(domain.MethodManual), since); err != nil {
		return nil, fmt.Errorf("failed to list manual corrections: %w", err)
	}

	samples := make([]domain.MiningSample, len(rows))
	for i, row := range rows {
		samples[i] = domain.MiningSample{
			Sender:   row.Sender,
			Subject:  row.Subject,
			Category: domain.EmailCategory(row.Category),
		}
	}

	return samples, nil
}
