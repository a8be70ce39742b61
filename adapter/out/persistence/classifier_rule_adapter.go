// Package persistence provides database adapters implementing outbound ports.
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

// RuleAdapter implements domain.RuleRepository.
type RuleAdapter struct {
	db *sqlx.DB
}

// NewRuleAdapter creates a new RuleAdapter.
func NewRuleAdapter(db *sqlx.DB) *RuleAdapter {
	return &RuleAdapter{db: db}
}

// ruleRow represents the database row. Condition groups are flattened into
// nullable columns; a NULL sender_pattern means no sender condition.
type ruleRow struct {
	ID              int64          `db:"id"`
	OwnerID         uuid.UUID      `db:"owner_id"`
	Name            string         `db:"name"`
	SenderPattern   sql.NullString `db:"sender_pattern"`
	SenderMode      sql.NullString `db:"sender_mode"`
	SubjectKeywords pq.StringArray `db:"subject_keywords"`
	SubjectLogic    sql.NullString `db:"subject_logic"`
	BodyKeywords    pq.StringArray `db:"body_keywords"`
	Category        string         `db:"category"`
	Importance      int            `db:"importance"`
	Priority        int            `db:"priority"`
	Enabled         bool           `db:"enabled"`
	HitCount        int            `db:"hit_count"`
	LastMatchedAt   sql.NullTime   `db:"last_matched_at"`
	PatternInvalid  bool           `db:"pattern_invalid"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *ruleRow) toEntity() *domain.Rule {
	rule := &domain.Rule{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Name:           r.Name,
		Category:       domain.EmailCategory(r.Category),
		Importance:     domain.Importance(r.Importance),
		Priority:       r.Priority,
		Enabled:        r.Enabled,
		HitCount:       r.HitCount,
		PatternInvalid: r.PatternInvalid,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.LastMatchedAt.Valid {
		rule.LastMatchedAt = &r.LastMatchedAt.Time
	}
	if r.SenderPattern.Valid {
		rule.Sender = &domain.SenderCondition{
			Pattern: r.SenderPattern.String,
			Mode:    domain.MatchMode(r.SenderMode.String),
		}
	}
	if len(r.SubjectKeywords) > 0 {
		logic := domain.LogicAny
		if r.SubjectLogic.Valid {
			logic = domain.KeywordLogic(r.SubjectLogic.String)
		}
		rule.Subject = &domain.SubjectCondition{
			Keywords: []string(r.SubjectKeywords),
			Logic:    logic,
		}
	}
	if len(r.BodyKeywords) > 0 {
		rule.Body = &domain.BodyCondition{Keywords: []string(r.BodyKeywords)}
	}
	return rule
}

// ruleColumns splits the condition groups back into column values.
func ruleColumns(rule *domain.Rule) (senderPattern, senderMode sql.NullString, subjectKeywords pq.StringArray, subjectLogic sql.NullString, bodyKeywords pq.StringArray) {
	if rule.Sender != nil {
		senderPattern = sql.NullString{String: rule.Sender.Pattern, Valid: true}
		senderMode = sql.NullString{String: string(rule.Sender.Mode), Valid: true}
	}
	if rule.Subject != nil {
		subjectKeywords = pq.StringArray(rule.Subject.Keywords)
		subjectLogic = sql.NullString{String: string(rule.Subject.Logic), Valid: true}
	}
	if rule.Body != nil {
		bodyKeywords = pq.StringArray(rule.Body.Keywords)
	}
	return
}

// Create inserts a new rule and fills in the generated fields.
func (a *RuleAdapter) Create(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	query := `
		INSERT INTO classification_rules
			(owner_id, name, sender_pattern, sender_mode, subject_keywords, subject_logic, body_keywords,
			 category, importance, priority, enabled, pattern_invalid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, hit_count, created_at, updated_at`

	senderPattern, senderMode, subjectKeywords, subjectLogic, bodyKeywords := ruleColumns(rule)

	err := a.db.QueryRowContext(ctx, query,
		rule.OwnerID, rule.Name, senderPattern, senderMode, subjectKeywords, subjectLogic, bodyKeywords,
		string(rule.Category), int(rule.Importance), rule.Priority, rule.Enabled, rule.PatternInvalid,
	).Scan(&rule.ID, &rule.HitCount, &rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return rule, nil
}

// GetByID retrieves a rule scoped to its owner.
func (a *RuleAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.Rule, error) {
	var row ruleRow
	query := `SELECT * FROM classification_rules WHERE id = $1 AND owner_id = $2`

	if err := a.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return row.toEntity(), nil
}

// List retrieves rules matching the filter, with a total count for paging.
func (a *RuleAdapter) List(ctx context.Context, ownerID uuid.UUID, filter domain.RuleFilter) ([]*domain.Rule, int, error) {
	where := `WHERE owner_id = $1`
	args := []any{ownerID}

	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		where += fmt.Sprintf(" AND enabled = $%d", len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM classification_rules ` + where
	if err := a.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	listQuery := fmt.Sprintf(
		`SELECT * FROM classification_rules %s ORDER BY priority DESC, id LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	var rows []ruleRow
	if err := a.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list rules: %w", err)
	}

	rules := make([]*domain.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toEntity()
	}

	return rules, total, nil
}

// ListEnabled retrieves all enabled rules for an owner, highest priority first.
func (a *RuleAdapter) ListEnabled(ctx context.Context, ownerID uuid.UUID) ([]*domain.Rule, error) {
	var rows []ruleRow
	query := `SELECT * FROM classification_rules WHERE owner_id = $1 AND enabled = TRUE ORDER BY priority DESC, id`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}

	rules := make([]*domain.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toEntity()
	}

	return rules, nil
}

// Update rewrites every mutable column of a rule.
func (a *RuleAdapter) Update(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	query := `
		UPDATE classification_rules
		SET name = $3, sender_pattern = $4, sender_mode = $5, subject_keywords = $6, subject_logic = $7,
		    body_keywords = $8, category = $9, importance = $10, priority = $11, enabled = $12,
		    pattern_invalid = $13, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at`

	senderPattern, senderMode, subjectKeywords, subjectLogic, bodyKeywords := ruleColumns(rule)

	err := a.db.QueryRowContext(ctx, query,
		rule.ID, rule.OwnerID, rule.Name, senderPattern, senderMode, subjectKeywords, subjectLogic,
		bodyKeywords, string(rule.Category), int(rule.Importance), rule.Priority, rule.Enabled,
		rule.PatternInvalid,
	).Scan(&rule.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("rule not found: %d: %w", rule.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	return rule, nil
}

// Delete removes a rule scoped to its owner.
func (a *RuleAdapter) Delete(ctx context.Context, ownerID uuid.UUID, id int64) error {
	query := `DELETE FROM classification_rules WHERE id = $1 AND owner_id = $2`

	result, err := a.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("rule not found: %d: %w", id, ErrNotFound)
	}

	return nil
}

// IncrementHitCount records a rule win: hit counter plus last-matched stamp.
func (a *RuleAdapter) IncrementHitCount(ctx context.Context, id int64) error {
	query := `UPDATE classification_rules SET hit_count = hit_count + 1, last_matched_at = NOW() WHERE id = $1`

	_, err := a.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment hit count: %w", err)
	}

	return nil
}

// Reorder rewrites the owner's rule priorities in one transaction. IDs come
// highest-priority first; position N gets priority len-N so existing gaps
// collapse. A missing or foreign ID rolls the whole batch back.
func (a *RuleAdapter) Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []int64) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE classification_rules SET priority = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`
	for i, id := range orderedIDs {
		result, err := tx.ExecContext(ctx, query, id, ownerID, len(orderedIDs)-i)
		if err != nil {
			return fmt.Errorf("failed to reorder rule %d: %w", id, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("rule not found during reorder: %d: %w", id, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// CountByOwner counts all of the owner's rules.
func (a *RuleAdapter) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM classification_rules WHERE owner_id = $1`
	if err := a.db.GetContext(ctx, &count, query, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

// ExistsSimilar reports whether the owner already has a rule with the same
// condition groups and target category.
func (a *RuleAdapter) ExistsSimilar(ctx context.Context, ownerID uuid.UUID, rule *domain.Rule) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM classification_rules
			WHERE owner_id = $1
			  AND category = $2
			  AND sender_pattern IS NOT DISTINCT FROM $3
			  AND sender_mode IS NOT DISTINCT FROM $4
			  AND subject_keywords IS NOT DISTINCT FROM $5
			  AND body_keywords IS NOT DISTINCT FROM $6
			  AND id <> $7
		)`

	senderPattern, senderMode, subjectKeywords, _, bodyKeywords := ruleColumns(rule)

	var exists bool
	err := a.db.GetContext(ctx, &exists, query,
		ownerID, string(rule.Category), senderPattern, senderMode, subjectKeywords, bodyKeywords, rule.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check similar rule: %w", err)
	}

	return exists, nil
}
