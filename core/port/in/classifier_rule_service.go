package in

import (
	"context"

	"classifier_server/core/domain"

	"github.com/google/uuid"
)

// RuleService manages user classification rules.
type RuleService interface {
	CreateRule(ctx context.Context, userID uuid.UUID, req *CreateRuleRequest) (*domain.Rule, error)
	GetRule(ctx context.Context, userID uuid.UUID, ruleID int64) (*domain.Rule, error)
	ListRules(ctx context.Context, userID uuid.UUID, filter domain.RuleFilter) ([]*domain.Rule, int, error)
	UpdateRule(ctx context.Context, userID uuid.UUID, ruleID int64, req *UpdateRuleRequest) (*domain.Rule, error)
	DeleteRule(ctx context.Context, userID uuid.UUID, ruleID int64) error
	SetEnabled(ctx context.Context, userID uuid.UUID, ruleID int64, enabled bool) (*domain.Rule, error)

	// ReorderRules atomically replaces the owner's rule priorities. IDs come
	// highest-priority first and must cover existing rules only.
	ReorderRules(ctx context.Context, userID uuid.UUID, orderedIDs []int64) error

	// TestRule previews a rule against a sample email without saving anything.
	TestRule(ctx context.Context, req *TestRuleRequest) (*TestRuleResult, error)
}

// CreateRuleRequest carries a new rule definition.
type CreateRuleRequest struct {
	Name       string                   `json:"name"`
	Sender     *domain.SenderCondition  `json:"sender,omitempty"`
	Subject    *domain.SubjectCondition `json:"subject,omitempty"`
	Body       *domain.BodyCondition    `json:"body,omitempty"`
	Category   domain.EmailCategory     `json:"category"`
	Importance domain.Importance        `json:"importance"`
	Priority   int                      `json:"priority"`
	Enabled    *bool                    `json:"enabled,omitempty"`
}

// UpdateRuleRequest carries a partial rule update. Nil fields keep their
// stored value; condition groups are replaced whole when present.
type UpdateRuleRequest struct {
	Name       *string                  `json:"name,omitempty"`
	Sender     *domain.SenderCondition  `json:"sender,omitempty"`
	Subject    *domain.SubjectCondition `json:"subject,omitempty"`
	Body       *domain.BodyCondition    `json:"body,omitempty"`
	Category   *domain.EmailCategory    `json:"category,omitempty"`
	Importance *domain.Importance       `json:"importance,omitempty"`
	Priority   *int                     `json:"priority,omitempty"`
	Enabled    *bool                    `json:"enabled,omitempty"`
}

// TestRuleRequest pairs an unsaved rule with a sample email.
type TestRuleRequest struct {
	Rule    CreateRuleRequest `json:"rule"`
	Sender  string            `json:"sender"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
}

// ConditionCheck reports how one declared condition group fared against
// the sample.
type ConditionCheck struct {
	Field   string `json:"field"` // sender, subject, or body
	Matched bool   `json:"matched"`
	Detail  string `json:"detail"`
}

// TestRuleResult reports whether the sample matched, with a per-condition
// breakdown. Category and Importance carry the assignment the rule would
// make; they are set only on a match.
type TestRuleResult struct {
	Matched    bool                 `json:"matched"`
	Score      float64              `json:"score"`
	Category   domain.EmailCategory `json:"category,omitempty"`
	Importance domain.Importance    `json:"importance,omitempty"`
	Conditions []ConditionCheck     `json:"conditions"`
}
