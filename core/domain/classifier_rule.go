package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Match Modes
// =============================================================================

// MatchMode selects how a sender pattern is compared against an address.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"    // full-string, case-insensitive
	MatchContains MatchMode = "contains" // substring, case-insensitive
	MatchDomain   MatchMode = "domain"   // address domain equals pattern
	MatchWildcard MatchMode = "wildcard" // glob with * and ?
	MatchRegex    MatchMode = "regex"    // user-supplied regular expression
)

// IsValidMatchMode reports whether m is a recognized mode.
func IsValidMatchMode(m MatchMode) bool {
	switch m {
	case MatchExact, MatchContains, MatchDomain, MatchWildcard, MatchRegex:
		return true
	}
	return false
}

// KeywordLogic controls how multi-keyword subject conditions combine.
type KeywordLogic string

const (
	LogicAny KeywordLogic = "any" // at least one keyword present
	LogicAll KeywordLogic = "all" // every keyword present
)

// =============================================================================
// Rule Conditions
// =============================================================================

// SenderCondition matches the sender address with one of the match modes.
type SenderCondition struct {
	Pattern string    `json:"pattern"`
	Mode    MatchMode `json:"mode"`
}

// SubjectCondition matches keywords in the subject line.
type SubjectCondition struct {
	Keywords []string     `json:"keywords"`
	Logic    KeywordLogic `json:"logic"`
}

// BodyCondition matches keywords anywhere in the body text. Body keywords
// always combine with OR semantics.
type BodyCondition struct {
	Keywords []string `json:"keywords"`
}

// =============================================================================
// Classification Rule
// =============================================================================

// Rule is a user-owned classification rule. At least one of the three
// condition groups must be present; absent groups do not restrict the match
// but contribute nothing to the score.
type Rule struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`

	Sender  *SenderCondition  `json:"sender,omitempty"`
	Subject *SubjectCondition `json:"subject,omitempty"`
	Body    *BodyCondition    `json:"body,omitempty"`

	Category   EmailCategory `json:"category"`
	Importance Importance    `json:"importance"`

	// Priority breaks ties between rules whose conditions both hold.
	// Higher wins regardless of field score.
	Priority int `json:"priority"`

	Enabled  bool `json:"enabled"`
	HitCount int  `json:"hit_count"`

	// LastMatchedAt is stamped together with HitCount whenever the rule
	// wins a classification.
	LastMatchedAt *time.Time `json:"last_matched_at,omitempty"`

	// PatternInvalid marks a regex-mode sender pattern that failed to
	// compile at creation time. The rule is stored but never matches.
	PatternInvalid bool `json:"pattern_invalid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasConditions reports whether at least one condition group is present and
// non-empty.
func (r *Rule) HasConditions() bool {
	if r.Sender != nil && strings.TrimSpace(r.Sender.Pattern) != "" {
		return true
	}
	if r.Subject != nil && len(r.Subject.Keywords) > 0 {
		return true
	}
	if r.Body != nil && len(r.Body.Keywords) > 0 {
		return true
	}
	return false
}

// Validate checks structural validity. Pattern compilation is the matcher's
// concern; this only enforces shape.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrRuleNameRequired
	}
	if !IsValidCategory(r.Category) {
		return ErrInvalidCategory
	}
	if !IsValidImportance(r.Importance) {
		return ErrInvalidImportance
	}
	if !r.HasConditions() {
		return ErrRuleNoConditions
	}
	if r.Sender != nil && !IsValidMatchMode(r.Sender.Mode) {
		return ErrInvalidMatchMode
	}
	if r.Subject != nil && r.Subject.Logic != LogicAny && r.Subject.Logic != LogicAll {
		return ErrInvalidKeywordLogic
	}
	return nil
}

// =============================================================================
// Repository
// =============================================================================

// RuleFilter narrows rule listings.
type RuleFilter struct {
	Category *EmailCategory
	Enabled  *bool
	Page     int
	Limit    int
}

// RuleRepository is the rule-store capability the engine consumes.
type RuleRepository interface {
	Create(ctx context.Context, rule *Rule) (*Rule, error)
	GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*Rule, error)
	List(ctx context.Context, ownerID uuid.UUID, filter RuleFilter) ([]*Rule, int, error)
	ListEnabled(ctx context.Context, ownerID uuid.UUID) ([]*Rule, error)
	Update(ctx context.Context, rule *Rule) (*Rule, error)
	Delete(ctx context.Context, ownerID uuid.UUID, id int64) error
	// IncrementHitCount bumps the match counter and stamps LastMatchedAt.
	IncrementHitCount(ctx context.Context, id int64) error
	ExistsSimilar(ctx context.Context, ownerID uuid.UUID, rule *Rule) (bool, error)
	// Reorder replaces the owner's rule priorities in one transaction. IDs
	// are given highest-priority first; a missing ID aborts the whole batch.
	Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []int64) error
	// CountByOwner counts all of the owner's rules.
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}
