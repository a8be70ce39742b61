package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Email Categories
// =============================================================================

// EmailCategory is the closed set of categories an email can be assigned to.
type EmailCategory string

const (
	CategoryWork        EmailCategory = "work"        // Work, projects, meetings
	CategoryFinance     EmailCategory = "finance"     // Bills, payments, invoices
	CategorySocial      EmailCategory = "social"      // Friends, parties, social networks
	CategoryShopping    EmailCategory = "shopping"    // Orders, shipping, delivery
	CategoryNews        EmailCategory = "news"        // Newsletters, digests
	CategoryEducation   EmailCategory = "education"   // Courses, training, exams
	CategoryTravel      EmailCategory = "travel"      // Flights, hotels, itineraries
	CategoryHealth      EmailCategory = "health"      // Medical, checkups
	CategorySystem      EmailCategory = "system"      // Verification codes, account notices
	CategoryAdvertising EmailCategory = "advertising" // Legitimate commercial promotion
	CategorySpam        EmailCategory = "spam"        // Scams and unwanted mail
	CategoryGeneral     EmailCategory = "general"     // Fallback bucket
)

// AllCategories lists every valid category, in display order.
var AllCategories = []EmailCategory{
	CategoryWork, CategoryFinance, CategorySocial, CategoryShopping,
	CategoryNews, CategoryEducation, CategoryTravel, CategoryHealth,
	CategorySystem, CategoryAdvertising, CategorySpam, CategoryGeneral,
}

// IsValidCategory reports whether c is a member of the closed category set.
func IsValidCategory(c EmailCategory) bool {
	for _, v := range AllCategories {
		if v == c {
			return true
		}
	}
	return false
}

// =============================================================================
// Importance
// =============================================================================

// Importance is an ordinal importance level from 1 (normal) to 4 (critical).
type Importance int

const (
	ImportanceNormal   Importance = 1
	ImportanceMedium   Importance = 2
	ImportanceHigh     Importance = 3
	ImportanceCritical Importance = 4
)

// IsValidImportance reports whether i is within the 1..4 range.
func IsValidImportance(i Importance) bool {
	return i >= ImportanceNormal && i <= ImportanceCritical
}

func (i Importance) String() string {
	switch i {
	case ImportanceNormal:
		return "normal"
	case ImportanceMedium:
		return "medium"
	case ImportanceHigh:
		return "high"
	case ImportanceCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// =============================================================================
// Classification Method (cascade layer)
// =============================================================================

// ClassificationMethod records which cascade layer produced an assignment.
type ClassificationMethod string

const (
	MethodRule     ClassificationMethod = "rule"     // Layer 1: user rule
	MethodSemantic ClassificationMethod = "semantic" // Layer 2: semantic classifier
	MethodKeyword  ClassificationMethod = "keyword"  // Layer 3: built-in heuristics
	MethodDefault  ClassificationMethod = "default"  // Layer 4: fallback
	MethodManual   ClassificationMethod = "manual"   // User override via API
)

// =============================================================================
// Email Record
// =============================================================================

// Email is the classified record. Only the fields needed for matching are
// kept here; the full body text lives in the body store.
type Email struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Sender   string  `json:"sender"` // full address, e.g. billing@vip-client.com
	FromName *string `json:"from_name,omitempty"`
	Subject  string  `json:"subject"`
	Snippet  string  `json:"snippet"` // leading body text for keyword matching

	Category             EmailCategory        `json:"category"`
	Importance           Importance           `json:"importance"`
	ClassificationMethod ClassificationMethod `json:"classification_method"`
	MatchedRuleID        *int64               `json:"matched_rule_id,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CategoryStat is a per-category aggregate used by the stats endpoint.
type CategoryStat struct {
	Category EmailCategory `json:"category"`
	Total    int           `json:"total"`
}

// MethodStat is a per-layer aggregate used by the stats endpoint.
type MethodStat struct {
	Method ClassificationMethod `json:"method"`
	Total  int                  `json:"total"`
}

// EmailRepository is the record-persistence capability the engine consumes.
type EmailRepository interface {
	GetByID(ctx context.Context, id int64) (*Email, error)
	ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]int64, error)
	ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []int64) ([]*Email, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)

	// UpdateClassification persists a new assignment for one record.
	UpdateClassification(ctx context.Context, id int64, category EmailCategory, importance Importance, method ClassificationMethod, ruleID *int64) error

	// Stats
	CategoryStats(ctx context.Context, ownerID uuid.UUID) ([]CategoryStat, error)
	MethodStats(ctx context.Context, ownerID uuid.UUID) ([]MethodStat, error)
}

// EmailBodyRepository reads full body text, stored outside the relational DB.
type EmailBodyRepository interface {
	GetBody(ctx context.Context, ownerID uuid.UUID, emailID int64) (string, error)
	SaveBody(ctx context.Context, ownerID uuid.UUID, emailID int64, body string) error
	DeleteBody(ctx context.Context, ownerID uuid.UUID, emailID int64) error
}
