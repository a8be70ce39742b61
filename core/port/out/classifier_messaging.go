package out

import "context"

// MessageProducer defines the outbound port for the job stream producer.
type MessageProducer interface {
	PublishClassify(ctx context.Context, job *ClassifyJob) error
	PublishReclassify(ctx context.Context, job *ReclassifyJob) error
	PublishApplyRule(ctx context.Context, job *ApplyRuleJob) error
	PublishMine(ctx context.Context, job *MineJob) error
}

// ClassifyJob classifies one newly ingested email.
type ClassifyJob struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
	EmailID int64  `json:"email_id"`
}

// ReclassifyJob re-runs the cascade over a mailbox, or over an explicit
// subset when EmailIDs is non-empty.
type ReclassifyJob struct {
	JobID    string  `json:"job_id"`
	OwnerID  string  `json:"owner_id"`
	EmailIDs []int64 `json:"email_ids,omitempty"`
	// OnlyUnruled skips records a rule already claimed.
	OnlyUnruled bool `json:"only_unruled,omitempty"`
}

// ApplyRuleJob applies a single rule across all of the owner's records.
type ApplyRuleJob struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
	RuleID  int64  `json:"rule_id"`
}

// MineJob runs a suggestion-mining pass.
type MineJob struct {
	JobID        string `json:"job_id"`
	OwnerID      string `json:"owner_id"`
	LookbackDays int    `json:"lookback_days,omitempty"`
	MinSamples   int    `json:"min_samples,omitempty"`
}
