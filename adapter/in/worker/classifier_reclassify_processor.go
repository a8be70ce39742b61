package worker

import (
	"context"
	"fmt"

	"classifier_server/core/port/out"
	"classifier_server/core/service/classification"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// ReclassifyProcessor handles bulk reclassification and rule-application
// jobs. The Reclassifier owns progress, cancellation, and per-owner
// serialization; the processor just decodes and delegates.
type ReclassifyProcessor struct {
	reclassifier *classification.Reclassifier
}

// NewReclassifyProcessor creates a new reclassify processor.
func NewReclassifyProcessor(reclassifier *classification.Reclassifier) *ReclassifyProcessor {
	return &ReclassifyProcessor{reclassifier: reclassifier}
}

// ProcessReclassify re-runs the cascade over a mailbox or subset.
func (p *ReclassifyProcessor) ProcessReclassify(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[out.ReclassifyJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return fmt.Errorf("invalid owner id %q: %w", payload.OwnerID, err)
	}

	log := logger.WithFields(map[string]any{
		"job":      "classify.reclassify",
		"job_id":   payload.JobID,
		"owner_id": payload.OwnerID,
		"scope":    len(payload.EmailIDs),
	})
	log.Info("Starting bulk reclassification")

	if err := p.reclassifier.RunReclassify(ctx, ownerID, payload.JobID, payload.EmailIDs, payload.OnlyUnruled); err != nil {
		log.Error("Reclassification failed: %v", err)
		return err
	}

	log.Info("Bulk reclassification finished")
	return nil
}

// ProcessApplyRule applies one rule across the owner's mailbox.
func (p *ReclassifyProcessor) ProcessApplyRule(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[out.ApplyRuleJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return fmt.Errorf("invalid owner id %q: %w", payload.OwnerID, err)
	}

	log := logger.WithFields(map[string]any{
		"job":      "classify.apply_rule",
		"job_id":   payload.JobID,
		"owner_id": payload.OwnerID,
		"rule_id":  payload.RuleID,
	})
	log.Info("Applying rule across mailbox")

	if err := p.reclassifier.RunApplyRule(ctx, ownerID, payload.JobID, payload.RuleID); err != nil {
		log.Error("Rule application failed: %v", err)
		return err
	}

	log.Info("Rule application finished")
	return nil
}
