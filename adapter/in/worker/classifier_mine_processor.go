package worker

import (
	"context"
	"fmt"

	"classifier_server/core/domain"
	"classifier_server/core/port/out"
	"classifier_server/core/service/suggestion"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// MineProcessor handles suggestion-mining jobs.
type MineProcessor struct {
	miner *suggestion.Miner
	jobs  domain.JobTracker
}

// NewMineProcessor creates a new mine processor.
func NewMineProcessor(miner *suggestion.Miner, jobs domain.JobTracker) *MineProcessor {
	return &MineProcessor{miner: miner, jobs: jobs}
}

// ProcessMine runs one mining pass over the owner's manual corrections.
func (p *MineProcessor) ProcessMine(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[out.MineJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return fmt.Errorf("invalid owner id %q: %w", payload.OwnerID, err)
	}

	log := logger.WithFields(map[string]any{
		"job":      "classify.mine",
		"job_id":   payload.JobID,
		"owner_id": payload.OwnerID,
	})
	log.Info("Starting suggestion mining")

	if payload.JobID != "" {
		if err := p.jobs.SetStatus(ctx, payload.JobID, domain.JobRunning, ""); err != nil {
			logger.Warn("Failed to mark job %s running: %v", payload.JobID, err)
		}
	}

	emitted, err := p.miner.Mine(ctx, ownerID, p.overrides(payload))
	if err != nil {
		if payload.JobID != "" {
			_ = p.jobs.SetStatus(ctx, payload.JobID, domain.JobFailed, err.Error())
		}
		log.Error("Mining failed: %v", err)
		return err
	}

	if payload.JobID != "" {
		_ = p.jobs.AddProgress(ctx, payload.JobID, emitted, emitted, 0)
		_ = p.jobs.SetStatus(ctx, payload.JobID, domain.JobCompleted, "")
	}

	log.Info("Mining finished, %d suggestions emitted", emitted)
	return nil
}

// overrides maps job parameters onto mining thresholds. MinSamples, when
// set, raises every pattern threshold to the same floor.
func (p *MineProcessor) overrides(payload *out.MineJob) *suggestion.MinerConfig {
	if payload.LookbackDays == 0 && payload.MinSamples == 0 {
		return nil
	}
	cfg := suggestion.DefaultMinerConfig()
	if payload.LookbackDays > 0 {
		cfg.LookbackDays = payload.LookbackDays
	}
	if payload.MinSamples > 0 {
		if payload.MinSamples > cfg.SenderThreshold {
			cfg.SenderThreshold = payload.MinSamples
		}
		if payload.MinSamples > cfg.DomainThreshold {
			cfg.DomainThreshold = payload.MinSamples
		}
		if payload.MinSamples > cfg.KeywordThreshold {
			cfg.KeywordThreshold = payload.MinSamples
		}
	}
	return cfg
}
