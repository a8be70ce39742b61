package worker

import (
	"context"
	"fmt"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/port/out"
	"classifier_server/core/service/classification"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// llmRateLimit caps semantic classification throughput per owner across all
// worker processes. A rejected job returns an error so the pool retries it
// with backoff instead of burning the OpenAI quota.
const (
	llmRateLimit  = 30
	llmRateWindow = time.Minute
)

// ClassifyProcessor handles single-email classification jobs.
type ClassifyProcessor struct {
	service   *classification.Service
	emailRepo domain.EmailRepository
	jobs      domain.JobTracker
	limiter   out.RateLimiter
}

// NewClassifyProcessor creates a new classify processor.
func NewClassifyProcessor(
	service *classification.Service,
	emailRepo domain.EmailRepository,
	jobs domain.JobTracker,
	limiter out.RateLimiter,
) *ClassifyProcessor {
	return &ClassifyProcessor{
		service:   service,
		emailRepo: emailRepo,
		jobs:      jobs,
		limiter:   limiter,
	}
}

// ProcessClassify classifies one stored email through the full cascade.
func (p *ClassifyProcessor) ProcessClassify(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[out.ClassifyJob](msg)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return fmt.Errorf("invalid owner id %q: %w", payload.OwnerID, err)
	}

	log := logger.WithFields(map[string]any{
		"job":      "classify.email",
		"owner_id": payload.OwnerID,
		"email_id": payload.EmailID,
	})

	if p.limiter != nil {
		allowed, err := p.limiter.Allow(ctx, "llm:classify:"+payload.OwnerID, llmRateLimit, llmRateWindow)
		if err != nil {
			log.Warn("Rate limiter check failed, proceeding: %v", err)
		} else if !allowed {
			return fmt.Errorf("llm rate limit exceeded for owner %s", payload.OwnerID)
		}
	}

	email, err := p.emailRepo.GetByID(ctx, payload.EmailID)
	if err != nil {
		p.finish(ctx, payload.JobID, domain.JobFailed, err.Error())
		return fmt.Errorf("failed to load email %d: %w", payload.EmailID, err)
	}
	if email == nil || email.OwnerID != ownerID {
		// Deleted or reassigned since enqueue; nothing to classify.
		log.Warn("Email not found or not owned, skipping")
		p.finish(ctx, payload.JobID, domain.JobCompleted, "")
		return nil
	}

	changed, err := p.service.ClassifyStored(ctx, ownerID, email, true)
	if err != nil {
		p.finish(ctx, payload.JobID, domain.JobFailed, err.Error())
		return fmt.Errorf("classification failed for email %d: %w", payload.EmailID, err)
	}

	if payload.JobID != "" {
		_ = p.jobs.AddProgress(ctx, payload.JobID, 1, boolToInt(changed), 0)
	}
	p.finish(ctx, payload.JobID, domain.JobCompleted, "")

	log.Debug("Email classified, changed=%v", changed)
	return nil
}

func (p *ClassifyProcessor) finish(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) {
	if jobID == "" {
		return
	}
	if err := p.jobs.SetStatus(ctx, jobID, status, errMsg); err != nil {
		logger.Warn("Failed to update job %s status: %v", jobID, err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
