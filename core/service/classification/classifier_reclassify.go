package classification

import (
	"context"
	"sync"

	"classifier_server/core/domain"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Bulk Reclassifier
// =============================================================================

// reclassifyBatchSize is the number of records processed between progress
// updates and cancel checks.
const reclassifyBatchSize = 50

// ownerLocks serializes bulk jobs per owner. Two overlapping bulk jobs over
// the same mailbox would race on assignments; jobs for different owners run
// freely in parallel.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (o *ownerLocks) lock(owner uuid.UUID) func() {
	o.mu.Lock()
	l, ok := o.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		o.locks[owner] = l
	}
	o.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Reclassifier executes reclassify and apply-rule jobs in batches.
type Reclassifier struct {
	service   *Service
	emailRepo domain.EmailRepository
	ruleRepo  domain.RuleRepository
	jobs      domain.JobTracker
	owners    *ownerLocks
}

// NewReclassifier creates the bulk executor.
func NewReclassifier(service *Service, emailRepo domain.EmailRepository, ruleRepo domain.RuleRepository, jobs domain.JobTracker) *Reclassifier {
	return &Reclassifier{
		service:   service,
		emailRepo: emailRepo,
		ruleRepo:  ruleRepo,
		jobs:      jobs,
		owners:    newOwnerLocks(),
	}
}

// RunReclassify re-runs the cascade over the scoped records. Manual
// assignments are preserved. Per-record failures are counted and skipped;
// the job keeps going.
func (r *Reclassifier) RunReclassify(ctx context.Context, ownerID uuid.UUID, jobID string, emailIDs []int64, onlyUnruled bool) error {
	unlock := r.owners.lock(ownerID)
	defer unlock()

	ids, err := r.resolveScope(ctx, ownerID, emailIDs)
	if err != nil {
		return r.fail(ctx, jobID, err)
	}

	if err := r.start(ctx, jobID, len(ids)); err != nil {
		return err
	}

	for i := 0; i < len(ids); i += reclassifyBatchSize {
		if cancelled, _ := r.jobs.IsCancelRequested(ctx, jobID); cancelled {
			return r.jobs.SetStatus(ctx, jobID, domain.JobCancelled, "")
		}

		end := i + reclassifyBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		emails, err := r.emailRepo.ListByIDs(ctx, ownerID, ids[i:end])
		if err != nil {
			return r.fail(ctx, jobID, err)
		}

		var changed, failed int
		for _, email := range emails {
			if onlyUnruled && email.ClassificationMethod == domain.MethodRule {
				continue
			}
			didChange, err := r.service.ClassifyStored(ctx, ownerID, email, true)
			if err != nil {
				failed++
				logger.WithContext(ctx).
					WithField("email_id", email.ID).
					WithError(err).
					Warn("reclassify skipped record")
				continue
			}
			if didChange {
				changed++
			}
		}

		if err := r.jobs.AddProgress(ctx, jobID, end-i, changed, failed); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("progress update failed")
		}
	}

	return r.jobs.SetStatus(ctx, jobID, domain.JobCompleted, "")
}

// RunApplyRule walks the mailbox and assigns the rule's category wherever
// its conditions hold. Manual assignments are preserved.
func (r *Reclassifier) RunApplyRule(ctx context.Context, ownerID uuid.UUID, jobID string, ruleID int64) error {
	unlock := r.owners.lock(ownerID)
	defer unlock()

	rule, err := r.ruleRepo.GetByID(ctx, ownerID, ruleID)
	if err != nil {
		return r.fail(ctx, jobID, err)
	}
	if rule == nil || !rule.Enabled || rule.PatternInvalid {
		return r.jobs.SetStatus(ctx, jobID, domain.JobFailed, "rule unavailable")
	}

	ids, err := r.emailRepo.ListIDsByOwner(ctx, ownerID)
	if err != nil {
		return r.fail(ctx, jobID, err)
	}

	if err := r.start(ctx, jobID, len(ids)); err != nil {
		return err
	}

	matcher := r.service.cascade.Matcher()
	ruleIDRef := rule.ID

	for i := 0; i < len(ids); i += reclassifyBatchSize {
		if cancelled, _ := r.jobs.IsCancelRequested(ctx, jobID); cancelled {
			return r.jobs.SetStatus(ctx, jobID, domain.JobCancelled, "")
		}

		end := i + reclassifyBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		emails, err := r.emailRepo.ListByIDs(ctx, ownerID, ids[i:end])
		if err != nil {
			return r.fail(ctx, jobID, err)
		}

		var changed, failed int
		for _, email := range emails {
			if email.ClassificationMethod == domain.MethodManual {
				continue
			}
			body := r.service.loadBody(ctx, ownerID, email)
			if _, ok := EvaluateRule(matcher, rule, email.Sender, email.Subject, body); !ok {
				continue
			}
			if email.Category == rule.Category && email.MatchedRuleID != nil && *email.MatchedRuleID == rule.ID {
				continue
			}
			err := r.emailRepo.UpdateClassification(ctx, email.ID, rule.Category, rule.Importance, domain.MethodRule, &ruleIDRef)
			if err != nil {
				failed++
				continue
			}
			prev := email.Category
			conf := 1.0
			r.service.appendHistory(ctx, email, &prev, rule.Category, rule.Importance, domain.MethodRule, &ruleIDRef, &conf)
			changed++
		}

		if changed > 0 {
			go func() { _ = r.ruleRepo.IncrementHitCount(context.WithoutCancel(ctx), rule.ID) }()
		}
		if err := r.jobs.AddProgress(ctx, jobID, end-i, changed, failed); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("progress update failed")
		}
	}

	return r.jobs.SetStatus(ctx, jobID, domain.JobCompleted, "")
}

func (r *Reclassifier) resolveScope(ctx context.Context, ownerID uuid.UUID, emailIDs []int64) ([]int64, error) {
	if len(emailIDs) > 0 {
		return emailIDs, nil
	}
	return r.emailRepo.ListIDsByOwner(ctx, ownerID)
}

func (r *Reclassifier) start(ctx context.Context, jobID string, total int) error {
	if err := r.jobs.SetTotal(ctx, jobID, total); err != nil {
		return err
	}
	return r.jobs.SetStatus(ctx, jobID, domain.JobRunning, "")
}

func (r *Reclassifier) fail(ctx context.Context, jobID string, err error) error {
	logger.WithContext(ctx).WithField("job_id", jobID).WithError(err).Error("bulk job failed")
	_ = r.jobs.SetStatus(ctx, jobID, domain.JobFailed, err.Error())
	return err
}
