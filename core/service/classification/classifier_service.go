package classification

import (
	"context"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/port/in"
	"classifier_server/core/port/out"
	"classifier_server/pkg/apperr"
	"classifier_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// =============================================================================
// Classification Service
// =============================================================================

// Service ties the cascade to storage: it loads the email and its body,
// runs the cascade, persists the assignment, and appends a history event.
// Bulk work is enqueued on the stream and picked up by the worker.
type Service struct {
	cascade *Cascade

	emailRepo domain.EmailRepository
	bodyRepo  domain.EmailBodyRepository
	histRepo  domain.HistoryRepository
	ruleRepo  domain.RuleRepository
	jobs      domain.JobTracker
	producer  out.MessageProducer
	cache     out.Cache
	suggRepo  domain.SuggestionRepository
}

// ServiceDeps holds dependencies for creating a Service.
type ServiceDeps struct {
	Cascade   *Cascade
	EmailRepo domain.EmailRepository
	BodyRepo  domain.EmailBodyRepository
	HistRepo  domain.HistoryRepository
	RuleRepo  domain.RuleRepository
	Jobs      domain.JobTracker
	Producer  out.MessageProducer
	Cache     out.Cache
	SuggRepo  domain.SuggestionRepository
}

// NewService creates the classification service.
func NewService(deps ServiceDeps) *Service {
	return &Service{
		cascade:   deps.Cascade,
		emailRepo: deps.EmailRepo,
		bodyRepo:  deps.BodyRepo,
		histRepo:  deps.HistRepo,
		ruleRepo:  deps.RuleRepo,
		jobs:      deps.Jobs,
		producer:  deps.Producer,
		cache:     deps.Cache,
		suggRepo:  deps.SuggRepo,
	}
}

var _ in.ClassificationService = (*Service)(nil)

// ClassifyEmail runs the cascade for one stored email and persists the
// outcome. Reclassifying an already-classified email is idempotent: the same
// inputs yield the same assignment.
func (s *Service) ClassifyEmail(ctx context.Context, userID uuid.UUID, emailID int64) (*in.ClassificationResult, error) {
	email, err := s.loadOwned(ctx, userID, emailID)
	if err != nil {
		return nil, err
	}

	body := s.loadBody(ctx, userID, email)

	result, err := s.cascade.Classify(ctx, &ClassifyInput{
		UserID:    userID,
		EmailID:   emailID,
		Sender:    email.Sender,
		Subject:   email.Subject,
		Body:      body,
		CountHits: true,
	})
	if err != nil {
		return nil, err
	}

	if err := s.persistResult(ctx, email, result); err != nil {
		return nil, err
	}

	return toResult(result), nil
}

// Preview runs the cascade on ad-hoc content. Nothing is stored and rule hit
// counters do not move.
func (s *Service) Preview(ctx context.Context, userID uuid.UUID, req *in.PreviewRequest) (*in.ClassificationResult, error) {
	result, err := s.cascade.Classify(ctx, &ClassifyInput{
		UserID:  userID,
		Sender:  req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return nil, err
	}
	return toResult(result), nil
}

// Override records a manual assignment. Manual wins over every automatic
// layer and is never undone by reclassification.
func (s *Service) Override(ctx context.Context, userID uuid.UUID, emailID int64, category domain.EmailCategory, importance domain.Importance) (*domain.Email, error) {
	if !domain.IsValidCategory(category) {
		return nil, apperr.InvalidInput("category", "unknown category")
	}
	if !domain.IsValidImportance(importance) {
		return nil, apperr.InvalidInput("importance", "importance must be between 1 and 4")
	}

	email, err := s.loadOwned(ctx, userID, emailID)
	if err != nil {
		return nil, err
	}

	prev := email.Category
	if err := s.emailRepo.UpdateClassification(ctx, emailID, category, importance, domain.MethodManual, nil); err != nil {
		return nil, apperr.DatabaseError("override classification", err)
	}

	s.appendHistory(ctx, email, &prev, category, importance, domain.MethodManual, nil, nil)

	if s.cache != nil {
		_ = s.cache.Delete(ctx, statsCacheKey(userID))
	}

	email.Category = category
	email.Importance = importance
	email.ClassificationMethod = domain.MethodManual
	email.MatchedRuleID = nil
	return email, nil
}

// History lists the classification events for one email, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, emailID int64) ([]*domain.ClassificationEvent, error) {
	if _, err := s.loadOwned(ctx, userID, emailID); err != nil {
		return nil, err
	}
	return s.histRepo.ListByEmail(ctx, userID, emailID)
}

const statsCacheTTL = 60 * time.Second

func statsCacheKey(userID uuid.UUID) string {
	return "classify:stats:" + userID.String()
}

// Stats aggregates category and method distributions for the owner. Results
// are cached briefly since the aggregate queries scan the whole mailbox.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*in.ClassificationStats, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, statsCacheKey(userID)); err == nil && len(data) > 0 {
			var cached in.ClassificationStats
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	total, err := s.emailRepo.CountByOwner(ctx, userID)
	if err != nil {
		return nil, apperr.DatabaseError("count emails", err)
	}
	categories, err := s.emailRepo.CategoryStats(ctx, userID)
	if err != nil {
		return nil, apperr.DatabaseError("category stats", err)
	}
	methods, err := s.emailRepo.MethodStats(ctx, userID)
	if err != nil {
		return nil, apperr.DatabaseError("method stats", err)
	}
	ruleCount, err := s.ruleRepo.CountByOwner(ctx, userID)
	if err != nil {
		return nil, apperr.DatabaseError("count rules", err)
	}
	pending := 0
	if s.suggRepo != nil {
		if pending, err = s.suggRepo.CountPending(ctx, userID); err != nil {
			return nil, apperr.DatabaseError("count pending suggestions", err)
		}
	}
	stats := &in.ClassificationStats{
		Total:              total,
		Categories:         categories,
		Methods:            methods,
		RuleCount:          ruleCount,
		PendingSuggestions: pending,
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, statsCacheKey(userID), data, statsCacheTTL)
		}
	}
	return stats, nil
}

// StartReclassify enqueues a bulk reclassification job and returns its
// tracked state.
func (s *Service) StartReclassify(ctx context.Context, userID uuid.UUID, req *in.ReclassifyRequest) (*domain.Job, error) {
	job := newJob(userID, domain.JobReclassify)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperr.ExternalError("job tracker", err)
	}

	err := s.producer.PublishReclassify(ctx, &out.ReclassifyJob{
		JobID:       job.ID,
		OwnerID:     userID.String(),
		EmailIDs:    req.EmailIDs,
		OnlyUnruled: req.OnlyUnruled,
	})
	if err != nil {
		_ = s.jobs.SetStatus(ctx, job.ID, domain.JobFailed, "enqueue failed")
		return nil, apperr.ExternalError("job stream", err)
	}

	logger.WithContext(ctx).
		WithField("job_id", job.ID).
		WithField("email_count", len(req.EmailIDs)).
		Info("reclassify job queued")
	return job, nil
}

// StartApplyRule enqueues a job applying one rule across the mailbox.
func (s *Service) StartApplyRule(ctx context.Context, userID uuid.UUID, ruleID int64) (*domain.Job, error) {
	rule, err := s.ruleRepo.GetByID(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, apperr.NotFound("rule")
	}
	if !rule.Enabled || rule.PatternInvalid {
		return nil, apperr.Conflict("rule is disabled or has an invalid pattern")
	}

	job := newJob(userID, domain.JobApplyRule)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperr.ExternalError("job tracker", err)
	}

	err = s.producer.PublishApplyRule(ctx, &out.ApplyRuleJob{
		JobID:   job.ID,
		OwnerID: userID.String(),
		RuleID:  ruleID,
	})
	if err != nil {
		_ = s.jobs.SetStatus(ctx, job.ID, domain.JobFailed, "enqueue failed")
		return nil, apperr.ExternalError("job stream", err)
	}
	return job, nil
}

// GetJob returns the tracked state of an owner's job.
func (s *Service) GetJob(ctx context.Context, userID uuid.UUID, jobID string) (*domain.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, apperr.ExternalError("job tracker", err)
	}
	if job == nil || job.OwnerID != userID {
		return nil, apperr.NotFound("job")
	}
	return job, nil
}

// CancelJob flags a queued or running job. The worker observes the flag at
// the next batch boundary; already-processed records stay classified.
func (s *Service) CancelJob(ctx context.Context, userID uuid.UUID, jobID string) (*domain.Job, error) {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case domain.JobCompleted, domain.JobFailed, domain.JobCancelled:
		return job, nil
	}
	if err := s.jobs.RequestCancel(ctx, jobID); err != nil {
		return nil, apperr.ExternalError("job tracker", err)
	}
	return s.GetJob(ctx, userID, jobID)
}

// =============================================================================
// Internals shared with the worker processors
// =============================================================================

// ClassifyStored is the single-record path used by worker processors. It
// returns whether the assignment changed.
func (s *Service) ClassifyStored(ctx context.Context, userID uuid.UUID, email *domain.Email, skipManual bool) (bool, error) {
	if skipManual && email.ClassificationMethod == domain.MethodManual {
		return false, nil
	}

	body := s.loadBody(ctx, userID, email)
	result, err := s.cascade.Classify(ctx, &ClassifyInput{
		UserID:    userID,
		EmailID:   email.ID,
		Sender:    email.Sender,
		Subject:   email.Subject,
		Body:      body,
		CountHits: true,
	})
	if err != nil {
		return false, err
	}

	changed := result.Category != email.Category ||
		result.Importance != email.Importance ||
		result.Method != email.ClassificationMethod

	if err := s.persistResult(ctx, email, result); err != nil {
		return false, err
	}
	return changed, nil
}

func (s *Service) loadOwned(ctx context.Context, userID uuid.UUID, emailID int64) (*domain.Email, error) {
	email, err := s.emailRepo.GetByID(ctx, emailID)
	if err != nil {
		return nil, apperr.DatabaseError("load email", err)
	}
	if email == nil || email.OwnerID != userID {
		return nil, apperr.NotFound("email")
	}
	return email, nil
}

// loadBody fetches the full body, falling back to the stored snippet when
// the body store has nothing.
func (s *Service) loadBody(ctx context.Context, userID uuid.UUID, email *domain.Email) string {
	if s.bodyRepo == nil {
		return email.Snippet
	}
	body, err := s.bodyRepo.GetBody(ctx, userID, email.ID)
	if err != nil || body == "" {
		return email.Snippet
	}
	return body
}

func (s *Service) persistResult(ctx context.Context, email *domain.Email, result *CascadeResult) error {
	if err := s.emailRepo.UpdateClassification(ctx, email.ID, result.Category, result.Importance, result.Method, result.RuleID); err != nil {
		return apperr.DatabaseError("persist classification", err)
	}
	prev := email.Category
	s.appendHistory(ctx, email, &prev, result.Category, result.Importance, result.Method, result.RuleID, &result.Confidence)
	return nil
}

func (s *Service) appendHistory(ctx context.Context, email *domain.Email, from *domain.EmailCategory, to domain.EmailCategory, importance domain.Importance, method domain.ClassificationMethod, ruleID *int64, confidence *float64) {
	ev := &domain.ClassificationEvent{
		OwnerID:      email.OwnerID,
		EmailID:      email.ID,
		FromCategory: from,
		ToCategory:   to,
		Importance:   importance,
		Method:       method,
		RuleID:       ruleID,
		Confidence:   confidence,
		CreatedAt:    time.Now(),
	}
	if err := s.histRepo.Append(ctx, ev); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("history append failed")
	}
}

func newJob(userID uuid.UUID, kind domain.JobKind) *domain.Job {
	return &domain.Job{
		ID:        uuid.NewString(),
		OwnerID:   userID,
		Kind:      kind,
		Status:    domain.JobQueued,
		CreatedAt: time.Now(),
	}
}

func toResult(r *CascadeResult) *in.ClassificationResult {
	return &in.ClassificationResult{
		Category:   r.Category,
		Importance: r.Importance,
		Method:     r.Method,
		RuleID:     r.RuleID,
		Confidence: r.Confidence,
	}
}
