package suggestion

import (
	"context"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/port/in"
	"classifier_server/core/port/out"
	"classifier_server/pkg/apperr"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Suggestion Lifecycle Service
// =============================================================================

// suggestedRulePriority ranks accepted suggestions below hand-written rules
// so explicit user intent keeps winning ties.
const suggestedRulePriority = 0

// Service implements the suggestion lifecycle: list, accept, dismiss, and
// mining kickoff. Accepting a suggestion creates the corresponding rule.
type Service struct {
	suggRepo domain.SuggestionRepository
	ruleRepo domain.RuleRepository
	jobs     domain.JobTracker
	producer out.MessageProducer
}

// NewService creates the lifecycle service.
func NewService(suggRepo domain.SuggestionRepository, ruleRepo domain.RuleRepository, jobs domain.JobTracker, producer out.MessageProducer) *Service {
	return &Service{
		suggRepo: suggRepo,
		ruleRepo: ruleRepo,
		jobs:     jobs,
		producer: producer,
	}
}

var _ in.SuggestionService = (*Service)(nil)

// ListSuggestions returns the owner's pending suggestions.
func (s *Service) ListSuggestions(ctx context.Context, userID uuid.UUID) ([]*domain.Suggestion, error) {
	return s.suggRepo.ListPending(ctx, userID)
}

// Accept creates a rule from the suggestion and marks it accepted. Accepting
// a missing or already-resolved suggestion reports already_resolved rather
// than failing, so retried clicks stay harmless.
func (s *Service) Accept(ctx context.Context, userID uuid.UUID, suggestionID int64) (*in.AcceptResult, error) {
	sugg, err := s.suggRepo.GetByID(ctx, userID, suggestionID)
	if err != nil {
		return nil, apperr.DatabaseError("load suggestion", err)
	}
	if sugg == nil || sugg.Status != domain.SuggestionPending {
		return &in.AcceptResult{Status: "already_resolved", Suggestion: sugg}, nil
	}

	rule := s.ruleFromSuggestion(sugg)
	created, err := s.ruleRepo.Create(ctx, rule)
	if err != nil {
		return nil, apperr.DatabaseError("create rule from suggestion", err)
	}

	if err := s.suggRepo.UpdateStatus(ctx, sugg.ID, domain.SuggestionAccepted, &created.ID); err != nil {
		return nil, apperr.DatabaseError("resolve suggestion", err)
	}

	now := time.Now()
	sugg.Status = domain.SuggestionAccepted
	sugg.CreatedRuleID = &created.ID
	sugg.ResolvedAt = &now

	logger.WithContext(ctx).
		WithField("suggestion_id", sugg.ID).
		WithField("rule_id", created.ID).
		Info("suggestion accepted")
	return &in.AcceptResult{Status: "accepted", Suggestion: sugg, Rule: created}, nil
}

// Dismiss resolves the suggestion without creating a rule.
func (s *Service) Dismiss(ctx context.Context, userID uuid.UUID, suggestionID int64) (*in.AcceptResult, error) {
	sugg, err := s.suggRepo.GetByID(ctx, userID, suggestionID)
	if err != nil {
		return nil, apperr.DatabaseError("load suggestion", err)
	}
	if sugg == nil || sugg.Status != domain.SuggestionPending {
		return &in.AcceptResult{Status: "already_resolved", Suggestion: sugg}, nil
	}

	if err := s.suggRepo.UpdateStatus(ctx, sugg.ID, domain.SuggestionDismissed, nil); err != nil {
		return nil, apperr.DatabaseError("resolve suggestion", err)
	}

	now := time.Now()
	sugg.Status = domain.SuggestionDismissed
	sugg.ResolvedAt = &now
	return &in.AcceptResult{Status: "dismissed", Suggestion: sugg}, nil
}

// StartMining enqueues a background mining pass.
func (s *Service) StartMining(ctx context.Context, userID uuid.UUID, req *in.MineRequest) (*domain.Job, error) {
	job := &domain.Job{
		ID:        uuid.NewString(),
		OwnerID:   userID,
		Kind:      domain.JobMine,
		Status:    domain.JobQueued,
		CreatedAt: time.Now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperr.ExternalError("job tracker", err)
	}

	msg := &out.MineJob{
		JobID:   job.ID,
		OwnerID: userID.String(),
	}
	if req != nil {
		msg.LookbackDays = req.LookbackDays
		msg.MinSamples = req.MinSamples
	}
	if err := s.producer.PublishMine(ctx, msg); err != nil {
		_ = s.jobs.SetStatus(ctx, job.ID, domain.JobFailed, "enqueue failed")
		return nil, apperr.ExternalError("job stream", err)
	}
	return job, nil
}

// ruleFromSuggestion maps a suggestion type to its rule shape.
func (s *Service) ruleFromSuggestion(sugg *domain.Suggestion) *domain.Rule {
	rule := &domain.Rule{
		OwnerID:    sugg.OwnerID,
		Name:       "suggested: " + sugg.Pattern,
		Category:   sugg.Category,
		Importance: domain.ImportanceNormal,
		Priority:   suggestedRulePriority,
		Enabled:    true,
	}
	switch sugg.Type {
	case domain.SuggestSender:
		rule.Sender = &domain.SenderCondition{Pattern: sugg.Pattern, Mode: domain.MatchExact}
	case domain.SuggestSenderDomain:
		rule.Sender = &domain.SenderCondition{Pattern: sugg.Pattern, Mode: domain.MatchDomain}
	case domain.SuggestSubjectKeyword:
		rule.Subject = &domain.SubjectCondition{Keywords: []string{sugg.Pattern}, Logic: domain.LogicAny}
	}
	return rule
}
