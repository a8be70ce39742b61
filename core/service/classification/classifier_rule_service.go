package classification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classifier_server/core/domain"
	"classifier_server/core/port/in"
	"classifier_server/pkg/apperr"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Rule Service
// =============================================================================

// RuleService implements rule CRUD with pattern validation. A rule whose
// regex or wildcard pattern fails to compile is still stored, flagged as
// invalid, and excluded from matching.
type RuleService struct {
	ruleRepo domain.RuleRepository
	matcher  *Matcher
}

// NewRuleService creates a rule service sharing the cascade's matcher so
// validated patterns land in the same cache.
func NewRuleService(ruleRepo domain.RuleRepository, matcher *Matcher) *RuleService {
	if matcher == nil {
		matcher = NewMatcher()
	}
	return &RuleService{
		ruleRepo: ruleRepo,
		matcher:  matcher,
	}
}

var _ in.RuleService = (*RuleService)(nil)

// CreateRule validates and stores a new rule.
func (s *RuleService) CreateRule(ctx context.Context, userID uuid.UUID, req *in.CreateRuleRequest) (*domain.Rule, error) {
	rule := &domain.Rule{
		OwnerID:    userID,
		Name:       strings.TrimSpace(req.Name),
		Sender:     normalizeSender(req.Sender),
		Subject:    normalizeSubject(req.Subject),
		Body:       normalizeBody(req.Body),
		Category:   req.Category,
		Importance: req.Importance,
		Priority:   req.Priority,
		Enabled:    true,
	}
	if req.Importance == 0 {
		rule.Importance = domain.ImportanceNormal
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := rule.Validate(); err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}

	if err := s.matcher.ValidatePattern(rule.Sender); err != nil {
		// Keep the rule but make sure it can never fire.
		rule.PatternInvalid = true
		logger.WithContext(ctx).
			WithField("pattern", rule.Sender.Pattern).
			WithError(err).
			Warn("rule pattern does not compile, rule stored disabled from matching")
	}

	if dup, err := s.ruleRepo.ExistsSimilar(ctx, userID, rule); err == nil && dup {
		return nil, apperr.Conflict("an equivalent rule already exists")
	}

	created, err := s.ruleRepo.Create(ctx, rule)
	if err != nil {
		return nil, apperr.DatabaseError("create rule", err)
	}

	logger.WithContext(ctx).
		WithField("rule_id", created.ID).
		WithField("category", created.Category).
		Info("rule created")
	return created, nil
}

// GetRule fetches one rule scoped to its owner.
func (s *RuleService) GetRule(ctx context.Context, userID uuid.UUID, ruleID int64) (*domain.Rule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, apperr.NotFound("rule")
	}
	return rule, nil
}

// ListRules pages through the owner's rules.
func (s *RuleService) ListRules(ctx context.Context, userID uuid.UUID, filter domain.RuleFilter) ([]*domain.Rule, int, error) {
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	return s.ruleRepo.List(ctx, userID, filter)
}

// UpdateRule applies a partial update. Condition groups are replaced whole;
// an explicit empty group clears it.
func (s *RuleService) UpdateRule(ctx context.Context, userID uuid.UUID, ruleID int64, req *in.UpdateRuleRequest) (*domain.Rule, error) {
	rule, err := s.GetRule(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.Sender != nil {
		rule.Sender = normalizeSender(req.Sender)
		rule.PatternInvalid = false
	}
	if req.Subject != nil {
		rule.Subject = normalizeSubject(req.Subject)
	}
	if req.Body != nil {
		rule.Body = normalizeBody(req.Body)
	}
	if req.Category != nil {
		rule.Category = *req.Category
	}
	if req.Importance != nil {
		rule.Importance = *req.Importance
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := rule.Validate(); err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}
	if err := s.matcher.ValidatePattern(rule.Sender); err != nil {
		rule.PatternInvalid = true
		logger.WithContext(ctx).
			WithField("rule_id", rule.ID).
			WithError(err).
			Warn("updated rule pattern does not compile")
	}

	updated, err := s.ruleRepo.Update(ctx, rule)
	if err != nil {
		return nil, apperr.DatabaseError("update rule", err)
	}
	return updated, nil
}

// DeleteRule removes an owner's rule.
func (s *RuleService) DeleteRule(ctx context.Context, userID uuid.UUID, ruleID int64) error {
	if _, err := s.GetRule(ctx, userID, ruleID); err != nil {
		return err
	}
	if err := s.ruleRepo.Delete(ctx, userID, ruleID); err != nil {
		return apperr.DatabaseError("delete rule", err)
	}
	logger.WithContext(ctx).WithField("rule_id", ruleID).Info("rule deleted")
	return nil
}

// SetEnabled toggles a rule without touching its conditions.
func (s *RuleService) SetEnabled(ctx context.Context, userID uuid.UUID, ruleID int64, enabled bool) (*domain.Rule, error) {
	rule, err := s.GetRule(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.Enabled == enabled {
		return rule, nil
	}
	rule.Enabled = enabled
	updated, err := s.ruleRepo.Update(ctx, rule)
	if err != nil {
		return nil, apperr.DatabaseError("toggle rule", err)
	}
	return updated, nil
}

// ReorderRules atomically replaces the owner's rule priorities. A rule
// deleted while the reorder is in flight fails the whole batch; the caller
// can refetch and retry.
func (s *RuleService) ReorderRules(ctx context.Context, userID uuid.UUID, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return apperr.InvalidInput("rule_ids", "at least one rule id is required")
	}
	seen := make(map[int64]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if id <= 0 {
			return apperr.InvalidInput("rule_ids", "rule ids must be positive")
		}
		if _, dup := seen[id]; dup {
			return apperr.InvalidInput("rule_ids", "duplicate rule id in order")
		}
		seen[id] = struct{}{}
	}

	if err := s.ruleRepo.Reorder(ctx, userID, orderedIDs); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperr.Conflict("rule order changed underneath, refetch and retry")
		}
		return apperr.DatabaseError("reorder rules", err)
	}

	logger.WithContext(ctx).WithField("count", len(orderedIDs)).Info("rules reordered")
	return nil
}

// TestRule evaluates an unsaved rule definition against sample content.
func (s *RuleService) TestRule(ctx context.Context, req *in.TestRuleRequest) (*in.TestRuleResult, error) {
	rule := &domain.Rule{
		Name:       strings.TrimSpace(req.Rule.Name),
		Sender:     normalizeSender(req.Rule.Sender),
		Subject:    normalizeSubject(req.Rule.Subject),
		Body:       normalizeBody(req.Rule.Body),
		Category:   req.Rule.Category,
		Importance: req.Rule.Importance,
		Priority:   req.Rule.Priority,
		Enabled:    true,
	}
	if rule.Name == "" {
		rule.Name = "preview"
	}
	if rule.Importance == 0 {
		rule.Importance = domain.ImportanceNormal
	}
	if err := rule.Validate(); err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}
	if err := s.matcher.ValidatePattern(rule.Sender); err != nil {
		return nil, apperr.InvalidInput("sender.pattern", err.Error())
	}

	// Unlike live evaluation, every declared group is checked even after
	// one fails, so the caller sees the full breakdown.
	var checks []in.ConditionCheck
	matched := true
	score := 0.0

	if rule.Sender != nil {
		ok := s.matcher.MatchSender(rule.Sender, req.Sender)
		checks = append(checks, in.ConditionCheck{
			Field:   "sender",
			Matched: ok,
			Detail:  conditionDetail(ok, fmt.Sprintf("sender pattern %q (%s)", rule.Sender.Pattern, rule.Sender.Mode)),
		})
		matched = matched && ok
		if ok {
			score += weightSender
		}
	}
	if rule.Subject != nil && len(rule.Subject.Keywords) > 0 {
		ok := s.matcher.MatchSubject(rule.Subject, req.Subject)
		checks = append(checks, in.ConditionCheck{
			Field:   "subject",
			Matched: ok,
			Detail:  conditionDetail(ok, fmt.Sprintf("subject keywords %v (%s)", rule.Subject.Keywords, rule.Subject.Logic)),
		})
		matched = matched && ok
		if ok {
			score += weightSubject
		}
	}
	if rule.Body != nil && len(rule.Body.Keywords) > 0 {
		ok := s.matcher.MatchBody(rule.Body, req.Body)
		checks = append(checks, in.ConditionCheck{
			Field:   "body",
			Matched: ok,
			Detail:  conditionDetail(ok, fmt.Sprintf("body keywords %v", rule.Body.Keywords)),
		})
		matched = matched && ok
		if ok {
			score += weightBody
		}
	}

	result := &in.TestRuleResult{Matched: matched, Conditions: checks}
	if matched {
		result.Score = score
		result.Category = rule.Category
		result.Importance = rule.Importance
	}
	return result, nil
}

func conditionDetail(matched bool, desc string) string {
	if matched {
		return desc + " matched"
	}
	return desc + " did not match"
}

// =============================================================================
// Condition normalization
// =============================================================================

func normalizeSender(c *domain.SenderCondition) *domain.SenderCondition {
	if c == nil || strings.TrimSpace(c.Pattern) == "" {
		return nil
	}
	mode := c.Mode
	if mode == "" {
		mode = domain.MatchExact
	}
	return &domain.SenderCondition{
		Pattern: strings.TrimSpace(c.Pattern),
		Mode:    mode,
	}
}

func normalizeSubject(c *domain.SubjectCondition) *domain.SubjectCondition {
	if c == nil {
		return nil
	}
	keywords := trimKeywords(c.Keywords)
	if len(keywords) == 0 {
		return nil
	}
	logic := c.Logic
	if logic == "" {
		logic = domain.LogicAny
	}
	return &domain.SubjectCondition{Keywords: keywords, Logic: logic}
}

func normalizeBody(c *domain.BodyCondition) *domain.BodyCondition {
	if c == nil {
		return nil
	}
	keywords := trimKeywords(c.Keywords)
	if len(keywords) == 0 {
		return nil
	}
	return &domain.BodyCondition{Keywords: keywords}
}

func trimKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
