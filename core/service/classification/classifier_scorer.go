package classification

import (
	"classifier_server/core/domain"
)

// =============================================================================
// Rule Scorer
// =============================================================================

// Field weights for the match score. A sender match says more about an
// email than keyword hits do.
const (
	weightSender  = 0.4
	weightSubject = 0.3
	weightBody    = 0.3

	// priorityStep keeps priority dominant: one priority level outweighs
	// any combination of field weights (max 1.0).
	priorityStep = 10.0
)

// RuleMatch is one rule whose conditions all held, with its ranking score.
type RuleMatch struct {
	Rule  *domain.Rule
	Score float64 // priority*10 + matched field weights
	// FieldScore is the weight sum alone, without the priority term.
	FieldScore float64
}

// EvaluateRule checks a rule against email fields. Every condition group the
// rule defines must hold for the rule to match; absent groups neither block
// nor score. Disabled rules and rules with invalid stored patterns never
// match.
func EvaluateRule(m *Matcher, rule *domain.Rule, sender, subject, body string) (*RuleMatch, bool) {
	if !rule.Enabled || rule.PatternInvalid || !rule.HasConditions() {
		return nil, false
	}

	fieldScore := 0.0

	if rule.Sender != nil {
		if !m.MatchSender(rule.Sender, sender) {
			return nil, false
		}
		fieldScore += weightSender
	}
	if rule.Subject != nil && len(rule.Subject.Keywords) > 0 {
		if !m.MatchSubject(rule.Subject, subject) {
			return nil, false
		}
		fieldScore += weightSubject
	}
	if rule.Body != nil && len(rule.Body.Keywords) > 0 {
		if !m.MatchBody(rule.Body, body) {
			return nil, false
		}
		fieldScore += weightBody
	}

	return &RuleMatch{
		Rule:       rule,
		Score:      float64(rule.Priority)*priorityStep + fieldScore,
		FieldScore: fieldScore,
	}, true
}

// SelectBest evaluates every rule and returns the winner. Priority dominates;
// among equal priorities the higher field score wins; remaining ties go to
// the oldest rule (lowest ID) so outcomes are deterministic.
func SelectBest(m *Matcher, rules []*domain.Rule, sender, subject, body string) *RuleMatch {
	var best *RuleMatch
	for _, rule := range rules {
		match, ok := EvaluateRule(m, rule, sender, subject, body)
		if !ok {
			continue
		}
		if best == nil ||
			match.Score > best.Score ||
			(match.Score == best.Score && match.Rule.ID < best.Rule.ID) {
			best = match
		}
	}
	return best
}
