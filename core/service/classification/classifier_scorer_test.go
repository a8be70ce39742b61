package classification

import (
	"testing"

	"classifier_server/core/domain"
)

func makeRule(id int64, priority int) *domain.Rule {
	return &domain.Rule{
		ID:         id,
		Name:       "rule",
		Category:   domain.CategoryWork,
		Importance: domain.ImportanceNormal,
		Priority:   priority,
		Enabled:    true,
	}
}

// TestEvaluateRuleAllConditionsMustHold verifies that each defined condition
// group gates the match.
func TestEvaluateRuleAllConditionsMustHold(t *testing.T) {
	m := NewMatcher()

	rule := makeRule(1, 0)
	rule.Sender = &domain.SenderCondition{Pattern: "boss@corp.com", Mode: domain.MatchExact}
	rule.Subject = &domain.SubjectCondition{Keywords: []string{"report"}, Logic: domain.LogicAny}

	tests := []struct {
		name      string
		sender    string
		subject   string
		wantMatch bool
		wantScore float64
	}{
		{"both groups hold", "boss@corp.com", "Weekly report", true, 0.7},
		{"sender holds, subject fails", "boss@corp.com", "Lunch?", false, 0},
		{"subject holds, sender fails", "peer@corp.com", "Weekly report", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := EvaluateRule(m, rule, tt.sender, tt.subject, "")
			if ok != tt.wantMatch {
				t.Fatalf("matched = %v, want %v", ok, tt.wantMatch)
			}
			if ok && match.FieldScore != tt.wantScore {
				t.Errorf("FieldScore = %v, want %v", match.FieldScore, tt.wantScore)
			}
		})
	}
}

// TestEvaluateRuleSkipsUnusable verifies that disabled rules and rules with
// broken stored patterns never match.
func TestEvaluateRuleSkipsUnusable(t *testing.T) {
	m := NewMatcher()

	disabled := makeRule(1, 0)
	disabled.Sender = &domain.SenderCondition{Pattern: "a@b.com", Mode: domain.MatchExact}
	disabled.Enabled = false
	if _, ok := EvaluateRule(m, disabled, "a@b.com", "", ""); ok {
		t.Error("disabled rule should not match")
	}

	broken := makeRule(2, 0)
	broken.Sender = &domain.SenderCondition{Pattern: "([", Mode: domain.MatchRegex}
	broken.PatternInvalid = true
	if _, ok := EvaluateRule(m, broken, "([", "", ""); ok {
		t.Error("pattern-invalid rule should not match")
	}
}

// TestSelectBestPriorityDominates verifies that one priority level outweighs
// any field-score advantage.
func TestSelectBestPriorityDominates(t *testing.T) {
	m := NewMatcher()

	// Matches all three fields but at priority 0.
	rich := makeRule(1, 0)
	rich.Sender = &domain.SenderCondition{Pattern: "corp.com", Mode: domain.MatchDomain}
	rich.Subject = &domain.SubjectCondition{Keywords: []string{"invoice"}, Logic: domain.LogicAny}
	rich.Body = &domain.BodyCondition{Keywords: []string{"total"}}
	rich.Category = domain.CategoryFinance

	// Matches only the sender but at priority 1.
	urgent := makeRule(2, 1)
	urgent.Sender = &domain.SenderCondition{Pattern: "corp.com", Mode: domain.MatchDomain}
	urgent.Category = domain.CategoryWork

	best := SelectBest(m, []*domain.Rule{rich, urgent},
		"billing@corp.com", "Invoice attached", "total due: 42")
	if best == nil {
		t.Fatal("expected a match")
	}
	if best.Rule.ID != 2 {
		t.Errorf("winner = rule %d, want higher-priority rule 2", best.Rule.ID)
	}
}

// TestSelectBestFieldScoreBreaksPriorityTie verifies ranking within one
// priority level.
func TestSelectBestFieldScoreBreaksPriorityTie(t *testing.T) {
	m := NewMatcher()

	senderOnly := makeRule(1, 5)
	senderOnly.Sender = &domain.SenderCondition{Pattern: "corp.com", Mode: domain.MatchDomain}

	senderAndSubject := makeRule(2, 5)
	senderAndSubject.Sender = &domain.SenderCondition{Pattern: "corp.com", Mode: domain.MatchDomain}
	senderAndSubject.Subject = &domain.SubjectCondition{Keywords: []string{"invoice"}, Logic: domain.LogicAny}

	best := SelectBest(m, []*domain.Rule{senderOnly, senderAndSubject},
		"billing@corp.com", "Invoice attached", "")
	if best == nil || best.Rule.ID != 2 {
		t.Fatalf("expected rule 2 to win on field score, got %+v", best)
	}
}

// TestSelectBestDeterministicTie verifies that full ties resolve to the
// oldest rule.
func TestSelectBestDeterministicTie(t *testing.T) {
	m := NewMatcher()

	a := makeRule(7, 3)
	a.Sender = &domain.SenderCondition{Pattern: "corp.com", Mode: domain.MatchDomain}
	b := makeRule(4, 3)
	b.Sender = &domain.SenderCondition{Pattern: "corp.com", Mode: domain.MatchDomain}

	for i := 0; i < 5; i++ {
		best := SelectBest(m, []*domain.Rule{a, b}, "x@corp.com", "", "")
		if best == nil || best.Rule.ID != 4 {
			t.Fatalf("tie should resolve to lowest ID, got %+v", best)
		}
	}
}

// TestSelectBestNoMatch verifies a nil result when nothing holds.
func TestSelectBestNoMatch(t *testing.T) {
	m := NewMatcher()
	r := makeRule(1, 0)
	r.Sender = &domain.SenderCondition{Pattern: "other.com", Mode: domain.MatchDomain}
	if best := SelectBest(m, []*domain.Rule{r}, "x@corp.com", "", ""); best != nil {
		t.Errorf("expected no match, got %+v", best)
	}
}
