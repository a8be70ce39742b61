package classification

import (
	"context"
	"testing"

	"classifier_server/core/domain"
	"classifier_server/core/port/in"
	"classifier_server/pkg/apperr"

	"github.com/google/uuid"
)

func TestCreateRuleNormalizesConditions(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewRuleService(repo, nil)
	userID := uuid.New()

	created, err := svc.CreateRule(context.Background(), userID, &in.CreateRuleRequest{
		Name:     "  billing  ",
		Sender:   &domain.SenderCondition{Pattern: " billing@acme.example "},
		Subject:  &domain.SubjectCondition{Keywords: []string{" invoice ", "", "payment"}},
		Category: domain.CategoryFinance,
	})
	if err != nil {
		t.Fatal(err)
	}

	if created.Name != "billing" {
		t.Errorf("Name = %q, want trimmed", created.Name)
	}
	if created.Sender.Pattern != "billing@acme.example" {
		t.Errorf("Pattern = %q, want trimmed", created.Sender.Pattern)
	}
	// Empty mode defaults to exact matching
	if created.Sender.Mode != domain.MatchExact {
		t.Errorf("Mode = %q, want exact", created.Sender.Mode)
	}
	if len(created.Subject.Keywords) != 2 {
		t.Errorf("Keywords = %v, want blank entries dropped", created.Subject.Keywords)
	}
	if created.Subject.Logic != domain.LogicAny {
		t.Errorf("Logic = %q, want any", created.Subject.Logic)
	}
	// Unset importance defaults to normal, rules start enabled
	if created.Importance != domain.ImportanceNormal {
		t.Errorf("Importance = %v, want normal", created.Importance)
	}
	if !created.Enabled {
		t.Error("new rule should be enabled")
	}
}

func TestCreateRuleRejectsInvalid(t *testing.T) {
	svc := NewRuleService(newFakeRuleRepo(), nil)
	userID := uuid.New()

	tests := []struct {
		name string
		req  *in.CreateRuleRequest
	}{
		{
			name: "missing name",
			req: &in.CreateRuleRequest{
				Sender:   &domain.SenderCondition{Pattern: "a@b.example"},
				Category: domain.CategoryWork,
			},
		},
		{
			name: "unknown category",
			req: &in.CreateRuleRequest{
				Name:     "r",
				Sender:   &domain.SenderCondition{Pattern: "a@b.example"},
				Category: "bogus",
			},
		},
		{
			name: "no conditions",
			req: &in.CreateRuleRequest{
				Name:     "r",
				Category: domain.CategoryWork,
			},
		},
		{
			name: "whitespace-only conditions normalize to none",
			req: &in.CreateRuleRequest{
				Name:     "r",
				Subject:  &domain.SubjectCondition{Keywords: []string{"  ", ""}},
				Category: domain.CategoryWork,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(context.Background(), userID, tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			appErr := apperr.AsAppError(err)
			if appErr.Code != apperr.CodeValidationFailed {
				t.Errorf("code = %s, want validation_failed", appErr.Code)
			}
		})
	}
}

func TestCreateRuleStoresUncompilablePattern(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewRuleService(repo, nil)

	created, err := svc.CreateRule(context.Background(), uuid.New(), &in.CreateRuleRequest{
		Name:     "broken regex",
		Sender:   &domain.SenderCondition{Pattern: "[unclosed", Mode: domain.MatchRegex},
		Category: domain.CategorySpam,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !created.PatternInvalid {
		t.Error("rule with uncompilable pattern must be flagged invalid")
	}
}

func TestCreateRuleRejectsDuplicate(t *testing.T) {
	repo := newFakeRuleRepo()
	repo.similar = true
	svc := NewRuleService(repo, nil)

	_, err := svc.CreateRule(context.Background(), uuid.New(), &in.CreateRuleRequest{
		Name:     "dup",
		Sender:   &domain.SenderCondition{Pattern: "a@b.example"},
		Category: domain.CategoryWork,
	})
	if err == nil {
		t.Fatal("expected conflict")
	}
	if apperr.AsAppError(err).Code != apperr.CodeConflict {
		t.Errorf("code = %s, want conflict", apperr.AsAppError(err).Code)
	}
}

func TestUpdateRulePartial(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRuleRepo(&domain.Rule{
		ID:         1,
		OwnerID:    userID,
		Name:       "old",
		Sender:     &domain.SenderCondition{Pattern: "a@b.example", Mode: domain.MatchExact},
		Category:   domain.CategoryWork,
		Importance: domain.ImportanceNormal,
		Enabled:    true,
	})
	svc := NewRuleService(repo, nil)

	newName := "renamed"
	imp := domain.ImportanceHigh
	updated, err := svc.UpdateRule(context.Background(), userID, 1, &in.UpdateRuleRequest{
		Name:       &newName,
		Importance: &imp,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "renamed" || updated.Importance != domain.ImportanceHigh {
		t.Errorf("got %q/%v, want renamed/high", updated.Name, updated.Importance)
	}
	// Untouched fields survive
	if updated.Sender == nil || updated.Sender.Pattern != "a@b.example" {
		t.Errorf("Sender = %+v, want unchanged", updated.Sender)
	}
}

func TestRuleOwnershipScoping(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	repo := newFakeRuleRepo(&domain.Rule{
		ID:       1,
		OwnerID:  owner,
		Name:     "mine",
		Sender:   &domain.SenderCondition{Pattern: "a@b.example", Mode: domain.MatchExact},
		Category: domain.CategoryWork,
		Enabled:  true,
	})
	svc := NewRuleService(repo, nil)

	if _, err := svc.GetRule(context.Background(), stranger, 1); err == nil {
		t.Error("stranger must not see the rule")
	}
	if err := svc.DeleteRule(context.Background(), stranger, 1); err == nil {
		t.Error("stranger must not delete the rule")
	}
	if _, err := svc.GetRule(context.Background(), owner, 1); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
}

func TestReorderRules(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRuleRepo(
		&domain.Rule{ID: 1, OwnerID: userID, Priority: 3, Enabled: true},
		&domain.Rule{ID: 2, OwnerID: userID, Priority: 2, Enabled: true},
		&domain.Rule{ID: 3, OwnerID: userID, Priority: 1, Enabled: true},
	)
	svc := NewRuleService(repo, nil)

	// Reverse the order: rule 3 becomes highest priority.
	if err := svc.ReorderRules(context.Background(), userID, []int64{3, 2, 1}); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		id   int64
		want int
	}{{3, 3}, {2, 2}, {1, 1}} {
		for _, r := range repo.rules {
			if r.ID == tc.id && r.Priority != tc.want {
				t.Errorf("rule %d priority = %d, want %d", tc.id, r.Priority, tc.want)
			}
		}
	}
}

func TestReorderRulesRejectsBadInput(t *testing.T) {
	svc := NewRuleService(newFakeRuleRepo(), nil)
	userID := uuid.New()

	for _, ids := range [][]int64{nil, {}, {1, 2, 1}, {0}, {-5}} {
		if err := svc.ReorderRules(context.Background(), userID, ids); err == nil {
			t.Errorf("ReorderRules(%v) accepted invalid input", ids)
		}
	}
}

func TestReorderRulesConflictOnMissingRule(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRuleRepo(&domain.Rule{ID: 1, OwnerID: userID, Enabled: true})
	svc := NewRuleService(repo, nil)

	// Rule 9 was deleted by a racing request
	err := svc.ReorderRules(context.Background(), userID, []int64{1, 9})
	if err == nil {
		t.Fatal("expected conflict")
	}
	if apperr.AsAppError(err).Code != apperr.CodeConflict {
		t.Errorf("code = %s, want conflict", apperr.AsAppError(err).Code)
	}
}

func TestTestRuleDryRun(t *testing.T) {
	svc := NewRuleService(newFakeRuleRepo(), nil)

	req := &in.TestRuleRequest{
		Rule: in.CreateRuleRequest{
			Sender:   &domain.SenderCondition{Pattern: "acme.example", Mode: domain.MatchDomain},
			Subject:  &domain.SubjectCondition{Keywords: []string{"report"}},
			Category: domain.CategoryWork,
		},
		Sender:  "ceo@acme.example",
		Subject: "weekly report",
	}

	res, err := svc.TestRule(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched || res.Score <= 0 {
		t.Errorf("got matched=%v score=%v, want a positive match", res.Matched, res.Score)
	}
	if res.Category != domain.CategoryWork || res.Importance != domain.ImportanceNormal {
		t.Errorf("assignment = %s/%v, want work/normal", res.Category, res.Importance)
	}
	if len(res.Conditions) != 2 {
		t.Fatalf("Conditions = %+v, want one check per declared group", res.Conditions)
	}
	for _, check := range res.Conditions {
		if !check.Matched || check.Detail == "" {
			t.Errorf("condition %s: matched=%v detail=%q", check.Field, check.Matched, check.Detail)
		}
	}

	// A failing sender must not hide the subject verdict from the breakdown.
	req.Sender = "ceo@other.example"
	res, err = svc.TestRule(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched {
		t.Error("non-matching sample reported as matched")
	}
	if res.Category != "" {
		t.Errorf("Category = %q on a non-match, want empty", res.Category)
	}
	if len(res.Conditions) != 2 {
		t.Fatalf("Conditions = %+v, want both groups reported", res.Conditions)
	}
	if res.Conditions[0].Matched || !res.Conditions[1].Matched {
		t.Errorf("breakdown = %+v, want sender failed and subject matched", res.Conditions)
	}
}
