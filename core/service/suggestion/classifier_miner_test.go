package suggestion

import (
	"context"
	"strings"
	"testing"
	"time"

	"classifier_server/core/domain"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeHistory struct {
	samples []domain.MiningSample
}

func (f *fakeHistory) Append(_ context.Context, _ *domain.ClassificationEvent) error { return nil }

func (f *fakeHistory) ListByEmail(_ context.Context, _ uuid.UUID, _ int64) ([]*domain.ClassificationEvent, error) {
	return nil, nil
}

func (f *fakeHistory) ManualCorrections(_ context.Context, _ uuid.UUID, _ time.Time) ([]domain.MiningSample, error) {
	return f.samples, nil
}

type fakeSuggRepo struct {
	created  []*domain.Suggestion
	existing map[string]bool // type+pattern
	statuses map[int64]domain.SuggestionStatus
}

func newFakeSuggRepo() *fakeSuggRepo {
	return &fakeSuggRepo{
		existing: make(map[string]bool),
		statuses: make(map[int64]domain.SuggestionStatus),
	}
}

func (f *fakeSuggRepo) Create(_ context.Context, s *domain.Suggestion) (*domain.Suggestion, error) {
	s.ID = int64(len(f.created) + 1)
	f.created = append(f.created, s)
	f.statuses[s.ID] = s.Status
	return s, nil
}

func (f *fakeSuggRepo) GetByID(_ context.Context, ownerID uuid.UUID, id int64) (*domain.Suggestion, error) {
	for _, s := range f.created {
		if s.ID == id && s.OwnerID == ownerID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSuggRepo) ListPending(_ context.Context, _ uuid.UUID) ([]*domain.Suggestion, error) {
	var out []*domain.Suggestion
	for _, s := range f.created {
		if s.Status == domain.SuggestionPending {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSuggRepo) UpdateStatus(_ context.Context, id int64, status domain.SuggestionStatus, ruleID *int64) error {
	f.statuses[id] = status
	for _, s := range f.created {
		if s.ID == id {
			s.Status = status
			s.CreatedRuleID = ruleID
		}
	}
	return nil
}

func (f *fakeSuggRepo) CountPending(_ context.Context, _ uuid.UUID) (int, error) {
	n := 0
	for _, s := range f.created {
		if s.Status == domain.SuggestionPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeSuggRepo) ExistsPattern(_ context.Context, _ uuid.UUID, typ domain.SuggestionType, pattern string) (bool, error) {
	return f.existing[string(typ)+":"+pattern], nil
}

type fakeRuleRepo struct {
	created []*domain.Rule
	similar bool
}

func (f *fakeRuleRepo) Create(_ context.Context, rule *domain.Rule) (*domain.Rule, error) {
	rule.ID = int64(len(f.created) + 100)
	f.created = append(f.created, rule)
	return rule, nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, _ uuid.UUID, _ int64) (*domain.Rule, error) {
	return nil, nil
}

func (f *fakeRuleRepo) List(_ context.Context, _ uuid.UUID, _ domain.RuleFilter) ([]*domain.Rule, int, error) {
	return nil, 0, nil
}

func (f *fakeRuleRepo) ListEnabled(_ context.Context, _ uuid.UUID) ([]*domain.Rule, error) {
	return nil, nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *domain.Rule) (*domain.Rule, error) {
	return rule, nil
}

func (f *fakeRuleRepo) Delete(_ context.Context, _ uuid.UUID, _ int64) error { return nil }

func (f *fakeRuleRepo) IncrementHitCount(_ context.Context, _ int64) error { return nil }

func (f *fakeRuleRepo) ExistsSimilar(_ context.Context, _ uuid.UUID, _ *domain.Rule) (bool, error) {
	return f.similar, nil
}

func (f *fakeRuleRepo) Reorder(_ context.Context, _ uuid.UUID, _ []int64) error { return nil }

func (f *fakeRuleRepo) CountByOwner(_ context.Context, _ uuid.UUID) (int, error) {
	return len(f.created), nil
}

// =============================================================================
// Miner tests
// =============================================================================

func sample(sender, subject string, category domain.EmailCategory) domain.MiningSample {
	return domain.MiningSample{Sender: sender, Subject: subject, Category: category}
}

func TestMinerMajorityConfidence(t *testing.T) {
	owner := uuid.New()
	// Four corrections from one sender: three finance, one work.
	hist := &fakeHistory{samples: []domain.MiningSample{
		sample("billing@acme.com", "", domain.CategoryFinance),
		sample("billing@acme.com", "", domain.CategoryFinance),
		sample("billing@acme.com", "", domain.CategoryFinance),
		sample("billing@acme.com", "", domain.CategoryWork),
	}}
	suggs := newFakeSuggRepo()
	m := NewMiner(hist, suggs, &fakeRuleRepo{}, nil)

	created, err := m.Mine(context.Background(), owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	got := suggs.created[0]
	if got.Type != domain.SuggestSender || got.Pattern != "billing@acme.com" {
		t.Errorf("suggestion = %s %q", got.Type, got.Pattern)
	}
	if got.Category != domain.CategoryFinance {
		t.Errorf("category = %s, want finance", got.Category)
	}
	if got.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", got.Confidence)
	}
	if got.SampleCount != 4 {
		t.Errorf("sample count = %d, want 4", got.SampleCount)
	}
	// The reason shown to the user names the pattern, the count of
	// corrections behind it, and the target category.
	if !strings.Contains(got.Reason, "billing@acme.com") ||
		!strings.Contains(got.Reason, "3") ||
		!strings.Contains(got.Reason, "finance") {
		t.Errorf("Reason = %q, want pattern, count, and category named", got.Reason)
	}
}

func TestMinerBelowThreshold(t *testing.T) {
	owner := uuid.New()
	hist := &fakeHistory{samples: []domain.MiningSample{
		sample("a@x.com", "", domain.CategoryFinance),
		sample("a@x.com", "", domain.CategoryFinance),
	}}
	suggs := newFakeSuggRepo()
	m := NewMiner(hist, suggs, &fakeRuleRepo{}, nil)

	created, err := m.Mine(context.Background(), owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0 below sender threshold", created)
	}
}

func TestMinerDomainThreshold(t *testing.T) {
	owner := uuid.New()
	// Five different senders from one domain, all reclassified the same
	// way: below the per-sender threshold, above the domain threshold.
	hist := &fakeHistory{samples: []domain.MiningSample{
		sample("a@corp.com", "", domain.CategoryWork),
		sample("b@corp.com", "", domain.CategoryWork),
		sample("c@corp.com", "", domain.CategoryWork),
		sample("d@corp.com", "", domain.CategoryWork),
		sample("e@corp.com", "", domain.CategoryWork),
	}}
	suggs := newFakeSuggRepo()
	m := NewMiner(hist, suggs, &fakeRuleRepo{}, nil)

	created, err := m.Mine(context.Background(), owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1 domain suggestion", created)
	}
	got := suggs.created[0]
	if got.Type != domain.SuggestSenderDomain || got.Pattern != "corp.com" {
		t.Errorf("suggestion = %s %q, want sender_domain corp.com", got.Type, got.Pattern)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", got.Confidence)
	}
}

func TestMinerKeywordSuggestion(t *testing.T) {
	owner := uuid.New()
	hist := &fakeHistory{samples: []domain.MiningSample{
		sample("a@one.com", "quarterly budget review", domain.CategoryFinance),
		sample("b@two.com", "budget follow-up", domain.CategoryFinance),
		sample("c@three.com", "new budget draft", domain.CategoryFinance),
		sample("d@four.com", "budget questions", domain.CategoryFinance),
	}}
	suggs := newFakeSuggRepo()
	m := NewMiner(hist, suggs, &fakeRuleRepo{}, nil)

	if _, err := m.Mine(context.Background(), owner, nil); err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, s := range suggs.created {
		if s.Type == domain.SuggestSubjectKeyword && s.Pattern == "budget" {
			found = true
			if s.SampleCount != 4 {
				t.Errorf("sample count = %d, want 4", s.SampleCount)
			}
		}
	}
	if !found {
		t.Error("expected a subject_keyword suggestion for budget")
	}
}

func TestMinerSkipsDuplicatesAndCoveredPatterns(t *testing.T) {
	owner := uuid.New()
	samples := []domain.MiningSample{
		sample("billing@acme.com", "", domain.CategoryFinance),
		sample("billing@acme.com", "", domain.CategoryFinance),
		sample("billing@acme.com", "", domain.CategoryFinance),
	}

	t.Run("pending suggestion already exists", func(t *testing.T) {
		suggs := newFakeSuggRepo()
		suggs.existing["sender:billing@acme.com"] = true
		m := NewMiner(&fakeHistory{samples: samples}, suggs, &fakeRuleRepo{}, nil)
		created, _ := m.Mine(context.Background(), owner, nil)
		if created != 0 {
			t.Errorf("created = %d, want 0 for duplicate pattern", created)
		}
	})

	t.Run("equivalent rule already exists", func(t *testing.T) {
		suggs := newFakeSuggRepo()
		m := NewMiner(&fakeHistory{samples: samples}, suggs, &fakeRuleRepo{similar: true}, nil)
		created, _ := m.Mine(context.Background(), owner, nil)
		if created != 0 {
			t.Errorf("created = %d, want 0 for covered pattern", created)
		}
	})
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    []string
	}{
		{"filters short words and digits", "re: 42 budget plan", []string{"budget", "plan"}},
		{"strips punctuation", "budget, plan! review?", []string{"budget", "plan", "review"}},
		{"lowercases", "BUDGET Plan", []string{"budget", "plan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractKeywords(tt.subject)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
