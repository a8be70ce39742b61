package classification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/port/out"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRuleRepo struct {
	mu      sync.Mutex // hit counting happens off the classify goroutine
	rules   []*domain.Rule
	hits    map[int64]int
	similar bool
}

func newFakeRuleRepo(rules ...*domain.Rule) *fakeRuleRepo {
	return &fakeRuleRepo{rules: rules, hits: make(map[int64]int)}
}

func (f *fakeRuleRepo) Create(_ context.Context, rule *domain.Rule) (*domain.Rule, error) {
	rule.ID = int64(len(f.rules) + 1)
	f.rules = append(f.rules, rule)
	return rule, nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, ownerID uuid.UUID, id int64) (*domain.Rule, error) {
	for _, r := range f.rules {
		if r.ID == id && r.OwnerID == ownerID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRuleRepo) List(_ context.Context, _ uuid.UUID, _ domain.RuleFilter) ([]*domain.Rule, int, error) {
	return f.rules, len(f.rules), nil
}

func (f *fakeRuleRepo) ListEnabled(_ context.Context, _ uuid.UUID) ([]*domain.Rule, error) {
	var out []*domain.Rule
	for _, r := range f.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *domain.Rule) (*domain.Rule, error) {
	return rule, nil
}

func (f *fakeRuleRepo) Delete(_ context.Context, _ uuid.UUID, _ int64) error { return nil }

func (f *fakeRuleRepo) IncrementHitCount(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[id]++
	now := time.Now()
	for _, r := range f.rules {
		if r.ID == id {
			r.HitCount++
			r.LastMatchedAt = &now
		}
	}
	return nil
}

func (f *fakeRuleRepo) hitCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[id]
}

func (f *fakeRuleRepo) lastMatched(id int64) *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if r.ID == id {
			return r.LastMatchedAt
		}
	}
	return nil
}

func (f *fakeRuleRepo) ExistsSimilar(_ context.Context, _ uuid.UUID, _ *domain.Rule) (bool, error) {
	return f.similar, nil
}

func (f *fakeRuleRepo) Reorder(_ context.Context, ownerID uuid.UUID, orderedIDs []int64) error {
	for i, id := range orderedIDs {
		found := false
		for _, r := range f.rules {
			if r.ID == id && r.OwnerID == ownerID {
				r.Priority = len(orderedIDs) - i
				found = true
				break
			}
		}
		if !found {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (f *fakeRuleRepo) CountByOwner(_ context.Context, _ uuid.UUID) (int, error) {
	return len(f.rules), nil
}

type fakeSemantic struct {
	result *out.SemanticResult
	err    error
	calls  int
}

func (f *fakeSemantic) Classify(_ context.Context, _ out.EmailForAnalysis) (*out.SemanticResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeSemantic) ClassifyBatch(_ context.Context, _ []out.EmailForAnalysis) (map[int64]*out.SemanticResult, error) {
	return nil, errors.New("not implemented")
}

// =============================================================================
// Cascade tests
// =============================================================================

func TestCascadeRuleLayerWins(t *testing.T) {
	userID := uuid.New()
	rule := &domain.Rule{
		ID:         10,
		OwnerID:    userID,
		Name:       "vip billing",
		Sender:     &domain.SenderCondition{Pattern: "vip-client.com", Mode: domain.MatchDomain},
		Category:   domain.CategoryFinance,
		Importance: domain.ImportanceHigh,
		Enabled:    true,
	}
	repo := newFakeRuleRepo(rule)

	// Semantic would answer differently; the rule layer must end the run
	// before it is consulted.
	sem := &fakeSemantic{result: &out.SemanticResult{
		Category: domain.CategorySpam, Importance: domain.ImportanceNormal, Confidence: 0.99,
	}}

	c := NewCascade(repo, sem, nil)
	got, err := c.Classify(context.Background(), &ClassifyInput{
		UserID: userID, Sender: "billing@vip-client.com", Subject: "Invoice", Body: "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Method != domain.MethodRule || got.Category != domain.CategoryFinance {
		t.Errorf("got %s/%s, want rule/finance", got.Method, got.Category)
	}
	if got.RuleID == nil || *got.RuleID != 10 {
		t.Errorf("RuleID = %v, want 10", got.RuleID)
	}
	if sem.calls != 0 {
		t.Errorf("semantic consulted %d times after a rule win", sem.calls)
	}
}

func TestCascadeRuleWinRecordsHit(t *testing.T) {
	userID := uuid.New()
	rule := &domain.Rule{
		ID:       10,
		OwnerID:  userID,
		Name:     "newsletter",
		Sender:   &domain.SenderCondition{Pattern: "news@daily.example", Mode: domain.MatchExact},
		Category: domain.CategoryNews,
		Enabled:  true,
	}
	repo := newFakeRuleRepo(rule)

	c := NewCascade(repo, nil, nil)
	_, err := c.Classify(context.Background(), &ClassifyInput{
		UserID: userID, EmailID: 1, Sender: "news@daily.example", CountHits: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Hit recording is fire-and-forget off the classify path.
	deadline := time.Now().Add(time.Second)
	for repo.hitCount(10) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.hitCount(10) != 1 {
		t.Fatalf("hit count = %d, want 1", repo.hitCount(10))
	}
	if repo.lastMatched(10) == nil {
		t.Error("LastMatchedAt not stamped on a rule win")
	}

	// Previews must leave both untouched.
	if _, err := c.Classify(context.Background(), &ClassifyInput{
		UserID: userID, Sender: "news@daily.example",
	}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if repo.hitCount(10) != 1 {
		t.Errorf("hit count = %d after preview, want 1", repo.hitCount(10))
	}
}

func TestCascadeSemanticLayer(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRuleRepo()

	tests := []struct {
		name       string
		semantic   *fakeSemantic
		wantMethod domain.ClassificationMethod
		wantCat    domain.EmailCategory
	}{
		{
			name: "confident result accepted",
			semantic: &fakeSemantic{result: &out.SemanticResult{
				Category: domain.CategoryTravel, Importance: domain.ImportanceMedium, Confidence: 0.91,
			}},
			wantMethod: domain.MethodSemantic,
			wantCat:    domain.CategoryTravel,
		},
		{
			name: "low confidence falls through to keywords",
			semantic: &fakeSemantic{result: &out.SemanticResult{
				Category: domain.CategoryTravel, Importance: domain.ImportanceMedium, Confidence: 0.55,
			}},
			wantMethod: domain.MethodKeyword,
			wantCat:    domain.CategoryFinance,
		},
		{
			name:       "semantic outage degrades to keywords",
			semantic:   &fakeSemantic{err: errors.New("quota exceeded")},
			wantMethod: domain.MethodKeyword,
			wantCat:    domain.CategoryFinance,
		},
		{
			name: "unknown category from semantic is rejected",
			semantic: &fakeSemantic{result: &out.SemanticResult{
				Category: "bogus", Confidence: 0.95,
			}},
			wantMethod: domain.MethodKeyword,
			wantCat:    domain.CategoryFinance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCascade(repo, tt.semantic, nil)
			got, err := c.Classify(context.Background(), &ClassifyInput{
				UserID: userID, Sender: "x@bank.example", Subject: "Your monthly invoice", Body: "",
			})
			if err != nil {
				t.Fatal(err)
			}
			if got.Method != tt.wantMethod || got.Category != tt.wantCat {
				t.Errorf("got %s/%s, want %s/%s", got.Method, got.Category, tt.wantMethod, tt.wantCat)
			}
		})
	}
}

func TestCascadeDefaultLayer(t *testing.T) {
	c := NewCascade(newFakeRuleRepo(), nil, nil)
	got, err := c.Classify(context.Background(), &ClassifyInput{
		UserID: uuid.New(), Sender: "x@nowhere.example", Subject: "zzzz", Body: "zzzz",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Method != domain.MethodDefault || got.Category != domain.CategoryGeneral {
		t.Errorf("got %s/%s, want default/general", got.Method, got.Category)
	}
	if got.Importance != domain.ImportanceNormal {
		t.Errorf("Importance = %v, want normal", got.Importance)
	}
}

// =============================================================================
// Keyword classifier tests
// =============================================================================

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name           string
		sender         string
		subject        string
		body           string
		wantCategory   domain.EmailCategory
		wantImportance domain.Importance
	}{
		{
			name:           "invoice subject is finance",
			subject:        "Invoice for April",
			wantCategory:   domain.CategoryFinance,
			wantImportance: domain.ImportanceNormal,
		},
		{
			name:           "CJK order keyword is shopping",
			subject:        "您的订单已发货",
			wantCategory:   domain.CategoryShopping,
			wantImportance: domain.ImportanceNormal,
		},
		{
			name:           "urgent meeting is work and high importance",
			subject:        "URGENT: project meeting moved",
			wantCategory:   domain.CategoryWork,
			wantImportance: domain.ImportanceHigh,
		},
		{
			name:           "confirmation bumps to medium importance",
			subject:        "Booking confirmation",
			sender:         "hotel@stay.example",
			wantCategory:   domain.CategoryTravel,
			wantImportance: domain.ImportanceMedium,
		},
		{
			name:           "nothing triggers general",
			subject:        "zzzz",
			wantCategory:   domain.CategoryGeneral,
			wantImportance: domain.ImportanceNormal,
		},
		{
			name:           "keyword in body counts too",
			subject:        "hello",
			body:           "your flight departs at 9am",
			wantCategory:   domain.CategoryTravel,
			wantImportance: domain.ImportanceNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, importance := c.Classify(tt.sender, tt.subject, tt.body)
			if category != tt.wantCategory {
				t.Errorf("category = %s, want %s", category, tt.wantCategory)
			}
			if importance != tt.wantImportance {
				t.Errorf("importance = %v, want %v", importance, tt.wantImportance)
			}
		})
	}
}
