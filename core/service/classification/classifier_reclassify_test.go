package classification

import (
	"context"
	"sync"
	"testing"
	"time"

	"classifier_server/core/domain"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeEmailRepo struct {
	mu     sync.Mutex
	emails map[int64]*domain.Email
	order  []int64
}

func newFakeEmailRepo(emails ...*domain.Email) *fakeEmailRepo {
	f := &fakeEmailRepo{emails: make(map[int64]*domain.Email)}
	for _, e := range emails {
		f.emails[e.ID] = e
		f.order = append(f.order, e.ID)
	}
	return f
}

func (f *fakeEmailRepo) GetByID(_ context.Context, id int64) (*domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emails[id], nil
}

func (f *fakeEmailRepo) ListIDsByOwner(_ context.Context, ownerID uuid.UUID) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, id := range f.order {
		if f.emails[id].OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeEmailRepo) ListByIDs(_ context.Context, ownerID uuid.UUID, ids []int64) ([]*domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Email
	for _, id := range ids {
		if e, ok := f.emails[id]; ok && e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEmailRepo) CountByOwner(_ context.Context, ownerID uuid.UUID) (int, error) {
	ids, _ := f.ListIDsByOwner(context.Background(), ownerID)
	return len(ids), nil
}

func (f *fakeEmailRepo) UpdateClassification(_ context.Context, id int64, category domain.EmailCategory, importance domain.Importance, method domain.ClassificationMethod, ruleID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.emails[id]
	e.Category = category
	e.Importance = importance
	e.ClassificationMethod = method
	e.MatchedRuleID = ruleID
	return nil
}

func (f *fakeEmailRepo) CategoryStats(_ context.Context, _ uuid.UUID) ([]domain.CategoryStat, error) {
	return nil, nil
}

func (f *fakeEmailRepo) MethodStats(_ context.Context, _ uuid.UUID) ([]domain.MethodStat, error) {
	return nil, nil
}

type fakeHistRepo struct {
	mu     sync.Mutex
	events []*domain.ClassificationEvent
}

func (f *fakeHistRepo) Append(_ context.Context, ev *domain.ClassificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeHistRepo) ListByEmail(_ context.Context, _ uuid.UUID, _ int64) ([]*domain.ClassificationEvent, error) {
	return nil, nil
}

func (f *fakeHistRepo) ManualCorrections(_ context.Context, _ uuid.UUID, _ time.Time) ([]domain.MiningSample, error) {
	return nil, nil
}

// fakeJobTracker records progress and can flag cancellation after a number
// of batch checks.
type fakeJobTracker struct {
	mu          sync.Mutex
	status      domain.JobStatus
	total       int
	processed   int
	changed     int
	failed      int
	cancelAfter int // cancel on the Nth IsCancelRequested call, 0 = never
	checks      int
}

func (f *fakeJobTracker) Create(_ context.Context, _ *domain.Job) error { return nil }

func (f *fakeJobTracker) Get(_ context.Context, _ string) (*domain.Job, error) { return nil, nil }

func (f *fakeJobTracker) SetStatus(_ context.Context, _ string, status domain.JobStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	return nil
}

func (f *fakeJobTracker) SetTotal(_ context.Context, _ string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total = total
	return nil
}

func (f *fakeJobTracker) AddProgress(_ context.Context, _ string, processed, changed, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed += processed
	f.changed += changed
	f.failed += failed
	return nil
}

func (f *fakeJobTracker) RequestCancel(_ context.Context, _ string) error { return nil }

func (f *fakeJobTracker) IsCancelRequested(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.cancelAfter > 0 && f.checks >= f.cancelAfter, nil
}

// =============================================================================
// Reclassifier tests
// =============================================================================

func storedEmail(id int64, owner uuid.UUID, sender, subject string) *domain.Email {
	return &domain.Email{
		ID:                   id,
		OwnerID:              owner,
		Sender:               sender,
		Subject:              subject,
		Category:             domain.CategoryGeneral,
		Importance:           domain.ImportanceNormal,
		ClassificationMethod: domain.MethodDefault,
	}
}

func newTestReclassifier(emailRepo *fakeEmailRepo, ruleRepo *fakeRuleRepo, jobs *fakeJobTracker) *Reclassifier {
	svc := NewService(ServiceDeps{
		Cascade:   NewCascade(ruleRepo, nil, nil),
		EmailRepo: emailRepo,
		HistRepo:  &fakeHistRepo{},
		RuleRepo:  ruleRepo,
		Jobs:      jobs,
	})
	return NewReclassifier(svc, emailRepo, ruleRepo, jobs)
}

func TestApplyRuleSecondPassChangesNothing(t *testing.T) {
	owner := uuid.New()
	rule := &domain.Rule{
		ID:         7,
		OwnerID:    owner,
		Name:       "newsletters",
		Sender:     &domain.SenderCondition{Pattern: "daily.example", Mode: domain.MatchDomain},
		Category:   domain.CategoryNews,
		Importance: domain.ImportanceNormal,
		Enabled:    true,
	}
	ruleRepo := newFakeRuleRepo(rule)
	emailRepo := newFakeEmailRepo(
		storedEmail(1, owner, "news@daily.example", "Morning brief"),
		storedEmail(2, owner, "digest@daily.example", "Evening brief"),
		storedEmail(3, owner, "boss@work.example", "1:1 notes"),
	)

	jobs := &fakeJobTracker{}
	r := newTestReclassifier(emailRepo, ruleRepo, jobs)

	if err := r.RunApplyRule(context.Background(), owner, "job-1", 7); err != nil {
		t.Fatal(err)
	}
	if jobs.status != domain.JobCompleted {
		t.Fatalf("status = %s, want completed", jobs.status)
	}
	if jobs.changed != 2 {
		t.Errorf("changed = %d, want 2", jobs.changed)
	}
	if e := emailRepo.emails[1]; e.Category != domain.CategoryNews || e.ClassificationMethod != domain.MethodRule {
		t.Errorf("email 1 = %s/%s, want news/rule", e.Category, e.ClassificationMethod)
	}
	if e := emailRepo.emails[3]; e.Category != domain.CategoryGeneral {
		t.Errorf("non-matching email recategorized to %s", e.Category)
	}

	// Second pass over the same mailbox: already-assigned records are
	// skipped, so nothing newly changes.
	jobs2 := &fakeJobTracker{}
	r2 := newTestReclassifier(emailRepo, ruleRepo, jobs2)
	if err := r2.RunApplyRule(context.Background(), owner, "job-2", 7); err != nil {
		t.Fatal(err)
	}
	if jobs2.changed != 0 {
		t.Errorf("second pass changed = %d, want 0", jobs2.changed)
	}
}

func TestApplyRulePreservesManualAssignments(t *testing.T) {
	owner := uuid.New()
	rule := &domain.Rule{
		ID:       7,
		OwnerID:  owner,
		Name:     "newsletters",
		Sender:   &domain.SenderCondition{Pattern: "daily.example", Mode: domain.MatchDomain},
		Category: domain.CategoryNews,
		Enabled:  true,
	}
	manual := storedEmail(1, owner, "news@daily.example", "Morning brief")
	manual.Category = domain.CategoryWork
	manual.ClassificationMethod = domain.MethodManual

	emailRepo := newFakeEmailRepo(manual)
	jobs := &fakeJobTracker{}
	r := newTestReclassifier(emailRepo, newFakeRuleRepo(rule), jobs)

	if err := r.RunApplyRule(context.Background(), owner, "job-1", 7); err != nil {
		t.Fatal(err)
	}
	if manual.Category != domain.CategoryWork || manual.ClassificationMethod != domain.MethodManual {
		t.Errorf("manual assignment overwritten: %s/%s", manual.Category, manual.ClassificationMethod)
	}
	if jobs.changed != 0 {
		t.Errorf("changed = %d, want 0", jobs.changed)
	}
}

func TestReclassifyCancelsBetweenBatches(t *testing.T) {
	owner := uuid.New()
	var emails []*domain.Email
	for i := int64(1); i <= 120; i++ {
		emails = append(emails, storedEmail(i, owner, "someone@somewhere.example", "hello"))
	}
	emailRepo := newFakeEmailRepo(emails...)

	// First batch runs, the flag is observed before the second.
	jobs := &fakeJobTracker{cancelAfter: 2}
	r := newTestReclassifier(emailRepo, newFakeRuleRepo(), jobs)

	if err := r.RunReclassify(context.Background(), owner, "job-1", nil, false); err != nil {
		t.Fatal(err)
	}
	if jobs.status != domain.JobCancelled {
		t.Fatalf("status = %s, want cancelled", jobs.status)
	}
	if jobs.processed != reclassifyBatchSize {
		t.Errorf("processed = %d, want exactly one batch (%d)", jobs.processed, reclassifyBatchSize)
	}
}

func TestReclassifyCompletesAndReportsTotals(t *testing.T) {
	owner := uuid.New()
	emailRepo := newFakeEmailRepo(
		storedEmail(1, owner, "a@x.example", "hi"),
		storedEmail(2, owner, "b@x.example", "hi"),
	)
	jobs := &fakeJobTracker{}
	r := newTestReclassifier(emailRepo, newFakeRuleRepo(), jobs)

	if err := r.RunReclassify(context.Background(), owner, "job-1", nil, false); err != nil {
		t.Fatal(err)
	}
	if jobs.status != domain.JobCompleted {
		t.Fatalf("status = %s, want completed", jobs.status)
	}
	if jobs.total != 2 || jobs.processed != 2 {
		t.Errorf("total/processed = %d/%d, want 2/2", jobs.total, jobs.processed)
	}
	// Default-layer inputs stay where they were.
	if jobs.changed != 0 {
		t.Errorf("changed = %d, want 0", jobs.changed)
	}
}

func TestOwnerLocksSerializePerOwner(t *testing.T) {
	locks := newOwnerLocks()
	owner := uuid.New()
	other := uuid.New()

	unlock := locks.lock(owner)

	// A different owner proceeds immediately.
	done := make(chan struct{})
	go func() {
		u := locks.lock(other)
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different owner blocked by unrelated lock")
	}

	// The same owner waits for the release.
	acquired := make(chan struct{})
	go func() {
		u := locks.lock(owner)
		u()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("same owner acquired the lock while it was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released")
	}
}
