package suggestion

import (
	"context"
	"testing"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/port/out"

	"github.com/google/uuid"
)

type fakeJobs struct {
	jobs map[string]*domain.Job
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: make(map[string]*domain.Job)} }

func (f *fakeJobs) Create(_ context.Context, job *domain.Job) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*domain.Job, error) { return f.jobs[id], nil }

func (f *fakeJobs) SetStatus(_ context.Context, id string, status domain.JobStatus, errMsg string) error {
	if j, ok := f.jobs[id]; ok {
		j.Status = status
		j.Error = errMsg
	}
	return nil
}

func (f *fakeJobs) SetTotal(_ context.Context, _ string, _ int) error { return nil }

func (f *fakeJobs) AddProgress(_ context.Context, _ string, _, _, _ int) error { return nil }

func (f *fakeJobs) RequestCancel(_ context.Context, _ string) error { return nil }

func (f *fakeJobs) IsCancelRequested(_ context.Context, _ string) (bool, error) { return false, nil }

type fakeProducer struct {
	mined []*out.MineJob
}

func (f *fakeProducer) PublishClassify(_ context.Context, _ *out.ClassifyJob) error     { return nil }
func (f *fakeProducer) PublishReclassify(_ context.Context, _ *out.ReclassifyJob) error { return nil }
func (f *fakeProducer) PublishApplyRule(_ context.Context, _ *out.ApplyRuleJob) error   { return nil }

func (f *fakeProducer) PublishMine(_ context.Context, job *out.MineJob) error {
	f.mined = append(f.mined, job)
	return nil
}

func pendingSuggestion(owner uuid.UUID) *domain.Suggestion {
	return &domain.Suggestion{
		OwnerID:     owner,
		Type:        domain.SuggestSender,
		Pattern:     "billing@acme.com",
		Category:    domain.CategoryFinance,
		Confidence:  0.75,
		SampleCount: 4,
		Status:      domain.SuggestionPending,
		CreatedAt:   time.Now(),
	}
}

func TestAcceptCreatesRule(t *testing.T) {
	owner := uuid.New()
	suggs := newFakeSuggRepo()
	rules := &fakeRuleRepo{}
	svc := NewService(suggs, rules, newFakeJobs(), &fakeProducer{})

	stored, _ := suggs.Create(context.Background(), pendingSuggestion(owner))

	res, err := svc.Accept(context.Background(), owner, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "accepted" {
		t.Fatalf("status = %s, want accepted", res.Status)
	}
	if res.Rule == nil || res.Rule.Sender == nil {
		t.Fatal("expected a created rule with a sender condition")
	}
	if res.Rule.Sender.Mode != domain.MatchExact || res.Rule.Sender.Pattern != "billing@acme.com" {
		t.Errorf("rule sender = %+v", res.Rule.Sender)
	}
	if res.Rule.Category != domain.CategoryFinance {
		t.Errorf("rule category = %s", res.Rule.Category)
	}
	if res.Suggestion.CreatedRuleID == nil || *res.Suggestion.CreatedRuleID != res.Rule.ID {
		t.Error("suggestion should point at the created rule")
	}
}

func TestAcceptDomainSuggestionShape(t *testing.T) {
	owner := uuid.New()
	suggs := newFakeSuggRepo()
	rules := &fakeRuleRepo{}
	svc := NewService(suggs, rules, newFakeJobs(), &fakeProducer{})

	s := pendingSuggestion(owner)
	s.Type = domain.SuggestSenderDomain
	s.Pattern = "acme.com"
	stored, _ := suggs.Create(context.Background(), s)

	res, err := svc.Accept(context.Background(), owner, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rule.Sender == nil || res.Rule.Sender.Mode != domain.MatchDomain {
		t.Errorf("rule sender = %+v, want domain mode", res.Rule.Sender)
	}
}

func TestAcceptKeywordSuggestionShape(t *testing.T) {
	owner := uuid.New()
	suggs := newFakeSuggRepo()
	svc := NewService(suggs, &fakeRuleRepo{}, newFakeJobs(), &fakeProducer{})

	s := pendingSuggestion(owner)
	s.Type = domain.SuggestSubjectKeyword
	s.Pattern = "budget"
	stored, _ := suggs.Create(context.Background(), s)

	res, err := svc.Accept(context.Background(), owner, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rule.Subject == nil || len(res.Rule.Subject.Keywords) != 1 || res.Rule.Subject.Keywords[0] != "budget" {
		t.Errorf("rule subject = %+v", res.Rule.Subject)
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	owner := uuid.New()
	suggs := newFakeSuggRepo()
	rules := &fakeRuleRepo{}
	svc := NewService(suggs, rules, newFakeJobs(), &fakeProducer{})

	stored, _ := suggs.Create(context.Background(), pendingSuggestion(owner))

	if _, err := svc.Accept(context.Background(), owner, stored.ID); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Accept(context.Background(), owner, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "already_resolved" {
		t.Errorf("second accept status = %s, want already_resolved", res.Status)
	}
	if len(rules.created) != 1 {
		t.Errorf("rules created = %d, want 1", len(rules.created))
	}
}

func TestAcceptMissingSuggestion(t *testing.T) {
	svc := NewService(newFakeSuggRepo(), &fakeRuleRepo{}, newFakeJobs(), &fakeProducer{})
	res, err := svc.Accept(context.Background(), uuid.New(), 999)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "already_resolved" {
		t.Errorf("status = %s, want already_resolved", res.Status)
	}
}

func TestDismiss(t *testing.T) {
	owner := uuid.New()
	suggs := newFakeSuggRepo()
	rules := &fakeRuleRepo{}
	svc := NewService(suggs, rules, newFakeJobs(), &fakeProducer{})

	stored, _ := suggs.Create(context.Background(), pendingSuggestion(owner))

	res, err := svc.Dismiss(context.Background(), owner, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "dismissed" {
		t.Errorf("status = %s, want dismissed", res.Status)
	}
	if len(rules.created) != 0 {
		t.Error("dismiss must not create rules")
	}

	// Dismissed suggestions leave the pending list.
	pending, _ := svc.ListSuggestions(context.Background(), owner)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestStartMiningPublishes(t *testing.T) {
	owner := uuid.New()
	jobs := newFakeJobs()
	producer := &fakeProducer{}
	svc := NewService(newFakeSuggRepo(), &fakeRuleRepo{}, jobs, producer)

	job, err := svc.StartMining(context.Background(), owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if job.Kind != domain.JobMine || job.Status != domain.JobQueued {
		t.Errorf("job = %s/%s", job.Kind, job.Status)
	}
	if len(producer.mined) != 1 || producer.mined[0].JobID != job.ID {
		t.Errorf("mined jobs = %+v", producer.mined)
	}
}
