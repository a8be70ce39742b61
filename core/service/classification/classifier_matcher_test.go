package classification

import (
	"testing"

	"classifier_server/core/domain"
)

// TestMatchSender covers every sender match mode.
func TestMatchSender(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		name    string
		cond    *domain.SenderCondition
		sender  string
		want    bool
	}{
		{
			name:   "exact match is case-insensitive",
			cond:   &domain.SenderCondition{Pattern: "Billing@VIP-Client.com", Mode: domain.MatchExact},
			sender: "billing@vip-client.com",
			want:   true,
		},
		{
			name:   "exact does not substring match",
			cond:   &domain.SenderCondition{Pattern: "billing@vip-client.com", Mode: domain.MatchExact},
			sender: "no-reply.billing@vip-client.com",
			want:   false,
		},
		{
			name:   "contains matches a substring anywhere",
			cond:   &domain.SenderCondition{Pattern: "vip-client", Mode: domain.MatchContains},
			sender: "support@VIP-CLIENT.com",
			want:   true,
		},
		{
			name:   "domain matches the address domain",
			cond:   &domain.SenderCondition{Pattern: "vip-client.com", Mode: domain.MatchDomain},
			sender: "anyone@vip-client.com",
			want:   true,
		},
		{
			name:   "domain with leading at sign",
			cond:   &domain.SenderCondition{Pattern: "@vip-client.com", Mode: domain.MatchDomain},
			sender: "anyone@vip-client.com",
			want:   true,
		},
		{
			name:   "domain matches subdomains",
			cond:   &domain.SenderCondition{Pattern: "vip-client.com", Mode: domain.MatchDomain},
			sender: "alerts@mail.vip-client.com",
			want:   true,
		},
		{
			name:   "domain does not match mere suffix",
			cond:   &domain.SenderCondition{Pattern: "client.com", Mode: domain.MatchDomain},
			sender: "anyone@vip-client.com",
			want:   false,
		},
		{
			name:   "domain mode on address without at sign",
			cond:   &domain.SenderCondition{Pattern: "vip-client.com", Mode: domain.MatchDomain},
			sender: "not-an-address",
			want:   false,
		},
		{
			name:   "wildcard star spans segments",
			cond:   &domain.SenderCondition{Pattern: "billing@*.example.com", Mode: domain.MatchWildcard},
			sender: "billing@eu.example.com",
			want:   true,
		},
		{
			name:   "wildcard is anchored",
			cond:   &domain.SenderCondition{Pattern: "billing@*", Mode: domain.MatchWildcard},
			sender: "x-billing@example.com",
			want:   false,
		},
		{
			name:   "wildcard question mark is one character",
			cond:   &domain.SenderCondition{Pattern: "user?@example.com", Mode: domain.MatchWildcard},
			sender: "user1@example.com",
			want:   true,
		},
		{
			name:   "regex matches",
			cond:   &domain.SenderCondition{Pattern: `^billing@.*\.com$`, Mode: domain.MatchRegex},
			sender: "billing@shop.com",
			want:   true,
		},
		{
			name:   "regex is case-insensitive",
			cond:   &domain.SenderCondition{Pattern: `^BILLING@`, Mode: domain.MatchRegex},
			sender: "billing@shop.com",
			want:   true,
		},
		{
			name:   "invalid regex never matches",
			cond:   &domain.SenderCondition{Pattern: `billing@([`, Mode: domain.MatchRegex},
			sender: "billing@([",
			want:   false,
		},
		{
			name:   "empty pattern never matches",
			cond:   &domain.SenderCondition{Pattern: "  ", Mode: domain.MatchExact},
			sender: "anyone@example.com",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.MatchSender(tt.cond, tt.sender); got != tt.want {
				t.Errorf("MatchSender() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMatchSenderNilCondition checks that a missing condition never matches.
func TestMatchSenderNilCondition(t *testing.T) {
	m := NewMatcher()
	if m.MatchSender(nil, "anyone@example.com") {
		t.Error("nil condition should not match")
	}
}

// TestMatchSubject covers any/all keyword logic.
func TestMatchSubject(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		name    string
		cond    *domain.SubjectCondition
		subject string
		want    bool
	}{
		{
			name:    "any logic matches one keyword",
			cond:    &domain.SubjectCondition{Keywords: []string{"invoice", "receipt"}, Logic: domain.LogicAny},
			subject: "Your INVOICE for March",
			want:    true,
		},
		{
			name:    "any logic fails with no keyword",
			cond:    &domain.SubjectCondition{Keywords: []string{"invoice", "receipt"}, Logic: domain.LogicAny},
			subject: "Team standup notes",
			want:    false,
		},
		{
			name:    "all logic requires every keyword",
			cond:    &domain.SubjectCondition{Keywords: []string{"invoice", "overdue"}, Logic: domain.LogicAll},
			subject: "Overdue invoice reminder",
			want:    true,
		},
		{
			name:    "all logic fails on a missing keyword",
			cond:    &domain.SubjectCondition{Keywords: []string{"invoice", "overdue"}, Logic: domain.LogicAll},
			subject: "Invoice attached",
			want:    false,
		},
		{
			name:    "empty keywords never match",
			cond:    &domain.SubjectCondition{Keywords: nil, Logic: domain.LogicAny},
			subject: "anything",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.MatchSubject(tt.cond, tt.subject); got != tt.want {
				t.Errorf("MatchSubject() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMatchBody checks OR semantics over body keywords.
func TestMatchBody(t *testing.T) {
	m := NewMatcher()

	cond := &domain.BodyCondition{Keywords: []string{"unsubscribe", "流水号"}}
	if !m.MatchBody(cond, "Click here to UNSUBSCRIBE from this list") {
		t.Error("expected body keyword hit")
	}
	if !m.MatchBody(cond, "付款流水号: 123456") {
		t.Error("expected CJK body keyword hit")
	}
	if m.MatchBody(cond, "nothing relevant here") {
		t.Error("expected no hit")
	}
}

// TestValidatePattern checks pattern compilation per mode.
func TestValidatePattern(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		name    string
		cond    *domain.SenderCondition
		wantErr bool
	}{
		{"exact never fails", &domain.SenderCondition{Pattern: "([", Mode: domain.MatchExact}, false},
		{"valid regex", &domain.SenderCondition{Pattern: `^a+@b\.com$`, Mode: domain.MatchRegex}, false},
		{"invalid regex", &domain.SenderCondition{Pattern: `([`, Mode: domain.MatchRegex}, true},
		{"wildcard with regex metachars", &domain.SenderCondition{Pattern: "a+b*@c.com", Mode: domain.MatchWildcard}, false},
		{"nil condition", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidatePattern(tt.cond)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePattern() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestExtractDomain covers edge cases in address parsing.
func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"user@Example.COM", "example.com"},
		{"no-at-sign", ""},
		{"trailing@", ""},
		{"a@b@c.com", "c.com"},
	}
	for _, tt := range tests {
		if got := ExtractDomain(tt.email); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
