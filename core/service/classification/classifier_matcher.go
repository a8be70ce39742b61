// Package classification implements the rule-first classification cascade.
package classification

import (
	"regexp"
	"strings"
	"sync"

	"classifier_server/core/domain"
)

// =============================================================================
// Pattern Matcher
// =============================================================================

// Matcher evaluates rule conditions against email fields. All comparisons
// are case-insensitive. A regex pattern that fails to compile never matches;
// it does not abort evaluation of other rules.
type Matcher struct {
	mu      sync.RWMutex
	regexes map[string]*compiledPattern // pattern cache, keyed by raw pattern
}

type compiledPattern struct {
	re  *regexp.Regexp
	bad bool
}

// NewMatcher creates a matcher with an empty pattern cache.
func NewMatcher() *Matcher {
	return &Matcher{
		regexes: make(map[string]*compiledPattern),
	}
}

// MatchSender reports whether the sender address satisfies the condition.
func (m *Matcher) MatchSender(cond *domain.SenderCondition, sender string) bool {
	if cond == nil || strings.TrimSpace(cond.Pattern) == "" {
		return false
	}

	senderLower := strings.ToLower(strings.TrimSpace(sender))
	patternLower := strings.ToLower(strings.TrimSpace(cond.Pattern))

	switch cond.Mode {
	case domain.MatchExact:
		return senderLower == patternLower

	case domain.MatchContains:
		return strings.Contains(senderLower, patternLower)

	case domain.MatchDomain:
		senderDomain := ExtractDomain(senderLower)
		if senderDomain == "" {
			return false
		}
		pattern := strings.TrimPrefix(patternLower, "@")
		return senderDomain == pattern || strings.HasSuffix(senderDomain, "."+pattern)

	case domain.MatchWildcard:
		re := m.compile(wildcardToRegex(patternLower))
		return re != nil && re.MatchString(senderLower)

	case domain.MatchRegex:
		re := m.compile("(?i)" + cond.Pattern)
		return re != nil && re.MatchString(senderLower)
	}

	return false
}

// MatchSubject reports whether the subject satisfies the keyword condition.
func (m *Matcher) MatchSubject(cond *domain.SubjectCondition, subject string) bool {
	if cond == nil || len(cond.Keywords) == 0 {
		return false
	}

	subjectLower := strings.ToLower(subject)

	if cond.Logic == domain.LogicAll {
		for _, kw := range cond.Keywords {
			if !strings.Contains(subjectLower, strings.ToLower(kw)) {
				return false
			}
		}
		return true
	}

	for _, kw := range cond.Keywords {
		if strings.Contains(subjectLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// MatchBody reports whether any body keyword occurs in the text.
func (m *Matcher) MatchBody(cond *domain.BodyCondition, body string) bool {
	if cond == nil || len(cond.Keywords) == 0 {
		return false
	}

	bodyLower := strings.ToLower(body)
	for _, kw := range cond.Keywords {
		if strings.Contains(bodyLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ValidatePattern checks whether a sender pattern compiles for its mode.
// Only wildcard and regex modes can fail.
func (m *Matcher) ValidatePattern(cond *domain.SenderCondition) error {
	if cond == nil {
		return nil
	}
	switch cond.Mode {
	case domain.MatchWildcard:
		_, err := regexp.Compile(wildcardToRegex(strings.ToLower(cond.Pattern)))
		return err
	case domain.MatchRegex:
		_, err := regexp.Compile("(?i)" + cond.Pattern)
		return err
	}
	return nil
}

// compile returns the cached compiled regex, or nil if the pattern is
// invalid. Failed compilations are cached too so broken rules stay cheap.
func (m *Matcher) compile(expr string) *regexp.Regexp {
	m.mu.RLock()
	cached, ok := m.regexes[expr]
	m.mu.RUnlock()
	if ok {
		if cached.bad {
			return nil
		}
		return cached.re
	}

	re, err := regexp.Compile(expr)

	m.mu.Lock()
	if err != nil {
		m.regexes[expr] = &compiledPattern{bad: true}
	} else {
		m.regexes[expr] = &compiledPattern{re: re}
	}
	m.mu.Unlock()

	if err != nil {
		return nil
	}
	return re
}

// wildcardToRegex converts a glob pattern (* and ?) to an anchored,
// case-insensitive regular expression.
func wildcardToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, c := range pattern {
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// ExtractDomain returns the lowercase domain part of an address, or "" when
// the address has no @.
func ExtractDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
