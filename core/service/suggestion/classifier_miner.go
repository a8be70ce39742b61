// Package suggestion mines rule candidates from manual classification
// behavior and manages their review lifecycle.
package suggestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"classifier_server/core/domain"
	"classifier_server/core/service/classification"
	"classifier_server/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Suggestion Miner
// =============================================================================

// MinerConfig holds the mining thresholds. A pattern needs at least the
// threshold number of agreeing observations before a suggestion is emitted.
type MinerConfig struct {
	SenderThreshold  int // Default: 3
	DomainThreshold  int // Default: 5
	KeywordThreshold int // Default: 4

	// LookbackDays bounds the analysis window.
	LookbackDays int // Default: 30
}

// DefaultMinerConfig returns the default thresholds.
func DefaultMinerConfig() *MinerConfig {
	return &MinerConfig{
		SenderThreshold:  3,
		DomainThreshold:  5,
		KeywordThreshold: 4,
		LookbackDays:     30,
	}
}

// Miner analyzes recent manual corrections and produces pending suggestions.
type Miner struct {
	config   *MinerConfig
	histRepo domain.HistoryRepository
	suggRepo domain.SuggestionRepository
	ruleRepo domain.RuleRepository
}

// NewMiner creates a miner.
func NewMiner(histRepo domain.HistoryRepository, suggRepo domain.SuggestionRepository, ruleRepo domain.RuleRepository, config *MinerConfig) *Miner {
	if config == nil {
		config = DefaultMinerConfig()
	}
	return &Miner{
		config:   config,
		histRepo: histRepo,
		suggRepo: suggRepo,
		ruleRepo: ruleRepo,
	}
}

// patternStats accumulates observations for one candidate pattern.
type patternStats struct {
	total      int
	byCategory map[domain.EmailCategory]int
}

func newPatternStats() *patternStats {
	return &patternStats{byCategory: make(map[domain.EmailCategory]int)}
}

func (p *patternStats) add(category domain.EmailCategory) {
	p.total++
	p.byCategory[category]++
}

// majority returns the dominant category and its count.
func (p *patternStats) majority() (domain.EmailCategory, int) {
	var best domain.EmailCategory
	bestCount := 0
	// Deterministic tie-break: lexicographic category order.
	categories := make([]domain.EmailCategory, 0, len(p.byCategory))
	for c := range p.byCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, c := range categories {
		if p.byCategory[c] > bestCount {
			best = c
			bestCount = p.byCategory[c]
		}
	}
	return best, bestCount
}

// Mine runs one pass for an owner: collect recent manual corrections,
// aggregate per sender, domain, and subject keyword, and store a pending
// suggestion for each pattern whose majority category clears its threshold.
// Confidence is the agreeing fraction (majority count / total observations).
// Returns the number of suggestions created.
func (m *Miner) Mine(ctx context.Context, ownerID uuid.UUID, overrides *MinerConfig) (int, error) {
	cfg := m.effectiveConfig(overrides)
	since := time.Now().AddDate(0, 0, -cfg.LookbackDays)

	samples, err := m.histRepo.ManualCorrections(ctx, ownerID, since)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, nil
	}

	senders := make(map[string]*patternStats)
	domains := make(map[string]*patternStats)
	keywords := make(map[string]*patternStats)

	for _, sample := range samples {
		sender := strings.ToLower(strings.TrimSpace(sample.Sender))
		if sender != "" {
			stat, ok := senders[sender]
			if !ok {
				stat = newPatternStats()
				senders[sender] = stat
			}
			stat.add(sample.Category)
		}
		if d := classification.ExtractDomain(sender); d != "" {
			stat, ok := domains[d]
			if !ok {
				stat = newPatternStats()
				domains[d] = stat
			}
			stat.add(sample.Category)
		}
		for _, kw := range extractKeywords(sample.Subject) {
			stat, ok := keywords[kw]
			if !ok {
				stat = newPatternStats()
				keywords[kw] = stat
			}
			stat.add(sample.Category)
		}
	}

	created := 0
	created += m.emit(ctx, ownerID, domain.SuggestSender, senders, cfg.SenderThreshold)
	created += m.emit(ctx, ownerID, domain.SuggestSenderDomain, domains, cfg.DomainThreshold)
	created += m.emit(ctx, ownerID, domain.SuggestSubjectKeyword, keywords, cfg.KeywordThreshold)

	logger.WithContext(ctx).
		WithField("samples", len(samples)).
		WithField("created", created).
		Info("mining pass finished")
	return created, nil
}

// emit stores suggestions for every pattern whose majority clears the
// threshold, skipping patterns already covered by a rule or a pending
// suggestion.
func (m *Miner) emit(ctx context.Context, ownerID uuid.UUID, typ domain.SuggestionType, stats map[string]*patternStats, threshold int) int {
	created := 0
	for pattern, stat := range stats {
		category, majority := stat.majority()
		if majority < threshold {
			continue
		}

		if exists, err := m.suggRepo.ExistsPattern(ctx, ownerID, typ, pattern); err != nil || exists {
			continue
		}
		if m.coveredByRule(ctx, ownerID, typ, pattern, category) {
			continue
		}

		s := &domain.Suggestion{
			OwnerID:     ownerID,
			Type:        typ,
			Pattern:     pattern,
			Category:    category,
			Confidence:  float64(majority) / float64(stat.total),
			SampleCount: stat.total,
			Reason:      suggestionReason(typ, pattern, category, majority),
			Status:      domain.SuggestionPending,
			CreatedAt:   time.Now(),
		}
		if _, err := m.suggRepo.Create(ctx, s); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("suggestion save failed")
			continue
		}
		created++
	}
	return created
}

// suggestionReason phrases why the pattern was suggested, in terms of what
// the user actually did.
func suggestionReason(typ domain.SuggestionType, pattern string, category domain.EmailCategory, count int) string {
	switch typ {
	case domain.SuggestSenderDomain:
		return fmt.Sprintf("%d emails from the %s domain were manually moved to %s", count, pattern, category)
	case domain.SuggestSubjectKeyword:
		return fmt.Sprintf("%d emails with %q in the subject were manually moved to %s", count, pattern, category)
	default:
		return fmt.Sprintf("%d emails from %s were manually moved to %s", count, pattern, category)
	}
}

// coveredByRule checks whether an equivalent rule already handles the
// pattern, so the user is not asked to approve what they already have.
func (m *Miner) coveredByRule(ctx context.Context, ownerID uuid.UUID, typ domain.SuggestionType, pattern string, category domain.EmailCategory) bool {
	candidate := &domain.Rule{
		OwnerID:  ownerID,
		Category: category,
	}
	switch typ {
	case domain.SuggestSender:
		candidate.Sender = &domain.SenderCondition{Pattern: pattern, Mode: domain.MatchExact}
	case domain.SuggestSenderDomain:
		candidate.Sender = &domain.SenderCondition{Pattern: pattern, Mode: domain.MatchDomain}
	case domain.SuggestSubjectKeyword:
		candidate.Subject = &domain.SubjectCondition{Keywords: []string{pattern}, Logic: domain.LogicAny}
	}
	exists, err := m.ruleRepo.ExistsSimilar(ctx, ownerID, candidate)
	return err == nil && exists
}

func (m *Miner) effectiveConfig(overrides *MinerConfig) *MinerConfig {
	cfg := *m.config
	if overrides != nil {
		if overrides.SenderThreshold > 0 {
			cfg.SenderThreshold = overrides.SenderThreshold
		}
		if overrides.DomainThreshold > 0 {
			cfg.DomainThreshold = overrides.DomainThreshold
		}
		if overrides.KeywordThreshold > 0 {
			cfg.KeywordThreshold = overrides.KeywordThreshold
		}
		if overrides.LookbackDays > 0 {
			cfg.LookbackDays = overrides.LookbackDays
		}
	}
	return &cfg
}

// =============================================================================
// Keyword extraction
// =============================================================================

var keywordPunct = []string{"，", "。", "！", "？", ",", ".", "!", "?", ":", "：", "-", "_"}

// extractKeywords splits a subject into candidate keywords: terms longer
// than two characters that are not pure digits, at most ten per subject.
func extractKeywords(subject string) []string {
	text := subject
	for _, p := range keywordPunct {
		text = strings.ReplaceAll(text, p, " ")
	}

	var keywords []string
	for _, word := range strings.Fields(text) {
		if len([]rune(word)) <= 2 || isDigits(word) {
			continue
		}
		keywords = append(keywords, strings.ToLower(word))
		if len(keywords) >= 10 {
			break
		}
	}
	return keywords
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
