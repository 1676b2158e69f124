// Package hints assembles the bias prompt handed to speech recognition.
// The hint is a bounded, deduplicated list of vocabulary: terms from an
// optional travel glossary plus keywords harvested from recent user
// turns. Harvesting is heuristic and pluggable.
package hints

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"tabitalk/internal/domain"
)

// Harvester extracts candidate keywords from one turn of text.
type Harvester interface {
	Keywords(text string) []string
}

// Strategy builds transcription hints from glossary terms and recent
// conversation keywords.
type Strategy struct {
	glossary  []string
	harvester Harvester
	maxLen    int
}

// NewStrategy constructs a hint strategy. glossaryPath may be empty or
// missing; the glossary is then skipped.
func NewStrategy(glossaryPath string, maxLen int) (*Strategy, error) {
	return NewStrategyWithHarvester(glossaryPath, maxLen, defaultHarvester())
}

// NewStrategyWithHarvester allows harvester replacement without
// strategy changes.
func NewStrategyWithHarvester(glossaryPath string, maxLen int, harvester Harvester) (*Strategy, error) {
	if maxLen <= 0 {
		maxLen = 220
	}
	if harvester == nil {
		harvester = defaultHarvester()
	}

	glossary, err := loadGlossary(glossaryPath)
	if err != nil {
		return nil, err
	}

	return &Strategy{glossary: glossary, harvester: harvester, maxLen: maxLen}, nil
}

// Hint implements ports.HintStrategy. Recent turns are scanned newest
// last; only user turns contribute keywords.
func (s *Strategy) Hint(recent []domain.Turn) string {
	terms := append([]string(nil), s.glossary...)
	for _, turn := range recent {
		if turn.Role != domain.RoleUser || turn.Pending {
			continue
		}
		terms = append(terms, s.harvester.Keywords(turn.Text)...)
	}

	terms = lo.Uniq(lo.Filter(terms, func(term string, _ int) bool {
		return strings.TrimSpace(term) != ""
	}))

	var b strings.Builder
	for _, term := range terms {
		sep := 0
		if b.Len() > 0 {
			sep = len(", ")
		}
		if b.Len()+sep+len(term) > s.maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(term)
	}
	return b.String()
}

// regexHarvester picks out CJK runs and capitalized Latin words, the
// token shapes place and transit names tend to take.
type regexHarvester struct {
	patterns []*regexp.Regexp
}

func defaultHarvester() Harvester {
	return &regexHarvester{patterns: []*regexp.Regexp{
		regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}ー]{2,}`),
		regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`),
	}}
}

func (h *regexHarvester) Keywords(text string) []string {
	var keywords []string
	for _, pattern := range h.patterns {
		keywords = append(keywords, pattern.FindAllString(text, -1)...)
	}
	return keywords
}
