package analysis

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cvlens/cvlens/internal/models"
)

// Analyzer scores extracted resume text. Implementations must be pure:
// identical text always yields an identical result.
type Analyzer interface {
	Analyze(text string) *models.AnalysisResult
}

// RuleAnalyzer is the reference Analyzer, a keyword scorer driven by a
// RuleSet. It fills every result field except ResumeID and CompletedAt,
// which the pipeline stamps.
type RuleAnalyzer struct {
	rules *RuleSet
}

// NewRuleAnalyzer builds an analyzer over the given rules. A nil rule
// set falls back to the built-in defaults.
func NewRuleAnalyzer(rules *RuleSet) *RuleAnalyzer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &RuleAnalyzer{rules: rules}
}

func (a *RuleAnalyzer) Analyze(text string) *models.AnalysisResult {
	lower := strings.ToLower(text)
	tokens := tokenize(lower)
	wordCount := len(strings.Fields(text))

	var earned float64

	var sections []string
	for _, s := range a.rules.Sections {
		for _, kw := range s.Keywords {
			if matchTerm(lower, tokens, kw) {
				sections = append(sections, s.Name)
				earned += s.Points
				break
			}
		}
	}

	var skills []string
	for _, s := range a.rules.Skills {
		if matchSkill(lower, tokens, s) {
			skills = append(skills, s.Name)
			earned += s.Points
		}
	}

	if wordCount >= a.rules.Length.MinWords && wordCount <= a.rules.Length.MaxWords {
		earned += a.rules.Length.Points
	}

	var score float64
	if total := a.rules.maxPoints(); total > 0 {
		score = math.Round(earned/total*1000) / 10
	}

	return &models.AnalysisResult{
		Score:     score,
		Summary:   buildSummary(score, len(sections), len(skills), wordCount),
		Skills:    skills,
		Sections:  sections,
		WordCount: wordCount,
	}
}

func matchSkill(lower string, tokens map[string]bool, s SkillRule) bool {
	if matchTerm(lower, tokens, s.Name) {
		return true
	}
	for _, alias := range s.Aliases {
		if matchTerm(lower, tokens, alias) {
			return true
		}
	}
	return false
}

// matchTerm matches single-word terms against whole tokens so "go" does
// not fire on "google"; multi-word terms fall back to substring search.
func matchTerm(lower string, tokens map[string]bool, term string) bool {
	term = strings.ToLower(term)
	if strings.ContainsRune(term, ' ') {
		return strings.Contains(lower, term)
	}
	return tokens[term]
}

// tokenize splits lowered text into words, keeping + and # so terms
// like c++ and c# survive as single tokens.
func tokenize(lower string) map[string]bool {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	tokens := make(map[string]bool, len(words))
	for _, w := range words {
		tokens[w] = true
	}
	return tokens
}

func buildSummary(score float64, sections, skills, wordCount int) string {
	grade := "Minimal"
	switch {
	case score >= 75:
		grade = "Strong"
	case score >= 50:
		grade = "Solid"
	case score >= 25:
		grade = "Sparse"
	}
	return fmt.Sprintf("%s resume: %d sections and %d skills recognized across %d words", grade, sections, skills, wordCount)
}
