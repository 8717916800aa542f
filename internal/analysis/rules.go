package analysis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSet is the YAML configuration driving the rule-based analyzer:
// which section headings earn points, which skill keywords to look for,
// and how document length is scored.
type RuleSet struct {
	Sections []SectionRule `json:"sections" yaml:"sections"`
	Skills   []SkillRule   `json:"skills" yaml:"skills"`
	Length   LengthRule    `json:"length" yaml:"length"`
}

// SectionRule awards points when any of its keywords appears in the text.
type SectionRule struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Points   float64  `json:"points" yaml:"points"`
}

// SkillRule awards points when the skill name or one of its aliases
// appears in the text.
type SkillRule struct {
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Points  float64  `json:"points" yaml:"points"`
}

// LengthRule awards points when the word count falls inside the band.
type LengthRule struct {
	MinWords int     `json:"minWords" yaml:"min_words"`
	MaxWords int     `json:"maxWords" yaml:"max_words"`
	Points   float64 `json:"points" yaml:"points"`
}

// maxPoints is the highest score the rule set can award. Scores are
// normalized against it so rule files of any size land on a 0-100 scale.
func (rs *RuleSet) maxPoints() float64 {
	var total float64
	for _, s := range rs.Sections {
		total += s.Points
	}
	for _, s := range rs.Skills {
		total += s.Points
	}
	total += rs.Length.Points
	return total
}

// LoadRules reads a rule set from a YAML file. An empty path returns the
// built-in defaults.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if len(rs.Sections) == 0 && len(rs.Skills) == 0 {
		return nil, fmt.Errorf("rules file %s defines no sections or skills", path)
	}
	return &rs, nil
}

// DefaultRules is the built-in rule set used when no rules file is
// configured. Weights favor structure over any single keyword.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Sections: []SectionRule{
			{Name: "summary", Keywords: []string{"summary", "objective", "profile"}, Points: 10},
			{Name: "experience", Keywords: []string{"experience", "employment", "work history"}, Points: 15},
			{Name: "education", Keywords: []string{"education", "degree", "university"}, Points: 10},
			{Name: "skills", Keywords: []string{"skills", "technologies", "competencies"}, Points: 10},
			{Name: "projects", Keywords: []string{"projects", "portfolio"}, Points: 5},
			{Name: "contact", Keywords: []string{"email", "phone", "linkedin"}, Points: 5},
		},
		Skills: []SkillRule{
			{Name: "go", Aliases: []string{"golang"}, Points: 4},
			{Name: "python", Points: 4},
			{Name: "java", Points: 4},
			{Name: "javascript", Aliases: []string{"typescript"}, Points: 4},
			{Name: "sql", Aliases: []string{"postgresql", "mysql"}, Points: 4},
			{Name: "docker", Points: 3},
			{Name: "kubernetes", Aliases: []string{"k8s"}, Points: 3},
			{Name: "aws", Aliases: []string{"amazon web services"}, Points: 3},
			{Name: "git", Points: 2},
			{Name: "linux", Points: 2},
		},
		Length: LengthRule{MinWords: 150, MaxWords: 1500, Points: 12},
	}
}
