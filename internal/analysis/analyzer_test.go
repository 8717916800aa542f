package analysis

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRuleAnalyzer_Analyze(t *testing.T) {
	t.Run("scores sections skills and length", func(t *testing.T) {
		rules := &RuleSet{
			Sections: []SectionRule{
				{Name: "experience", Keywords: []string{"experience"}, Points: 50},
			},
			Skills: []SkillRule{
				{Name: "go", Aliases: []string{"golang"}, Points: 30},
			},
			Length: LengthRule{MinWords: 1, MaxWords: 100, Points: 20},
		}
		a := NewRuleAnalyzer(rules)

		result := a.Analyze("Work Experience building services in Go")
		if result.Score != 100 {
			t.Errorf("expected score 100, got %v", result.Score)
		}
		if !reflect.DeepEqual(result.Sections, []string{"experience"}) {
			t.Errorf("unexpected sections: %v", result.Sections)
		}
		if !reflect.DeepEqual(result.Skills, []string{"go"}) {
			t.Errorf("unexpected skills: %v", result.Skills)
		}
		if result.WordCount != 6 {
			t.Errorf("expected 6 words, got %d", result.WordCount)
		}
	})

	t.Run("partial match scores partially", func(t *testing.T) {
		rules := &RuleSet{
			Sections: []SectionRule{
				{Name: "experience", Keywords: []string{"experience"}, Points: 50},
			},
			Skills: []SkillRule{
				{Name: "go", Points: 30},
			},
			Length: LengthRule{MinWords: 1, MaxWords: 100, Points: 20},
		}
		a := NewRuleAnalyzer(rules)

		result := a.Analyze("experience section but no relevant keywords")
		if result.Score != 70 {
			t.Errorf("expected score 70, got %v", result.Score)
		}
		if len(result.Skills) != 0 {
			t.Errorf("expected no skills, got %v", result.Skills)
		}
	})

	t.Run("matches whole words only", func(t *testing.T) {
		rules := &RuleSet{
			Skills: []SkillRule{{Name: "go", Points: 10}},
		}
		a := NewRuleAnalyzer(rules)

		if got := a.Analyze("I googled the problem"); len(got.Skills) != 0 {
			t.Errorf("substring must not match a skill, got %v", got.Skills)
		}
		if got := a.Analyze("services written in Go since 2019"); len(got.Skills) != 1 {
			t.Errorf("whole word should match, got %v", got.Skills)
		}
	})

	t.Run("matches aliases", func(t *testing.T) {
		a := NewRuleAnalyzer(nil)

		result := a.Analyze("Golang and k8s in production, plus Amazon Web Services")
		want := map[string]bool{"go": true, "kubernetes": true, "aws": true}
		for _, s := range result.Skills {
			if !want[s] {
				t.Errorf("unexpected skill %q", s)
			}
			delete(want, s)
		}
		if len(want) != 0 {
			t.Errorf("skills not matched via aliases: %v", want)
		}
	})

	t.Run("empty text scores zero", func(t *testing.T) {
		a := NewRuleAnalyzer(nil)

		result := a.Analyze("")
		if result.Score != 0 {
			t.Errorf("expected score 0, got %v", result.Score)
		}
		if result.WordCount != 0 {
			t.Errorf("expected 0 words, got %d", result.WordCount)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := NewRuleAnalyzer(nil)
		text := "Summary: Go developer. Experience with Docker, Kubernetes and SQL. Education: university."

		first := a.Analyze(text)
		second := a.Analyze(text)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("same text produced different results:\n%+v\n%+v", first, second)
		}
	})
}

func TestLoadRules(t *testing.T) {
	t.Run("loads yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		content := `sections:
  - name: experience
    keywords: [experience, employment]
    points: 40
skills:
  - name: rust
    points: 10
length:
  min_words: 100
  max_words: 900
  points: 8
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write rules file: %v", err)
		}

		rs, err := LoadRules(path)
		if err != nil {
			t.Fatalf("LoadRules failed: %v", err)
		}
		if len(rs.Sections) != 1 || rs.Sections[0].Points != 40 {
			t.Errorf("unexpected sections: %+v", rs.Sections)
		}
		if len(rs.Skills) != 1 || rs.Skills[0].Name != "rust" {
			t.Errorf("unexpected skills: %+v", rs.Skills)
		}
		if rs.Length.MinWords != 100 || rs.Length.MaxWords != 900 {
			t.Errorf("unexpected length rule: %+v", rs.Length)
		}
	})

	t.Run("empty path returns defaults", func(t *testing.T) {
		rs, err := LoadRules("")
		if err != nil {
			t.Fatalf("LoadRules failed: %v", err)
		}
		if len(rs.Sections) == 0 || len(rs.Skills) == 0 {
			t.Error("default rules should define sections and skills")
		}
		if rs.maxPoints() <= 0 {
			t.Error("default rules should award points")
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := LoadRules("/nonexistent/rules.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("empty rule set errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("length:\n  points: 5\n"), 0644); err != nil {
			t.Fatalf("failed to write rules file: %v", err)
		}
		if _, err := LoadRules(path); err == nil {
			t.Error("expected error for rule set with no sections or skills")
		}
	})
}
