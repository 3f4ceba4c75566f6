package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/datatypes"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCatalogFiles(t *testing.T) {
	skillsPath := writeFile(t, "skills.yaml", `
skills:
  - id: recursion
    name: Recursion
  - id: array_traversal
    name: Array Traversal
  - id: recursion
    name: Duplicate
`)
	skills, err := LoadSkillsFile(skillsPath)
	if err != nil {
		t.Fatalf("LoadSkillsFile: %v", err)
	}
	cat := NewSkillCatalog(skills)
	if ids := cat.IDs(); len(ids) != 2 || ids[0] != "array_traversal" || ids[1] != "recursion" {
		t.Fatalf("catalog ids: %v", ids)
	}
	if !cat.Has("recursion") || cat.Has("graphs") {
		t.Fatalf("Has misreports membership")
	}

	problemsPath := writeFile(t, "problems.yaml", `
problems:
  - id: two-sum
    title: Two Sum
    primary_skill: array_traversal
    skills: [recursion]
    difficulty: 0.3
    test_cases:
      - input: "1 2\n"
        output: "3"
`)
	problems, err := LoadProblemsFile(problemsPath)
	if err != nil {
		t.Fatalf("LoadProblemsFile: %v", err)
	}
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	p := problems[0]
	if p.PrimarySkill != "array_traversal" || len(p.Skills) != 2 || p.Skills[0] != "array_traversal" {
		t.Fatalf("primary skill not folded into skills: %+v", p)
	}
	if len(p.TestCases) != 1 || p.TestCases[0].Output != "3" {
		t.Fatalf("test cases not loaded: %+v", p.TestCases)
	}

	if _, err := LoadSkillsFile(writeFile(t, "bad.yaml", "skills:\n  - name: nameless\n")); err == nil {
		t.Fatalf("expected error for a skill without id")
	}
}

func TestSeedProblems(t *testing.T) {
	h := newHarness(t)
	if err := h.catalogSvc.SyncSkills(h.dbc); err != nil {
		t.Fatalf("SyncSkills: %v", err)
	}
	stored, err := h.repos.Skill.List(h.dbc)
	if err != nil || len(stored) != len(testSkills) {
		t.Fatalf("skills not synced: %v %d", err, len(stored))
	}

	good := &types.Problem{ID: "p1", PrimarySkill: "recursion", Skills: datatypes.NewJSONSlice([]string{"recursion"}), Difficulty: 0.4}
	if err := h.catalogSvc.SeedProblems(h.dbc, []*types.Problem{good}); err != nil {
		t.Fatalf("SeedProblems: %v", err)
	}
	got, err := h.catalogSvc.GetProblem(h.dbc, "p1")
	if err != nil || got.Difficulty != 0.4 {
		t.Fatalf("GetProblem: %+v %v", got, err)
	}
	if _, err := h.catalogSvc.GetProblem(h.dbc, "nope"); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	bad := []*types.Problem{
		{ID: "hard", PrimarySkill: "recursion", Difficulty: 1.2},
		{ID: "alien", PrimarySkill: "telepathy", Difficulty: 0.5},
		{ID: "orphan", Difficulty: 0.5},
	}
	for _, p := range bad {
		if err := h.catalogSvc.SeedProblems(h.dbc, []*types.Problem{p}); !errors.Is(err, apierr.ErrValidation) {
			t.Fatalf("SeedProblems(%s): expected validation error, got %v", p.ID, err)
		}
	}
}

// The shipped configs must load and agree with each other.
func TestShippedConfigs(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")

	skills, err := LoadSkillsFile(filepath.Join(dir, "skills.yaml"))
	if err != nil {
		t.Fatalf("skills: %v", err)
	}
	catalog := NewSkillCatalog(skills)

	problems, err := LoadProblemsFile(filepath.Join(dir, "problems.yaml"))
	if err != nil {
		t.Fatalf("problems: %v", err)
	}
	if len(problems) == 0 {
		t.Fatalf("problem bank is empty")
	}
	seen := map[string]bool{}
	for _, p := range problems {
		if seen[p.ID] {
			t.Fatalf("duplicate problem id %s", p.ID)
		}
		seen[p.ID] = true
		if unknown := catalog.Unknown(p.Skills); len(unknown) > 0 {
			t.Fatalf("problem %s uses unknown skills %v", p.ID, unknown)
		}
		if p.Difficulty < 0 || p.Difficulty > 1 || len(p.TestCases) == 0 {
			t.Fatalf("problem %s: difficulty %v, %d test cases", p.ID, p.Difficulty, len(p.TestCases))
		}
	}

	tables, err := mastery.LoadTables(filepath.Join(dir, "bkt_params.yaml"))
	if err != nil {
		t.Fatalf("bkt params: %v", err)
	}
	if _, err := mastery.NewEngine(tables); err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for skill, reqs := range tables.Prerequisites {
		if unknown := catalog.Unknown(append([]string{skill}, reqs...)); len(unknown) > 0 {
			t.Fatalf("prerequisites for %s reference unknown skills %v", skill, unknown)
		}
	}
}
