package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	profile := writeFile(t, dir, "me.json", `{
		"personal": {"name": "Ada Lovelace", "contact": {"email": "ada@example.com"}},
		"notable_metrics": {"years_of_experience": 12}
	}`)
	projects := writeFile(t, dir, "projects.json", `[
		{"id": "alpha", "title": "Alpha", "description": "A compiler", "githubUrl": "https://github.com/x/alpha", "stats": [{"label": "Stars", "value": "10"}]},
		{"id": "beta", "title": "Beta", "description": "A browser extension", "tags": ["ai"], "stats": []}
	]`)

	c, err := Load(profile, projects)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Profile.FirstName() != "Ada" {
		t.Errorf("FirstName() = %q, want Ada", c.Profile.FirstName())
	}
	if got := c.Profile.NotableMetrics.YearsOfExperience.String(); got != "12" {
		t.Errorf("years = %q, want 12", got)
	}
	p, ok := c.Project("alpha")
	if !ok {
		t.Fatal("Project(alpha) not found")
	}
	if p.GitHubURL != "https://github.com/x/alpha" {
		t.Errorf("GitHubURL = %q", p.GitHubURL)
	}
	if _, ok := c.Project("ghost"); ok {
		t.Error("Project(ghost) found")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	profile := writeFile(t, dir, "me.yaml", `
personal:
  name: Grace Hopper
notable_metrics:
  years_of_experience: "40+"
interests_and_hobbies:
  gaming:
    favorite_games: [Go, Chess]
`)
	projects := writeFile(t, dir, "projects.yml", `
- id: cobol
  title: COBOL
  live_url: https://example.com/cobol
`)

	c, err := Load(profile, projects)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Profile.NotableMetrics.YearsOfExperience.String(); got != "40+" {
		t.Errorf("years = %q, want 40+", got)
	}
	if diff := cmp.Diff([]string{"Go", "Chess"}, c.Profile.InterestsAndHobbies.Gaming.FavoriteGames); diff != "" {
		t.Errorf("games mismatch (-want +got):\n%s", diff)
	}
	p, ok := c.Project("cobol")
	if !ok || p.LiveURL != "https://example.com/cobol" {
		t.Errorf("Project(cobol) = %+v, %v", p, ok)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(Profile{}, []Project{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, err := New(Profile{}, []Project{{Title: "nameless"}}); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestSearch(t *testing.T) {
	c, err := New(Profile{}, []Project{
		{ID: "alpha", Title: "Alpha", Description: "A compiler for robots"},
		{ID: "beta", Title: "Beta", Description: "A browser extension with AI", Tags: []string{"robots"}},
		{ID: "gamma", Title: "Gamma", Description: "Nothing relevant"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var ids []string
	for _, p := range c.Search("AI robots", 0) {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"beta", "alpha"}, ids); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}
	if got := c.Search("robots", 1); len(got) != 1 {
		t.Errorf("Search limit 1 returned %d", len(got))
	}
	if got := c.Search("   ", 5); got != nil {
		t.Errorf("blank query returned %v", got)
	}
}
