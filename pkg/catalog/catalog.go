// Package catalog holds the static records the assistant talks about:
// the site owner's profile and the list of projects.
//
// Both are loaded once at startup from JSON or YAML files and are never
// mutated afterwards, so a *Catalog is safe for concurrent readers.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog bundles the profile and the project list.
type Catalog struct {
	Profile  Profile
	projects []Project
	byID     map[string]int
}

// New builds a catalog from already decoded records.
// Duplicate project ids are rejected.
func New(profile Profile, projects []Project) (*Catalog, error) {
	c := &Catalog{
		Profile:  profile,
		projects: make([]Project, 0, len(projects)),
		byID:     make(map[string]int, len(projects)),
	}
	for _, p := range projects {
		if p.ID == "" {
			return nil, fmt.Errorf("project %q has no id", p.Title)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate project id %q", p.ID)
		}
		c.byID[p.ID] = len(c.projects)
		c.projects = append(c.projects, p)
	}
	return c, nil
}

// Load reads the profile and projects files. Either path may be empty,
// in which case the corresponding record is left empty.
func Load(profilePath, projectsPath string) (*Catalog, error) {
	var profile Profile
	if profilePath != "" {
		if err := decodeFile(profilePath, &profile); err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
	}

	var projects []Project
	if projectsPath != "" {
		if err := decodeFile(projectsPath, &projects); err != nil {
			return nil, fmt.Errorf("load projects: %w", err)
		}
	}

	c, err := New(profile, projects)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded",
		"profile", profilePath,
		"projects", len(c.projects),
		"owner", profile.Personal.Name,
	)
	return c, nil
}

// decodeFile picks the decoder from the file extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

// Project returns the project with the given id.
func (c *Catalog) Project(id string) (Project, bool) {
	if c == nil {
		return Project{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Project{}, false
	}
	return c.projects[i], true
}

// Projects returns a copy of all projects in file order.
func (c *Catalog) Projects() []Project {
	if c == nil {
		return nil
	}
	out := make([]Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// Search does a plain keyword match over project text and returns
// projects ordered by the number of query terms they contain.
// It is the keyword half of the hybrid project search.
func (c *Catalog) Search(query string, limit int) []Project {
	terms := strings.Fields(strings.ToLower(query))
	if c == nil || len(terms) == 0 {
		return nil
	}

	type hit struct {
		idx   int
		score int
	}
	var hits []hit
	for i, p := range c.projects {
		doc := strings.ToLower(p.SearchText())
		score := 0
		for _, t := range terms {
			if strings.Contains(doc, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Project, len(hits))
	for i, h := range hits {
		out[i] = c.projects[h.idx]
	}
	return out
}
