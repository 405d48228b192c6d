// Package render splits display text around inline project embeds of the
// form {{DISPLAY_PROJECT:<id>}}.
package render

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/nous-labs/folio/pkg/catalog"
)

var embedRe = regexp.MustCompile(`\{\{DISPLAY_PROJECT:(\w+)\}\}`)

// Segment is either a run of text or a resolved project card.
type Segment struct {
	Text    string           `json:"text,omitempty"`
	Project *catalog.Project `json:"project,omitempty"`
}

// IsProject reports whether the segment is a project card.
func (s Segment) IsProject() bool { return s.Project != nil }

// Lookup resolves project ids. *catalog.Catalog satisfies it.
type Lookup interface {
	Project(id string) (catalog.Project, bool)
}

type Renderer struct {
	projects Lookup
}

func New(projects Lookup) *Renderer {
	return &Renderer{projects: projects}
}

// Segments yields text and project segments in order. A text segment is
// emitted before and after every embed, even when empty. Embeds whose id
// does not resolve yield nothing.
func (r *Renderer) Segments(text string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		last := 0
		for _, m := range embedRe.FindAllStringSubmatchIndex(text, -1) {
			if !yield(Segment{Text: text[last:m[0]]}) {
				return
			}
			last = m[1]
			p, ok := r.projects.Project(text[m[2]:m[3]])
			if !ok {
				continue
			}
			if !yield(Segment{Project: &p}) {
				return
			}
		}
		yield(Segment{Text: text[last:]})
	}
}

// Collect gathers Segments into a slice.
func (r *Renderer) Collect(text string) []Segment {
	var out []Segment
	for s := range r.Segments(text) {
		out = append(out, s)
	}
	return out
}

// PlainText renders text for transports without cards: each resolved
// project becomes a short text card and unresolved embeds disappear.
func (r *Renderer) PlainText(text string) string {
	var b strings.Builder
	for s := range r.Segments(text) {
		if !s.IsProject() {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString(Card(*s.Project))
	}
	return strings.TrimSpace(b.String())
}

// Card formats a project as a few lines of text.
func Card(p catalog.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s]", p.Title)
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s", p.Description)
	}
	for _, s := range p.Stats {
		fmt.Fprintf(&b, "\n  %s: %s", s.Label, s.Value)
	}
	if p.GitHubURL != "" {
		fmt.Fprintf(&b, "\n  %s", p.GitHubURL)
	}
	if p.LiveURL != "" {
		fmt.Fprintf(&b, "\n  %s", p.LiveURL)
	}
	b.WriteString("\n")
	return b.String()
}
