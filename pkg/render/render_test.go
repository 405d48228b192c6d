package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nous-labs/folio/pkg/catalog"
)

type projects map[string]catalog.Project

func (p projects) Project(id string) (catalog.Project, bool) {
	pr, ok := p[id]
	return pr, ok
}

var known = projects{
	"alpha": {ID: "alpha", Title: "Alpha", Description: "First."},
	"beta":  {ID: "beta", Title: "Beta", Stats: []catalog.Stat{{Label: "Stars", Value: "42"}}},
}

func summarize(segs []Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		if s.IsProject() {
			out[i] = "project:" + s.Project.ID
		} else {
			out[i] = "text:" + s.Text
		}
	}
	return out
}

func TestSegments(t *testing.T) {
	r := New(known)
	tests := []struct {
		text string
		want []string
	}{
		{"", []string{"text:"}},
		{"no embeds", []string{"text:no embeds"}},
		{"see {{DISPLAY_PROJECT:alpha}} now", []string{"text:see ", "project:alpha", "text: now"}},
		{"{{DISPLAY_PROJECT:alpha}}{{DISPLAY_PROJECT:beta}}", []string{"text:", "project:alpha", "text:", "project:beta", "text:"}},
		{"a {{DISPLAY_PROJECT:ghost}} b", []string{"text:a ", "text: b"}},
		{"bad {{DISPLAY_PROJECT:not-an-id}}", []string{"text:bad {{DISPLAY_PROJECT:not-an-id}}"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, summarize(r.Collect(tt.text))); diff != "" {
			t.Errorf("Collect(%q) mismatch (-want +got):\n%s", tt.text, diff)
		}
	}
}

func TestSegmentsStopEarly(t *testing.T) {
	r := New(known)
	n := 0
	for range r.Segments("{{DISPLAY_PROJECT:alpha}} x {{DISPLAY_PROJECT:beta}}") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d times, want 2", n)
	}
}

func TestPlainText(t *testing.T) {
	r := New(known)
	got := r.PlainText("Have a look: {{DISPLAY_PROJECT:beta}}{{DISPLAY_PROJECT:ghost}}")
	for _, want := range []string{"Have a look:", "[Beta]", "Stars: 42"} {
		if !strings.Contains(got, want) {
			t.Errorf("PlainText() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "DISPLAY_PROJECT") {
		t.Errorf("PlainText() left an embed token: %q", got)
	}
}
