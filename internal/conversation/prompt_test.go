package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nous-labs/folio/pkg/catalog"
)

type fakeSearcher struct {
	projects []catalog.Project
	err      error
	calls    int
}

func (f *fakeSearcher) SearchProjects(ctx context.Context, query string, limit int) ([]catalog.Project, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("search called without a deadline")
	}
	return f.projects, f.err
}

func TestPromptIncludesCatalogAndTools(t *testing.T) {
	pb := NewPromptBuilder(testCatalog(t), nil)
	got := pb.Build(context.Background(), "hello")

	for _, want := range []string{
		"Ada Lovelace's portfolio website",
		`"id": "weaszel"`,
		"{{TOOL:open_artifact:type=<type>",
		"{{TOOL:close_artifact}}",
		"{{DISPLAY_PROJECT:<project_id>}}",
		"{{TOOL:answer_about_me:topic=<topic>",
		"**Weaszel** URL: https://weaszel.com/",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPromptRelatedProjects(t *testing.T) {
	s := &fakeSearcher{projects: []catalog.Project{{ID: "genesis", Title: "Genesis", Description: "Realtime chat"}}}
	pb := NewPromptBuilder(testCatalog(t), s)

	got := pb.Build(context.Background(), "what realtime apps have you built?")
	if !strings.Contains(got, "## RELEVANT PROJECTS") || !strings.Contains(got, "- Genesis (id: genesis): Realtime chat") {
		t.Errorf("related block missing:\n%s", got)
	}

	pb.Build(context.Background(), "hi")
	if s.calls != 1 {
		t.Errorf("search called %d times, want 1 (short text skipped)", s.calls)
	}
}

func TestPromptSearchFailureFallsBack(t *testing.T) {
	s := &fakeSearcher{err: errors.New("index down")}
	pb := NewPromptBuilder(testCatalog(t), s)
	base := NewPromptBuilder(testCatalog(t), nil).Build(context.Background(), "")

	if got := pb.Build(context.Background(), "tell me about the browser extension"); got != base {
		t.Error("prompt changed despite search failure")
	}
}

func TestPromptWithoutCatalog(t *testing.T) {
	got := NewPromptBuilder(nil, nil).Build(context.Background(), "")
	if !strings.Contains(got, "the site owner's portfolio website") || !strings.Contains(got, "Projects:\n[]") {
		t.Errorf("unexpected prompt:\n%s", got)
	}
}
