package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nous-labs/folio/pkg/catalog"
)

const (
	relatedLimit   = 3
	relatedTimeout = 500 * time.Millisecond
	// skip the project lookup for short chatter like "hi"
	relatedMinChars = 12
)

// ProjectSearcher finds projects relevant to free text.
type ProjectSearcher interface {
	SearchProjects(ctx context.Context, query string, limit int) ([]catalog.Project, error)
}

// PromptBuilder renders the system prompt: persona, the project catalog,
// the directive reference, and optionally a short list of projects related
// to the visitor's latest message.
type PromptBuilder struct {
	base   string
	search ProjectSearcher
}

// NewPromptBuilder precomputes the static part of the prompt. search may
// be nil.
func NewPromptBuilder(c *catalog.Catalog, search ProjectSearcher) *PromptBuilder {
	owner := "the site owner"
	var projects []catalog.Project
	if c != nil {
		if c.Profile.Personal.Name != "" {
			owner = c.Profile.Personal.Name
		}
		projects = c.Projects()
	}
	if projects == nil {
		projects = []catalog.Project{}
	}
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		slog.Warn("failed to encode projects for prompt", "error", err)
		data = []byte("[]")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI assistant for %s's portfolio website.\n", owner)
	fmt.Fprintf(&b, "Your goal is to help visitors learn about %s's work, skills, and background.\n", owner)
	b.WriteString("You have access to a list of projects and can interact with the UI.\n\n")
	b.WriteString("## PORTFOLIO DATA\n")
	b.WriteString("Projects:\n")
	b.Write(data)
	b.WriteString("\n\n")
	b.WriteString(toolReference(projects))
	b.WriteString(personality)

	return &PromptBuilder{base: b.String(), search: search}
}

// Build returns the system prompt for userText.
func (pb *PromptBuilder) Build(ctx context.Context, userText string) string {
	related := pb.related(ctx, userText)
	if related == "" {
		return pb.base
	}
	return pb.base + "\n" + related
}

// Func adapts Build to a PromptFunc.
func (pb *PromptBuilder) Func() PromptFunc { return pb.Build }

func (pb *PromptBuilder) related(ctx context.Context, userText string) string {
	if pb.search == nil || len(strings.TrimSpace(userText)) < relatedMinChars {
		return ""
	}
	sctx, cancel := context.WithTimeout(ctx, relatedTimeout)
	defer cancel()

	projects, err := pb.search.SearchProjects(sctx, userText, relatedLimit)
	if err != nil {
		slog.Debug("related project search failed", "error", err)
		return ""
	}
	if len(projects) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## RELEVANT PROJECTS (for the latest message)\n")
	for _, p := range projects {
		line := fmt.Sprintf("- %s (id: %s): %s\n", p.Title, p.ID, p.Description)
		if len(line) > 200 {
			line = line[:197] + "...\n"
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func toolReference(projects []catalog.Project) string {
	var b strings.Builder
	b.WriteString(`## AVAILABLE TOOLS

You can drive the portfolio interface by writing tool tokens in your reply.

### 1. open_artifact
Opens the fullscreen artifact panel.
**Syntax:** {{TOOL:open_artifact:type=<type>,id=<id>,url=<url>,title=<title>}}

**Types:**
- type=project,id=<project_id> - detailed project view
- type=gallery - grid of photos
- type=website,url=<url> - live website preview (title is optional)
- type=contact - contact form
- type=empty - empty panel

### 2. close_artifact
Closes the artifact panel.
**Syntax:** {{TOOL:close_artifact}}

### 3. display_project (inline)
Shows a project card inside your message.
**Syntax:** {{DISPLAY_PROJECT:<project_id>}}

### 4. answer_about_me
Adds a factual answer built from the owner's profile.
**Syntax:** {{TOOL:answer_about_me:topic=<topic>,question=<question>}}
Topics: general, skills, experience, education, background, hobbies, location, contact.
`)

	var live []catalog.Project
	for _, p := range projects {
		if p.LiveURL != "" {
			live = append(live, p)
		}
	}
	if len(live) > 0 {
		b.WriteString("\n### Known Website Projects:\n")
		for _, p := range live {
			fmt.Fprintf(&b, "- **%s** URL: %s\n", p.Title, p.LiveURL)
		}
	}

	b.WriteString(`
## IMPORTANT RULES:
1. ALWAYS use the exact syntax shown above
2. Put open_artifact and close_artifact on their own line
3. Combine text with tool calls naturally
4. Only use project ids that appear in PORTFOLIO DATA
`)
	return b.String()
}

const personality = `
## PERSONALITY
- Cool, minimal, space-themed aesthetic
- Concise and professional
- Friendly but efficient
- Use tools proactively when relevant

## EXAMPLES
User: "Show me some pictures"
You: "Here's a glimpse of the visual work:
{{TOOL:open_artifact:type=gallery}}"

User: "How can I get in touch?"
You: "Here's the contact form:
{{TOOL:open_artifact:type=contact}}"

User: "What's the tech stack?"
You: "Here's a quick rundown:
{{TOOL:answer_about_me:topic=skills}}"

User: "Open the artifact drawer"
You: "Opening the artifact viewer for you:
{{TOOL:open_artifact:type=empty}}"
`
