package conversation

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/nous-labs/folio/pkg/answer"
	"github.com/nous-labs/folio/pkg/artifact"
	"github.com/nous-labs/folio/pkg/catalog"
	"github.com/nous-labs/folio/pkg/directive"
)

const defaultWebsiteTitle = "Live Preview"

// Outcome is what executing one command produced.
type Outcome struct {
	// Supplement is extra assistant text to append after the reply, or "".
	Supplement string
	// Changed is set when the artifact was replaced.
	Changed bool
}

// Executor applies decoded commands to an artifact slot. It never touches
// the network or the catalog records.
type Executor struct {
	catalog *catalog.Catalog
	answers *answer.Engine
}

func NewExecutor(c *catalog.Catalog, answers *answer.Engine) *Executor {
	if answers == nil {
		var profile catalog.Profile
		if c != nil {
			profile = c.Profile
		}
		answers = answer.New(profile)
	}
	return &Executor{catalog: c, answers: answers}
}

// ExecuteDirective decodes d and executes it. Unknown directive names are
// logged and ignored.
func (x *Executor) ExecuteDirective(d directive.Directive, art *artifact.Artifact) Outcome {
	cmd, ok := directive.Decode(d)
	if !ok {
		slog.Debug("ignoring unknown directive", "name", d.Name, "raw", d.Raw)
		return Outcome{}
	}
	slog.Debug("executing directive", "name", d.Name, "params", d.Params)
	return x.Execute(cmd, art)
}

// Execute applies cmd to art.
func (x *Executor) Execute(cmd directive.Command, art *artifact.Artifact) Outcome {
	switch c := cmd.(type) {
	case directive.OpenArtifact:
		next, ok := x.open(c)
		if !ok {
			return Outcome{}
		}
		*art = next
		return Outcome{Changed: true}

	case directive.CloseArtifact:
		*art = artifact.None()
		return Outcome{Changed: true}

	case directive.AnswerAboutMe:
		return Outcome{Supplement: x.answers.Answer(string(c.Topic), c.Question)}

	case directive.DisplayProject:
		// rendered inline at display time
		return Outcome{}

	default:
		slog.Debug("ignoring unsupported command", "command", cmd)
		return Outcome{}
	}
}

// open returns the artifact for an open_artifact command. A project id
// that does not resolve reports false and leaves the slot alone.
func (x *Executor) open(c directive.OpenArtifact) (artifact.Artifact, bool) {
	switch {
	case c.Type == artifact.KindGallery:
		return artifact.Gallery(nil), true
	case c.Type == artifact.KindContact:
		return artifact.Contact(), true
	case c.Type == artifact.KindWebsite && c.URL != "":
		return artifact.Website(c.URL, x.websiteTitle(c)), true
	case c.Type == artifact.KindProject && c.ID != "":
		p, ok := x.catalog.Project(c.ID)
		if !ok {
			slog.Debug("open_artifact: unknown project", "id", c.ID)
			return artifact.Artifact{}, false
		}
		return artifact.Project(p), true
	default:
		return artifact.Empty(), true
	}
}

// websiteTitle uses an explicit title when given, otherwise the title of
// a known project whose live URL or id appears in the URL.
func (x *Executor) websiteTitle(c directive.OpenArtifact) string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	target := strings.ToLower(c.URL)
	segments := urlSegments(target)
	for _, p := range x.catalog.Projects() {
		if live := hostPath(p.LiveURL); live != "" && strings.Contains(target, live) {
			return p.Title
		}
		if _, ok := segments[strings.ToLower(p.ID)]; ok && p.ID != "" {
			return p.Title
		}
	}
	return defaultWebsiteTitle
}

// hostPath returns "host/path" of a URL without scheme or trailing slash.
func hostPath(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(u.Host, "www.")+u.Path, "/")
}

// urlSegments splits a URL into its host labels and path elements.
func urlSegments(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '/', '.', ':', '?', '#', '&', '=':
			return true
		}
		return false
	}) {
		out[f] = struct{}{}
	}
	return out
}
