// Package directive parses the command language the assistant embeds in
// its replies.
//
// A directive looks like {{TOOL:name}} or {{TOOL:name:k1=v1,k2=v2}}.
// Parsing never fails: text that does not match the pattern is plain text.
package directive

import (
	"iter"
	"regexp"
	"strings"
)

// Directive names understood by Decode.
const (
	OpenArtifactName   = "open_artifact"
	CloseArtifactName  = "close_artifact"
	DisplayProjectName = "display_project"
	AnswerAboutMeName  = "answer_about_me"
)

var toolRe = regexp.MustCompile(`\{\{TOOL:(\w+)(?::([^}]*))?\}\}`)

// Directive is one parsed {{TOOL:...}} token.
type Directive struct {
	Name   string
	Params map[string]string
	Raw    string
	// Start and End are byte offsets of Raw within the parsed text.
	Start int
	End   int
}

// Param returns the named parameter, or "" when absent.
func (d Directive) Param(key string) string {
	return d.Params[key]
}

// Parse lazily yields the directives in text, left to right.
// Each call is independent; ranging over the result twice re-scans text.
func Parse(text string) iter.Seq[Directive] {
	return func(yield func(Directive) bool) {
		offset := 0
		for offset <= len(text) {
			loc := toolRe.FindStringSubmatchIndex(text[offset:])
			if loc == nil {
				return
			}
			d := Directive{
				Name:  text[offset+loc[2] : offset+loc[3]],
				Raw:   text[offset+loc[0] : offset+loc[1]],
				Start: offset + loc[0],
				End:   offset + loc[1],
			}
			var raw string
			if loc[4] >= 0 {
				raw = text[offset+loc[4] : offset+loc[5]]
			}
			d.Params = parseParams(raw)

			if !yield(d) {
				return
			}
			offset = d.End
		}
	}
}

// All collects Parse into a slice.
func All(text string) []Directive {
	var out []Directive
	for d := range Parse(text) {
		out = append(out, d)
	}
	return out
}

// parseParams splits "k1=v1,k2=v2". A segment with no '=' belongs to the
// previous value, so "url=https://x.com/a,b" keeps its comma.
func parseParams(raw string) map[string]string {
	params := make(map[string]string)
	if raw == "" {
		return params
	}

	current := ""
	for _, seg := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(seg, "=")
		if !found {
			if current != "" {
				params[current] = strings.TrimSpace(params[current] + "," + seg)
			}
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
		current = key
	}
	return params
}

// Strip removes every {{TOOL:...}} token and leaves the rest of text
// untouched, including {{DISPLAY_PROJECT:...}} embeds.
func Strip(text string) string {
	return toolRe.ReplaceAllLiteralString(text, "")
}
