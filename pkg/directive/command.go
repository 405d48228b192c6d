package directive

import (
	"strings"

	"github.com/nous-labs/folio/pkg/answer"
	"github.com/nous-labs/folio/pkg/artifact"
)

// Command is a decoded directive. The concrete types are OpenArtifact,
// CloseArtifact, AnswerAboutMe and DisplayProject.
type Command interface {
	command()
}

// OpenArtifact switches the artifact panel. An empty Title means the
// caller should pick one.
type OpenArtifact struct {
	Type  artifact.Kind
	ID    string
	URL   string
	Title string
}

type CloseArtifact struct{}

// AnswerAboutMe asks for a deterministic profile answer.
type AnswerAboutMe struct {
	Topic    answer.Topic
	Question string
}

// DisplayProject is the directive form of an inline project card.
type DisplayProject struct {
	ID string
}

func (OpenArtifact) command()   {}
func (CloseArtifact) command()  {}
func (AnswerAboutMe) command()  {}
func (DisplayProject) command() {}

// Decode validates d and builds its Command. Unknown names report false.
// Unrecognized enum values fall back to defaults: an unknown artifact type
// opens an empty panel and an unknown topic means general.
func Decode(d Directive) (Command, bool) {
	switch d.Name {
	case OpenArtifactName:
		return OpenArtifact{
			Type:  artifact.ParseKind(strings.ToLower(d.Param("type"))),
			ID:    d.Param("id"),
			URL:   d.Param("url"),
			Title: d.Param("title"),
		}, true
	case CloseArtifactName:
		return CloseArtifact{}, true
	case AnswerAboutMeName:
		return AnswerAboutMe{
			Topic:    answer.ParseTopic(d.Param("topic")),
			Question: d.Param("question"),
		}, true
	case DisplayProjectName:
		return DisplayProject{ID: d.Param("id")}, true
	default:
		return nil, false
	}
}
