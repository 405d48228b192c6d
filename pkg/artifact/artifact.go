// Package artifact models the single side-panel slot a conversation
// drives. An Artifact's kind and payload always agree because values are
// only built through the constructors below.
package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/nous-labs/folio/pkg/catalog"
)

// Kind is the artifact panel mode.
type Kind string

const (
	KindNone    Kind = "none"
	KindEmpty   Kind = "empty"
	KindGallery Kind = "gallery"
	KindWebsite Kind = "website"
	KindContact Kind = "contact"
	KindProject Kind = "project"
)

// ParseKind maps an open_artifact type parameter to a Kind.
// Unrecognized values, "none" included, map to KindEmpty.
func ParseKind(s string) Kind {
	switch k := Kind(s); k {
	case KindGallery, KindWebsite, KindContact, KindProject:
		return k
	default:
		return KindEmpty
	}
}

// GalleryPayload is the gallery panel state. Images is always non-nil.
type GalleryPayload struct {
	Images []string `json:"images"`
}

// WebsitePayload is a live-site preview.
type WebsitePayload struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ContactPayload carries no data; the panel shows the contact form.
type ContactPayload struct{}

// Artifact is the panel state. The zero value is KindNone.
type Artifact struct {
	kind    Kind
	payload any
}

func None() Artifact  { return Artifact{kind: KindNone} }
func Empty() Artifact { return Artifact{kind: KindEmpty} }

func Gallery(images []string) Artifact {
	if images == nil {
		images = []string{}
	}
	return Artifact{kind: KindGallery, payload: GalleryPayload{Images: images}}
}

func Website(url, title string) Artifact {
	return Artifact{kind: KindWebsite, payload: WebsitePayload{URL: url, Title: title}}
}

func Contact() Artifact { return Artifact{kind: KindContact, payload: ContactPayload{}} }

func Project(p catalog.Project) Artifact {
	return Artifact{kind: KindProject, payload: p}
}

// Kind reports the panel mode.
func (a Artifact) Kind() Kind {
	if a.kind == "" {
		return KindNone
	}
	return a.kind
}

// Payload returns the kind-specific payload, nil for none and empty.
func (a Artifact) Payload() any { return a.payload }

func (a Artifact) Gallery() (GalleryPayload, bool) {
	p, ok := a.payload.(GalleryPayload)
	return p, ok
}

func (a Artifact) Website() (WebsitePayload, bool) {
	p, ok := a.payload.(WebsitePayload)
	return p, ok
}

func (a Artifact) Project() (catalog.Project, bool) {
	p, ok := a.payload.(catalog.Project)
	return p, ok
}

// Describe is a one-line human summary, used by text transports.
func (a Artifact) Describe() string {
	switch a.Kind() {
	case KindGallery:
		return "Opened the gallery."
	case KindWebsite:
		w, _ := a.Website()
		return fmt.Sprintf("Opened a preview of %s (%s).", w.Title, w.URL)
	case KindContact:
		return "Opened the contact form."
	case KindProject:
		p, _ := a.Project()
		return fmt.Sprintf("Opened project details: %s.", p.Title)
	case KindEmpty:
		return "Opened an empty panel."
	default:
		return "Closed the panel."
	}
}

type wireArtifact struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(a.payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", a.Kind(), err)
	}
	return json.Marshal(wireArtifact{Kind: a.Kind(), Payload: payload})
}

func (a *Artifact) UnmarshalJSON(b []byte) error {
	var w wireArtifact
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	switch w.Kind {
	case KindNone, "":
		*a = None()
	case KindEmpty:
		*a = Empty()
	case KindContact:
		*a = Contact()
	case KindGallery:
		var p GalleryPayload
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("gallery payload: %w", err)
		}
		*a = Gallery(p.Images)
	case KindWebsite:
		var p WebsitePayload
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("website payload: %w", err)
		}
		*a = Website(p.URL, p.Title)
	case KindProject:
		var p catalog.Project
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("project payload: %w", err)
		}
		*a = Project(p)
	default:
		return fmt.Errorf("unknown artifact kind %q", w.Kind)
	}
	return nil
}
