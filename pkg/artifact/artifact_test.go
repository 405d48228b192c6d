package artifact

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nous-labs/folio/pkg/catalog"
)

func TestZeroValueIsNone(t *testing.T) {
	var a Artifact
	if a.Kind() != KindNone {
		t.Errorf("zero Kind() = %q, want none", a.Kind())
	}
	if a.Payload() != nil {
		t.Errorf("zero Payload() = %v, want nil", a.Payload())
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"gallery": KindGallery,
		"website": KindWebsite,
		"contact": KindContact,
		"project": KindProject,
		"empty":   KindEmpty,
		"none":    KindEmpty,
		"":        KindEmpty,
		"video":   KindEmpty,
	}
	for in, want := range tests {
		if got := ParseKind(in); got != want {
			t.Errorf("ParseKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGalleryPayloadIsNeverNil(t *testing.T) {
	a := Gallery(nil)
	g, ok := a.Gallery()
	if !ok {
		t.Fatal("Gallery() payload missing")
	}
	if g.Images == nil || len(g.Images) != 0 {
		t.Errorf("Images = %#v, want empty non-nil slice", g.Images)
	}

	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"kind":"gallery","payload":{"images":[]}}` {
		t.Errorf("Marshal = %s", b)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	project := catalog.Project{ID: "weaszel", Title: "Weaszel", Stats: []catalog.Stat{{Label: "Users", Value: "1k"}}}
	for _, a := range []Artifact{None(), Empty(), Contact(), Gallery([]string{"a.png"}), Website("https://x.com", "X"), Project(project)} {
		b, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", a.Kind(), err)
		}
		var got Artifact
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if got.Kind() != a.Kind() {
			t.Errorf("kind = %q, want %q", got.Kind(), a.Kind())
		}
		if diff := cmp.Diff(a.Payload(), got.Payload()); diff != "" {
			t.Errorf("%s payload mismatch (-want +got):\n%s", a.Kind(), diff)
		}
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	var a Artifact
	if err := json.Unmarshal([]byte(`{"kind":"hologram","payload":null}`), &a); err == nil {
		t.Error("expected error for unknown kind")
	}
}
