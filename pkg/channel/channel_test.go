package channel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSessionID(t *testing.T) {
	m := Message{Source: "matrix", RoomID: "!abc:example.org"}
	if got := m.SessionID(); got != "matrix:!abc:example.org" {
		t.Errorf("SessionID() = %q", got)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want []string
	}{
		{"empty", "", 10, nil},
		{"fits", "hello", 10, []string{"hello"}},
		{"line break", "abc\ndefgh\nij", 6, []string{"abc", "defgh", "ij"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"utf8", "ééé", 3, []string{"é", "é", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in, tt.max)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
