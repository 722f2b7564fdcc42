package security

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPrefixedIDCodec(t *testing.T) {
	codec := NewPrefixedIDCodec()
	id := uuid.New()

	public := codec.ToPublicID("User", id)
	if !strings.HasPrefix(public, "usr_") {
		t.Fatalf("expected usr_ prefix, got %q", public)
	}
	got, ok := codec.FromPublicID(public)
	if !ok || got != id {
		t.Fatalf("expected %s, got %s ok=%v", id, got, ok)
	}
	if got, ok := codec.FromPublicID(id.String()); !ok || got != id {
		t.Fatalf("expected raw uuid accepted, got %s ok=%v", got, ok)
	}

	for _, bad := range []string{"", "   ", "usr_", "_abc", "usr_not-base64!", "usr_AAAA", uuid.Nil.String()} {
		if _, ok := codec.FromPublicID(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func FuzzPrefixedIDCodecNeverPanics(f *testing.F) {
	f.Add("usr_AAAAAAAAAAAAAAAAAAAAAA")
	f.Add("garbage")
	f.Add("a_b_c")
	f.Fuzz(func(t *testing.T, raw string) {
		id, ok := NewPrefixedIDCodec().FromPublicID(raw)
		if ok && id == uuid.Nil {
			t.Fatalf("accepted nil id for %q", raw)
		}
	})
}
