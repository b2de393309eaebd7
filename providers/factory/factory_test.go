package factory

import "testing"

func TestNew_KnownProviders(t *testing.T) {
	for _, name := range Names() {
		interp, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if interp.Name() != name {
			t.Fatalf("expected interpreter name %q, got %q", name, interp.Name())
		}
	}
}

func TestNew_NormalizesCase(t *testing.T) {
	interp, err := New(" Anthropic ")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if interp.Name() != "anthropic" {
		t.Fatalf("unexpected interpreter %q", interp.Name())
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New("llama"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
