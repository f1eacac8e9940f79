package grammar

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryAvailable(t *testing.T) {
	r := NewRegistry()

	names := r.Available()
	if len(names) != 1 || names[0] != "java" {
		t.Fatalf("Available() = %v, want [java]", names)
	}
	for _, name := range []string{"kotlin", "go", "nonexistent"} {
		if r.Has(name) {
			t.Errorf("Has(%q) = true; want false", name)
		}
	}
}

func TestRegistryLoadCaches(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	first, err := r.Load(ctx, "java")
	if err != nil {
		t.Fatalf("Load(java): %v", err)
	}
	second, err := r.Load(ctx, "java")
	if err != nil {
		t.Fatalf("second Load(java): %v", err)
	}
	if first != second {
		t.Error("expected the cached Language on the second load")
	}
}

func TestRegistryLoadUnknown(t *testing.T) {
	_, err := NewRegistry().Load(context.Background(), "kotlin")
	var nf *ErrGrammarNotFound
	if !errors.As(err, &nf) || nf.Name != "kotlin" {
		t.Fatalf("expected ErrGrammarNotFound{kotlin}, got %v", err)
	}
}

func TestRegistryLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRegistry().Load(ctx, "java"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseJava(t *testing.T) {
	if DefaultLoader() != DefaultLoader() {
		t.Fatal("DefaultLoader should return one shared registry")
	}
	tree, err := Parse(context.Background(), DefaultLoader(), "java", []byte("class A { void f() { if (x) {} } }"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	if kind := tree.RootNode().Kind(); kind != "program" {
		t.Errorf("root kind = %q, want program", kind)
	}
	if _, err := Parse(context.Background(), DefaultLoader(), "kotlin", nil); err == nil {
		t.Error("expected an error for a language without a grammar")
	}
}
