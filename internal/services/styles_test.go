package services

import "testing"

func TestResolveStylePromptBuiltins(t *testing.T) {
	for _, style := range []string{"ghibli", "lego", "minecraft", "simpsons"} {
		prompt, err := ResolveStylePrompt(style, nil)
		if err != nil {
			t.Errorf("style %s: unexpected error %v", style, err)
		}
		if prompt == "" {
			t.Errorf("style %s: empty prompt", style)
		}
	}
}

func TestResolveStylePromptCustomWins(t *testing.T) {
	custom := "render as a watercolor painting"

	prompt, err := ResolveStylePrompt("custom", &custom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != custom {
		t.Errorf("expected custom prompt, got %q", prompt)
	}

	// a custom prompt overrides even a built-in style name
	prompt, err = ResolveStylePrompt("ghibli", &custom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != custom {
		t.Errorf("expected custom prompt to win, got %q", prompt)
	}
}

func TestResolveStylePromptUnknown(t *testing.T) {
	if _, err := ResolveStylePrompt("vaporwave", nil); err == nil {
		t.Error("expected error for unknown style")
	}

	empty := ""
	if _, err := ResolveStylePrompt("custom", &empty); err == nil {
		t.Error("custom style with empty prompt must be rejected")
	}
}

func TestIsValidStyle(t *testing.T) {
	for _, style := range []string{"ghibli", "lego", "minecraft", "simpsons", "custom"} {
		if !IsValidStyle(style) {
			t.Errorf("expected %s valid", style)
		}
	}
	for _, style := range []string{"", "vaporwave", "Ghibli"} {
		if IsValidStyle(style) {
			t.Errorf("expected %s invalid", style)
		}
	}
}
