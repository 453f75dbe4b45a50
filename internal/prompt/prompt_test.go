package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/state"
)

func TestLoad_MissingDirUsesDefaults(t *testing.T) {
	lib, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Persona() == "" {
		t.Error("default persona should not be empty")
	}
	if lib.ModeTemplate("normal") == "" {
		t.Error("default normal template should not be empty")
	}
}

func TestLoad_CustomPersonaAndModes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "persona.md"), []byte("I am Miko.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	modesDir := filepath.Join(dir, "modes")
	if err := os.MkdirAll(modesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	custom := "---\nmode: deep-dive\ndescription: serious digging\n---\nGo deep.\n"
	if err := os.WriteFile(filepath.Join(modesDir, "dive.md"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modesDir, "chill-chat.md"), []byte("Relax hard.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Persona() != "I am Miko." {
		t.Errorf("persona = %q", lib.Persona())
	}
	if got := lib.ModeTemplate("deep-dive"); got != "Go deep." {
		t.Errorf("deep-dive template = %q", got)
	}
	// Frontmatter-less file keyed by filename.
	if got := lib.ModeTemplate("chill-chat"); got != "Relax hard." {
		t.Errorf("chill-chat template = %q", got)
	}
	// Untouched modes keep their defaults.
	if lib.ModeTemplate("normal") == "" {
		t.Error("normal template should still default")
	}
}

func TestLoad_TemplateWithBOM(t *testing.T) {
	dir := t.TempDir()
	modesDir := filepath.Join(dir, "modes")
	if err := os.MkdirAll(modesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Editors on some platforms prepend a byte-order mark.
	content := "\uFEFF---\nmode: deep-dive\n---\nDig into one topic.\n"
	if err := os.WriteFile(filepath.Join(modesDir, "dive.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := lib.ModeTemplate("deep-dive"); got != "Dig into one topic." {
		t.Errorf("deep-dive template = %q", got)
	}
}

func TestLoad_InvalidFrontmatterSkipped(t *testing.T) {
	dir := t.TempDir()
	modesDir := filepath.Join(dir, "modes")
	if err := os.MkdirAll(modesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modesDir, "broken.md"), []byte("---\nno closing fence\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load should skip broken templates, got %v", err)
	}
	if _, ok := lib.modes["broken"]; ok {
		t.Error("broken template should not be registered")
	}
}

func TestModeTemplate_UnknownFallsBackToNormal(t *testing.T) {
	lib, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if lib.ModeTemplate("karaoke") != lib.ModeTemplate("normal") {
		t.Error("unknown mode should fall back to normal")
	}
}

func TestMonologuePrompt(t *testing.T) {
	lib, _ := Load("")
	history := []state.Entry{{Speaker: "ai", Text: "earlier thought"}}

	got := lib.Monologue("theme-continuation", "retro games", history)
	for _, want := range []string{lib.Persona(), "retro games", "earlier thought"} {
		if !strings.Contains(got, want) {
			t.Errorf("monologue prompt missing %q", want)
		}
	}

	plain := lib.Monologue("normal", "", nil)
	if strings.Contains(plain, "Today's theme") {
		t.Error("theme block should be omitted without a theme")
	}
}

func TestCommentResponsePrompt(t *testing.T) {
	lib, _ := Load("")
	got := lib.CommentResponse([]bus.Comment{
		{Author: "alice", Text: "what game next?"},
	}, nil)

	if !strings.Contains(got, "alice: what game next?") {
		t.Errorf("prompt missing comment line:\n%s", got)
	}
}

func TestFarewellPromptUsesTail(t *testing.T) {
	lib, _ := Load("")
	got := lib.Farewell([]state.Entry{{Speaker: "viewer:bob", Text: "great stream"}})
	if !strings.Contains(got, "great stream") {
		t.Error("farewell prompt should include the history tail")
	}
	if !strings.Contains(got, "goodbye") {
		t.Error("farewell prompt should ask for a goodbye")
	}
}
