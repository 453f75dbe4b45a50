package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/state"
)

const personaFileName = "persona.md"

var errInvalidTemplateYAML = errors.New("invalid template YAML frontmatter")

type templateFrontmatter struct {
	Mode        string `yaml:"mode"`
	Description string `yaml:"description"`
}

// Library holds the persona prompt and the per-mode instruction templates.
// Templates come from <dir>/persona.md and <dir>/modes/<mode>.md; anything
// missing falls back to a built-in default so the streamer can run with an
// empty prompts directory.
type Library struct {
	persona string
	modes   map[string]string
}

func Load(dir string) (*Library, error) {
	lib := &Library{
		persona: defaultPersona,
		modes:   map[string]string{},
	}
	for mode, text := range defaultModeTemplates {
		lib.modes[mode] = text
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return lib, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lib, nil
		}
		return nil, fmt.Errorf("stat prompts dir %q: %w", dir, err)
	}

	if data, err := os.ReadFile(filepath.Join(dir, personaFileName)); err == nil {
		if text := strings.TrimSpace(string(data)); text != "" {
			lib.persona = text
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read persona: %w", err)
	}

	modesDir := filepath.Join(dir, "modes")
	entries, err := os.ReadDir(modesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lib, nil
		}
		return nil, fmt.Errorf("read modes dir %q: %w", modesDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(modesDir, entry.Name())
		mode, body, err := parseTemplateFile(path)
		if err != nil {
			if errors.Is(err, errInvalidTemplateYAML) {
				log.Printf("[prompt] warning: skip invalid template %s: %v", path, err)
				continue
			}
			return nil, err
		}
		lib.modes[mode] = body
	}

	return lib, nil
}

func parseTemplateFile(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read template %q: %w", path, err)
	}

	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(text, "\n")

	// Frontmatter is optional: a bare file's mode is its filename.
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		mode := strings.TrimSuffix(filepath.Base(path), ".md")
		return mode, strings.TrimSpace(text), nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return "", "", fmt.Errorf("%w: missing closing separator in %s", errInvalidTemplateYAML, path)
	}

	var meta templateFrontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &meta); err != nil {
		return "", "", fmt.Errorf("%w: %v", errInvalidTemplateYAML, err)
	}

	mode := strings.TrimSpace(meta.Mode)
	if mode == "" {
		mode = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	return mode, strings.TrimSpace(strings.Join(lines[end+1:], "\n")), nil
}

func (l *Library) Persona() string { return l.persona }

// ModeTemplate returns the instruction block for mode, falling back to the
// normal template for unknown modes.
func (l *Library) ModeTemplate(mode string) string {
	if text, ok := l.modes[mode]; ok {
		return text
	}
	return l.modes["normal"]
}

// Monologue builds the generation prompt for a talk segment in the given
// mode. Theme is included only for theme-continuation segments.
func (l *Library) Monologue(mode, theme string, history []state.Entry) string {
	var b strings.Builder
	b.WriteString(l.persona)
	b.WriteString("\n\n")
	b.WriteString(l.ModeTemplate(mode))
	if theme != "" {
		b.WriteString("\n\nToday's theme:\n")
		b.WriteString(theme)
	}
	writeHistory(&b, history)
	b.WriteString("\n\nSpeak the next segment. One sentence per line, no stage directions.")
	return b.String()
}

// CommentResponse builds the prompt for an integrated reply to pending
// viewer comments.
func (l *Library) CommentResponse(comments []bus.Comment, history []state.Entry) string {
	var b strings.Builder
	b.WriteString(l.persona)
	writeHistory(&b, history)
	b.WriteString("\n\nViewer comments to respond to:\n")
	for _, c := range comments {
		fmt.Fprintf(&b, "- %s: %s\n", c.Author, c.Text)
	}
	b.WriteString("\nReply to the comments naturally, weaving them into the stream. One sentence per line.")
	return b.String()
}

// Greeting builds the opening-remark prompt.
func (l *Library) Greeting() string {
	return l.persona + "\n\nThe stream is just starting. Greet the viewers and tease what today will be about. One sentence per line."
}

// Farewell builds the closing-remark prompt from the tail of the
// conversation.
func (l *Library) Farewell(tail []state.Entry) string {
	var b strings.Builder
	b.WriteString(l.persona)
	writeHistory(&b, tail)
	b.WriteString("\n\nThe stream is ending now. Say a short, warm goodbye that touches on what was talked about. One sentence per line.")
	return b.String()
}

// Summary builds the stream-summary prompt over the full history.
func (l *Library) Summary(history []state.Entry) string {
	var b strings.Builder
	b.WriteString("Summarize this live stream as markdown: topics covered, notable viewer comments, overall vibe. Be concrete.\n")
	writeHistory(&b, history)
	return b.String()
}

func writeHistory(b *strings.Builder, entries []state.Entry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("\n\nConversation so far:\n")
	for _, e := range entries {
		fmt.Fprintf(b, "%s: %s\n", e.Speaker, e.Text)
	}
}
