package chat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/config"
)

func newTestFilter(t *testing.T, cfg config.FilterConfig) *Filter {
	t.Helper()
	f, err := NewFilter(cfg)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return f
}

func TestFilter_Accept(t *testing.T) {
	f := newTestFilter(t, config.FilterConfig{
		NGWords:      []string{"badword"},
		BlockedUsers: []string{"Troll99"},
		MinLength:    2,
		MaxLength:    50,
	})

	tests := []struct {
		name    string
		comment bus.Comment
		want    bool
	}{
		{"normal comment", bus.Comment{Author: "alice", Text: "love this stream"}, true},
		{"ng word", bus.Comment{Author: "alice", Text: "such a BadWord here"}, false},
		{"default ng word", bus.Comment{Author: "alice", Text: "total spam offer"}, false},
		{"blocked user", bus.Comment{Author: "troll99", Text: "hello"}, false},
		{"blocked user case", bus.Comment{Author: "TROLL99", Text: "hello"}, false},
		{"too short", bus.Comment{Author: "bob", Text: "k"}, false},
		{"too long", bus.Comment{Author: "bob", Text: strings.Repeat("a ", 40)}, false},
		{"url", bus.Comment{Author: "bob", Text: "check www.example.com now"}, false},
		{"repeated chars", bus.Comment{Author: "bob", Text: "wwwwwwwwwwwwww"}, false},
		{"repeated multibyte", bus.Comment{Author: "bob", Text: "ｗｗｗｗｗｗｗｗｗｗｗｗ"}, false},
		{"short run ok", bus.Comment{Author: "bob", Text: "soooo good today"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := f.Accept(tt.comment)
			if got != tt.want {
				t.Errorf("Accept(%q) = %v (%s), want %v", tt.comment.Text, got, reason, tt.want)
			}
		})
	}
}

func TestHasLongRun(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{strings.Repeat("a", 10), true},
		{strings.Repeat("a", 9), false},
		{strings.Repeat("ね", 10), true},
		{"interleaved ababababababab", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := hasLongRun(tt.text, 10); got != tt.want {
			t.Errorf("hasLongRun(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFilter_NGWordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ng.txt")
	content := "# blocklist\nforbidden\n\nanotherword\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f := newTestFilter(t, config.FilterConfig{NGWordFile: path})

	if ok, _ := f.Accept(bus.Comment{Author: "a", Text: "this is Forbidden talk"}); ok {
		t.Error("file-listed word should be rejected")
	}
	if ok, _ := f.Accept(bus.Comment{Author: "a", Text: "perfectly fine"}); !ok {
		t.Error("clean comment should pass")
	}
}

func TestFilter_NGWordFileMissing(t *testing.T) {
	if _, err := NewFilter(config.FilterConfig{NGWordFile: "/no/such/file"}); err == nil {
		t.Fatal("expected error for missing ng-word file")
	}
}

func TestFilter_Apply(t *testing.T) {
	f := newTestFilter(t, config.FilterConfig{NGWords: []string{"nope"}})

	in := []bus.Comment{
		{Author: "a", Text: "  keep   me  "},
		{Author: "b", Text: "nope nope"},
		{Author: "c", Text: "also fine"},
	}
	out := f.Apply(in)

	if len(out) != 2 {
		t.Fatalf("Apply kept %d, want 2", len(out))
	}
	if out[0].Text != "keep me" {
		t.Errorf("cleaned text = %q, want %q", out[0].Text, "keep me")
	}
	if out[1].Author != "c" {
		t.Errorf("survivor = %q, want c", out[1].Author)
	}
}

func TestClean(t *testing.T) {
	if got := Clean("  a \n b\t c  "); got != "a b c" {
		t.Errorf("Clean = %q", got)
	}
}
