package chat

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/config"
)

var defaultNGWords = []string{
	"spam",
	"scam",
	"http://",
	"https://",
}

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// hasLongRun reports whether any rune repeats n or more times in a row.
func hasLongRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// Filter screens raw comments before they can influence generation.
// Rejected comments are dropped silently; only the decision is logged.
type Filter struct {
	ngWords      []string
	blockedUsers map[string]struct{}
	minLength    int
	maxLength    int
}

func NewFilter(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{
		minLength:    cfg.MinLength,
		maxLength:    cfg.MaxLength,
		blockedUsers: make(map[string]struct{}, len(cfg.BlockedUsers)),
	}

	for _, w := range defaultNGWords {
		f.ngWords = append(f.ngWords, strings.ToLower(w))
	}
	for _, w := range cfg.NGWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			f.ngWords = append(f.ngWords, w)
		}
	}
	if cfg.NGWordFile != "" {
		words, err := loadNGWordFile(cfg.NGWordFile)
		if err != nil {
			return nil, err
		}
		f.ngWords = append(f.ngWords, words...)
	}

	for _, u := range cfg.BlockedUsers {
		f.blockedUsers[strings.ToLower(strings.TrimSpace(u))] = struct{}{}
	}

	return f, nil
}

// loadNGWordFile reads one word per line, skipping blanks and # comments.
func loadNGWordFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ng-word file: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ng-word file: %w", err)
	}
	return words, nil
}

// Accept reports whether the comment may be used, with a short reason
// when it may not.
func (f *Filter) Accept(c bus.Comment) (bool, string) {
	if _, blocked := f.blockedUsers[strings.ToLower(c.Author)]; blocked {
		return false, "blocked user"
	}

	text := strings.TrimSpace(c.Text)
	if f.minLength > 0 && len([]rune(text)) < f.minLength {
		return false, "too short"
	}
	if f.maxLength > 0 && len([]rune(text)) > f.maxLength {
		return false, "too long"
	}
	if urlPattern.MatchString(text) {
		return false, "contains url"
	}
	if hasLongRun(text, 10) {
		return false, "repeated characters"
	}

	lower := strings.ToLower(text)
	for _, w := range f.ngWords {
		if strings.Contains(lower, w) {
			return false, "ng word"
		}
	}

	return true, ""
}

// Apply filters a batch and returns the cleaned survivors.
func (f *Filter) Apply(comments []bus.Comment) []bus.Comment {
	var out []bus.Comment
	for _, c := range comments {
		ok, reason := f.Accept(c)
		if !ok {
			log.Printf("[chat] dropped comment from %s: %s", c.Author, reason)
			continue
		}
		c.Text = Clean(c.Text)
		out = append(out, c)
	}
	return out
}

// Clean normalizes whitespace so the text is safe to feed into a prompt.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
