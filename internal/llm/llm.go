package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"

	"github.com/harunalabs/aituber/internal/config"
)

// Runtime interface for the text-generation runtime (allows mocking in tests)
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close()
}

// runtimeAdapter wraps api.Runtime to implement Runtime interface
type runtimeAdapter struct {
	rt *api.Runtime
}

func (r *runtimeAdapter) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeAdapter) Close() {
	r.rt.Close()
}

// RuntimeFactory creates a Runtime instance
type RuntimeFactory func(cfg *config.Config, sysPrompt string) (Runtime, error)

// DefaultRuntimeFactory creates the default agentsdk-go runtime
func DefaultRuntimeFactory(cfg *config.Config, sysPrompt string) (Runtime, error) {
	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ModelFactory: provider,
		SystemPrompt: sysPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &runtimeAdapter{rt: rt}, nil
}

// Generator wraps a Runtime behind the single call the handlers need.
type Generator struct {
	runtime Runtime
	session string
}

func NewGenerator(rt Runtime) *Generator {
	return &Generator{runtime: rt, session: "stream"}
}

// Complete runs the prompt and returns the generated text split into
// speakable sentences, one per line of output.
func (g *Generator) Complete(ctx context.Context, prompt string) ([]string, error) {
	resp, err := g.runtime.Run(ctx, api.Request{
		Prompt:    prompt,
		SessionID: g.session,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Result == nil {
		return nil, errors.New("llm: empty response")
	}
	sentences := SplitSentences(resp.Result.Output)
	if len(sentences) == 0 {
		return nil, errors.New("llm: response contained no speakable text")
	}
	return sentences, nil
}

func (g *Generator) Close() {
	if g.runtime != nil {
		g.runtime.Close()
	}
}

// SplitSentences breaks generated output into one utterance per line,
// dropping blanks and markdown bullets.
func SplitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// IsTransient reports whether err is the kind of collaborator failure a
// handler should absorb (skip the cycle, retry later) rather than treat
// as fatal. Timeouts, cancellations and network errors qualify.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "503", "overloaded", "timeout", "connection refused", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
