package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Player renders WAV audio to the speakers. Play blocks until the clip
// finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, wav []byte) error
	Stop()
}

const defaultPlayerCommand = "ffplay -autoexit -nodisp -loglevel quiet -"

// CommandPlayer pipes audio into an external player process. The trailing
// "-" in the command means "read from stdin".
type CommandPlayer struct {
	name string
	args []string

	mu      sync.Mutex
	current *exec.Cmd
}

func NewCommandPlayer(command string) *CommandPlayer {
	command = strings.TrimSpace(command)
	if command == "" {
		command = defaultPlayerCommand
	}
	fields := strings.Fields(command)
	return &CommandPlayer{name: fields[0], args: fields[1:]}
}

func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	cmd.Stdin = bytes.NewReader(wav)

	p.mu.Lock()
	p.current = cmd
	p.mu.Unlock()

	err := cmd.Run()

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player %s: %w", p.name, err)
	}
	return nil
}

// Stop kills the in-flight player process, if any.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.Process != nil {
		_ = p.current.Process.Kill()
	}
}
