package state

import (
	"time"

	"github.com/harunalabs/aituber/internal/bus"
)

// Phase is what the streamer is currently doing with the active task.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseThinking Phase = "thinking"
	PhaseSpeaking Phase = "speaking"
)

// Process is the single process-wide mutable state. It is NOT safe for
// concurrent use: every mutation happens on the dispatch goroutine.
// Producers only ever enqueue, they never touch this struct.
type Process struct {
	running bool
	started time.Time

	phase           Phase
	currentTaskID   string
	currentTaskKind bus.Kind

	currentMode    string
	recentModes    []string
	modeUtterances int

	greeted   bool
	tickArmed bool

	commentsSinceMonologue int
	silentTicks            int
	pendingComments        []bus.Comment
}

func NewProcess() *Process {
	return &Process{
		running: true,
		started: time.Now(),
		phase:   PhaseIdle,
	}
}

func (p *Process) Running() bool { return p.running }

// Terminate flips the running flag. It transitions true to false exactly
// once; the dispatch loop exits on the next iteration.
func (p *Process) Terminate() { p.running = false }

func (p *Process) StartedAt() time.Time  { return p.started }
func (p *Process) Uptime() time.Duration { return time.Since(p.started) }

func (p *Process) Phase() Phase { return p.phase }

func (p *Process) BeginTask(id string, kind bus.Kind) {
	p.phase = PhaseThinking
	p.currentTaskID = id
	p.currentTaskKind = kind
}

func (p *Process) BeginSpeaking() { p.phase = PhaseSpeaking }

func (p *Process) FinishTask() {
	p.phase = PhaseIdle
	p.currentTaskID = ""
	p.currentTaskKind = ""
}

func (p *Process) CurrentTask() (string, bus.Kind) {
	return p.currentTaskID, p.currentTaskKind
}

// Busy reports whether a generation or playback task is in flight. New
// prepare commands are deferred while busy so speech never overlaps.
func (p *Process) Busy() bool { return p.phase != PhaseIdle }

func (p *Process) CurrentMode() string { return p.currentMode }

// SetMode records a mode switch and resets the utterance counter the
// switch ramp runs on. Only the mode manager calls this.
func (p *Process) SetMode(mode string) {
	p.currentMode = mode
	p.modeUtterances = 0
	p.recentModes = append(p.recentModes, mode)
	if len(p.recentModes) > 3 {
		p.recentModes = p.recentModes[len(p.recentModes)-3:]
	}
}

// ModeUtterances counts sentences delivered since the last mode switch.
func (p *Process) ModeUtterances() int     { return p.modeUtterances }
func (p *Process) AddModeUtterances(n int) { p.modeUtterances += n }

// RecentModes returns up to the last three selected modes, oldest first.
func (p *Process) RecentModes() []string {
	out := make([]string, len(p.recentModes))
	copy(out, p.recentModes)
	return out
}

func (p *Process) Greeted() bool { return p.greeted }
func (p *Process) MarkGreeted()  { p.greeted = true }

// Tick arming tracks whether a MonologueTick is outstanding. Exactly one
// may be in flight at a time; the tick handler disarms on consumption.
func (p *Process) TickArmed() bool { return p.tickArmed }
func (p *Process) ArmTick()        { p.tickArmed = true }
func (p *Process) DisarmTick()     { p.tickArmed = false }

// AddPendingComments stores filtered comments for the next integrated
// response and bumps the activity counter.
func (p *Process) AddPendingComments(comments []bus.Comment) {
	p.pendingComments = append(p.pendingComments, comments...)
	p.commentsSinceMonologue += len(comments)
}

// TakePendingComments drains and returns the pending comments.
func (p *Process) TakePendingComments() []bus.Comment {
	out := p.pendingComments
	p.pendingComments = nil
	return out
}

func (p *Process) PendingCommentCount() int { return len(p.pendingComments) }

func (p *Process) CommentsSinceMonologue() int { return p.commentsSinceMonologue }

// ResetCommentCounter is called after a monologue or integrated response
// has been delivered.
func (p *Process) ResetCommentCounter() { p.commentsSinceMonologue = 0 }

func (p *Process) SilentTicks() int     { return p.silentTicks }
func (p *Process) BumpSilentTicks() int { p.silentTicks++; return p.silentTicks }
func (p *Process) ResetSilentTicks()    { p.silentTicks = 0 }
