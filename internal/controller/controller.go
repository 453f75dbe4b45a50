package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/chat"
	"github.com/harunalabs/aituber/internal/config"
	"github.com/harunalabs/aituber/internal/handler"
	"github.com/harunalabs/aituber/internal/mode"
	"github.com/harunalabs/aituber/internal/prompt"
	"github.com/harunalabs/aituber/internal/shutdown"
	"github.com/harunalabs/aituber/internal/summary"
)

// Controller runs the dispatch loop: the sole consumer of the event
// queue and the only goroutine that mutates process state or history.
type Controller struct {
	cfg      *config.Config
	deps     *handler.Deps
	registry *handler.Registry
	queue    *bus.Queue
	signal   *shutdown.Signal
	source   chat.Source
	sched    *summary.Scheduler
	rng      *rand.Rand

	// Injected for tests; nil means real OS signals.
	SignalChan chan os.Signal

	nextFillerAt time.Time
}

func New(cfg *config.Config, deps *handler.Deps, source chat.Source) *Controller {
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		registry: handler.Build(deps),
		queue:    bus.NewQueue(),
		signal:   shutdown.NewSignal(),
		source:   source,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Queue exposes the event queue to external producers (tests, scheduler).
func (c *Controller) Queue() *bus.Queue { return c.queue }

// Signal exposes the shutdown signal for external wiring.
func (c *Controller) Signal() *shutdown.Signal { return c.signal }

// Registry exposes the handler registry (tests register probes on it).
func (c *Controller) Registry() *handler.Registry { return c.registry }

// Run starts producers and consumes the queue until the shutdown
// sequence completes. Returns nil on graceful completion.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdown.NotifyOnInterrupt(ctx, c.signal, c.SignalChan)
	shutdown.NewMarkerWatcher(c.cfg.ShutdownMarkerPath(), c.signal).Start(ctx)

	if c.source != nil {
		if err := c.source.Start(ctx); err != nil {
			return fmt.Errorf("start chat source: %w", err)
		}
		defer c.source.Stop()
		go c.pumpComments(ctx)
	}

	c.sched = summary.NewScheduler(c.cfg.Summary.BackupCron, c.deps.Summaries, func() {
		c.queue.Enqueue(bus.PrepareStreamSummary{
			Meta:   bus.NewMeta(),
			TaskID: uuid.NewString(),
			Reason: "daily",
		})
	})
	if err := c.sched.Start(ctx); err != nil {
		log.Printf("[controller] daily summary disabled: %v", err)
	}

	c.armFiller()
	c.queue.Enqueue(bus.AppStarted{Meta: bus.NewMeta()})
	log.Printf("[controller] dispatch loop started")

	for c.deps.Process.Running() {
		item, ok := c.queue.Dequeue(c.cfg.DequeueTimeout())
		if !ok {
			if reason, requested := c.consumeShutdown(); requested {
				c.runShutdownSequence(ctx, reason)
				break
			}
			c.deps.Process.BumpSilentTicks()
			c.ensureTickArmed()
			c.maybeFiller()
			continue
		}

		c.deps.Process.ResetSilentTicks()
		if err := c.dispatch(ctx, item); err != nil {
			if errors.Is(err, mode.ErrNoEligibleMode) {
				// A broken weight table can only produce silence; give up
				// instead of looping on it.
				c.deps.Process.Terminate()
				return fmt.Errorf("dispatch %s: %w", item.Kind(), err)
			}
			log.Printf("[controller] handler error for %s: %v", item.Kind(), err)
		}
	}

	log.Printf("[controller] dispatch loop exited")
	return nil
}

// dispatch routes one item, isolating handler panics so a single bad
// handler cannot take the loop down.
func (c *Controller) dispatch(ctx context.Context, item bus.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic for %s: %v", item.Kind(), r)
		}
	}()

	followups, err := c.registry.Dispatch(ctx, item)
	c.schedule(followups)
	c.armFiller()
	return err
}

func (c *Controller) schedule(followups []bus.Followup) {
	for _, f := range followups {
		if f.After <= 0 {
			c.queue.Enqueue(f.Item)
			continue
		}
		item := f.Item
		time.AfterFunc(f.After, func() {
			c.queue.Enqueue(item)
		})
	}
}

// consumeShutdown checks both shutdown surfaces during an empty-dequeue
// window. The marker path is re-checked directly in case the watcher
// missed an event.
func (c *Controller) consumeShutdown() (string, bool) {
	if reason, ok := c.signal.TryConsume(); ok {
		return reason, true
	}
	if shutdown.ConsumeMarker(c.cfg.ShutdownMarkerPath()) {
		return "marker", true
	}
	return "", false
}

// ensureTickArmed revives the monologue cycle when the tick chain was
// dropped, e.g. by a cool-down skip of the prepare command. Runs only on
// empty-dequeue windows, where nothing in flight could still re-arm it.
func (c *Controller) ensureTickArmed() {
	p := c.deps.Process
	if !p.Greeted() || p.Busy() || p.TickArmed() {
		return
	}
	log.Printf("[controller] tick chain lost, re-arming")
	p.ArmTick()
	c.schedule([]bus.Followup{{
		Item:  bus.MonologueTick{Meta: bus.NewMeta()},
		After: c.cfg.Cadence(),
	}})
}

// fillerMinSilentTicks is how many consecutive empty dequeue windows
// must pass before a filler phrase is considered.
const fillerMinSilentTicks = 5

// maybeFiller speaks a canned line when the stream has gone quiet with
// nothing in flight.
func (c *Controller) maybeFiller() {
	if !c.cfg.Stream.FillerEnabled || c.deps.Process.Busy() || !c.deps.Process.Greeted() {
		return
	}
	if c.deps.Process.SilentTicks() < fillerMinSilentTicks {
		return
	}
	if time.Now().Before(c.nextFillerAt) {
		return
	}
	phrase := prompt.FillerPhrases[c.rng.Intn(len(prompt.FillerPhrases))]
	c.queue.Enqueue(bus.PlaySpeech{
		Meta:      bus.NewMeta(),
		TaskID:    uuid.NewString(),
		Sentences: []string{phrase},
	})
	c.armFiller()
}

// armFiller re-arms the silence window: 15 to 30 seconds from now.
func (c *Controller) armFiller() {
	c.nextFillerAt = time.Now().Add(15*time.Second + time.Duration(c.rng.Intn(15))*time.Second)
}

func (c *Controller) pumpComments(ctx context.Context) {
	for {
		select {
		case comment, ok := <-c.source.Comments():
			if !ok {
				return
			}
			batch := []bus.Comment{comment}
			// Coalesce whatever else is already waiting.
		drain:
			for len(batch) < 10 {
				select {
				case next, ok := <-c.source.Comments():
					if !ok {
						break drain
					}
					batch = append(batch, next)
				default:
					break drain
				}
			}
			c.queue.Enqueue(bus.CommentsReceived{Meta: bus.NewMeta(), Comments: batch})
		case <-ctx.Done():
			return
		}
	}
}

// runShutdownSequence walks Running -> Farewell-Preparing ->
// Farewell-Speaking -> Summary-Preparing -> Terminated. Every phase has
// a bounded timeout; a stalled collaborator delays exit, never blocks it.
func (c *Controller) runShutdownSequence(ctx context.Context, reason string) {
	p := c.deps.Process
	log.Printf("[shutdown] sequence started (%s)", reason)

	// Farewell-Preparing
	log.Printf("[shutdown] phase: farewell-preparing")
	farewellCtx, cancel := context.WithTimeout(ctx, c.cfg.FarewellTimeout())
	sentences, err := c.deps.Gen.Complete(farewellCtx, c.deps.Prompts.Farewell(c.deps.History.Tail(10)))
	cancel()
	if err != nil {
		log.Printf("[shutdown] farewell generation failed, skipping: %v", err)
	} else {
		// Farewell-Speaking: intentionally blocks the loop. Nothing else
		// may run once shutdown has begun.
		log.Printf("[shutdown] phase: farewell-speaking")
		c.deps.History.Append("ai", strings.Join(sentences, " "))
		for _, s := range sentences {
			c.deps.Captions.Display(s)
			speakCtx, cancel := context.WithTimeout(ctx, c.cfg.SpeakTimeout())
			err := c.deps.Speaker.Speak(speakCtx, s)
			cancel()
			if err != nil {
				log.Printf("[shutdown] farewell playback failed, proceeding: %v", err)
				break
			}
		}
	}

	// Summary-Preparing
	log.Printf("[shutdown] phase: summary-preparing")
	sumCtx, cancel := context.WithTimeout(ctx, c.cfg.SummaryTimeout())
	_, err = c.registry.Dispatch(sumCtx, bus.PrepareStreamSummary{
		Meta:   bus.NewMeta(),
		TaskID: uuid.NewString(),
		Reason: "shutdown",
	})
	cancel()
	if err != nil {
		log.Printf("[shutdown] summary failed, proceeding: %v", err)
	}

	logPath := c.deps.Summaries.ConversationLogPath(p.StartedAt())
	if err := c.deps.History.ArchiveTo(logPath); err != nil {
		log.Printf("[shutdown] archive history failed: %v", err)
	}

	uptime := p.Uptime()
	if _, err := c.registry.Dispatch(ctx, bus.StreamEnded{
		Meta:     bus.NewMeta(),
		Duration: uptime,
		Reason:   reason,
	}); err != nil {
		log.Printf("[shutdown] stream-ended handler: %v", err)
	}

	// Terminated
	p.Terminate()
	log.Printf("[shutdown] phase: terminated after %s", uptime.Round(time.Second))
}
