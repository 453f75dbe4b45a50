package summary

import (
	"context"
	"fmt"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Scheduler fires a backup end-of-day summary in case the stream is still
// running when the day rolls over. The job is skipped when a summary was
// already written for the date.
type Scheduler struct {
	expr   string
	writer *Writer
	onFire func()
	cron   *rcron.Cron
}

// NewScheduler builds a scheduler on a six-field cron expression. onFire
// runs on the cron goroutine and should only enqueue work.
func NewScheduler(expr string, writer *Writer, onFire func()) *Scheduler {
	return &Scheduler{expr: expr, writer: writer, onFire: onFire}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = rcron.New(rcron.WithSeconds())
	_, err := s.cron.AddFunc(s.expr, func() {
		if s.writer.DailyDone(time.Now()) {
			log.Printf("[summary] daily backup already written, skipping")
			return
		}
		log.Printf("[summary] daily backup triggered")
		s.onFire()
	})
	if err != nil {
		return fmt.Errorf("register daily summary %q: %w", s.expr, err)
	}
	s.cron.Start()
	log.Printf("[summary] daily backup scheduled at %q", s.expr)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
