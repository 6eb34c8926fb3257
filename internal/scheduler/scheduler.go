// Package scheduler runs the pipeline jobs on fixed intervals.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type job struct {
	name  string
	every time.Duration
	fn    func(context.Context)
}

// Scheduler runs registered jobs on fixed intervals. At most one instance of
// each job runs at a time: a tick that would overlap a still-running previous
// tick is skipped. A panic out of one run does not stop subsequent ticks.
type Scheduler struct {
	log  *slog.Logger
	jobs []job
}

// New creates an empty Scheduler.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers a named job to run at the given interval.
func (s *Scheduler) Add(name string, every time.Duration, fn func(context.Context)) {
	s.jobs = append(s.jobs, job{name: name, every: every, fn: fn})
}

// Run starts all registered jobs, triggering each once immediately, and
// blocks until ctx is cancelled. It then waits for in-flight runs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	cl := &cronLogger{log: s.log}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))

	for _, j := range s.jobs {
		fn, name := j.fn, j.name
		id := c.Schedule(cron.Every(j.every), cron.FuncJob(func() {
			s.log.Debug("job tick", "job", name)
			fn(ctx)
		}))
		s.log.Info("job scheduled", "job", name, "interval", j.every)

		// Immediate first run, through the same wrapper chain so the
		// run-lock also covers it.
		go c.Entry(id).WrappedJob.Run()
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
