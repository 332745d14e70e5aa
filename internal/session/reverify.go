package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// interval is a constant-delay schedule that, unlike cron.Every, keeps
// sub-second precision.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// reverifier owns the scheduler for the periodic verification job. At most
// one job is scheduled at a time.
type reverifier struct {
	cron    *cron.Cron
	every   interval
	entry   cron.EntryID
	running bool
}

func newReverifier(every time.Duration, logger zerolog.Logger) *reverifier {
	cl := cronLogger{logger: logger.With().Str("component", "reverify").Logger()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Start()

	return &reverifier{cron: c, every: interval(every)}
}

// schedule registers job unless one is already scheduled. Callers hold the store lock.
func (r *reverifier) schedule(job func()) {
	if r.running {
		return
	}
	r.entry = r.cron.Schedule(r.every, cron.FuncJob(job))
	r.running = true
}

// cancel removes the scheduled job. Callers hold the store lock.
func (r *reverifier) cancel() {
	if !r.running {
		return
	}
	r.cron.Remove(r.entry)
	r.running = false
}

// stop cancels the job and waits for a tick that is already running
func (r *reverifier) stop() {
	<-r.cron.Stop().Done()
}

func (r *reverifier) String() string {
	return fmt.Sprintf("every %s", time.Duration(r.every))
}
