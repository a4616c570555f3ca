package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the recovery sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

const sweepLockKey = "submission:sweep:lock"

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript renews the lock only while it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Sweeper is the work a Scheduler triggers.
type Sweeper interface {
	ProcessPendingJobs(ctx context.Context) error
}

type SchedulerOptions struct {
	Schedule string        // cron spec, default every 5 minutes
	OnStart  bool          // run one sweep immediately
	Redis    *redis.Client // optional cross-replica lock
	LockTTL  time.Duration // default 5m, renewed every third of it while sweeping
}

// Scheduler wraps robfig/cron and runs the recovery sweep.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	opts    SchedulerOptions
	logger  *slog.Logger

	entry cron.EntryID
	wg    sync.WaitGroup
}

func NewScheduler(sweeper Sweeper, opts SchedulerOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSweepSchedule
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		sweeper: sweeper,
		opts:    opts,
		logger:  logger,
	}
}

// Start registers the sweep and starts the cron loop. With OnStart set, one
// sweep also runs right away, sharing the overlap guard with scheduled ticks.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.opts.Schedule, func() { s.sweep(ctx) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info("sweep.scheduler.started", "schedule", s.opts.Schedule, "locked", s.opts.Redis != nil)

	if s.opts.OnStart {
		job := s.cron.Entry(id).WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("sweep.scheduler.stopped")
}

// RunOnce performs one sweep outside the schedule. ran is false when another
// replica holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) (ran bool, err error) {
	release, ok, err := s.lock(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer release()
	return true, s.sweeper.ProcessPendingJobs(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	ran, err := s.RunOnce(ctx)
	switch {
	case err != nil:
		s.logger.Error("sweep.run.failed", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
	case !ran:
		s.logger.Info("sweep.run.skipped", "reason", "lock held elsewhere")
	default:
		s.logger.Info("sweep.run.ok", "elapsed_ms", time.Since(start).Milliseconds())
	}
}

func (s *Scheduler) lock(ctx context.Context) (release func(), ok bool, err error) {
	if s.opts.Redis == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err = s.opts.Redis.SetNX(ctx, sweepLockKey, token, s.opts.LockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.keepLock(ctx, token, stop, done)
	return func() {
		close(stop)
		<-done
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(rctx, s.opts.Redis, []string{sweepLockKey}, token).Err(); err != nil {
			s.logger.Warn("sweep.lock.release_failed", "err", err)
		}
	}, true, nil
}

// keepLock extends the lock until stop is closed, so a sweep longer than the
// TTL keeps it. A lost lock is logged and no longer renewed.
func (s *Scheduler) keepLock(ctx context.Context, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(max(s.opts.LockTTL/3, time.Millisecond))
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		n, err := extendScript.Run(rctx, s.opts.Redis, []string{sweepLockKey}, token, s.opts.LockTTL.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			s.logger.Warn("sweep.lock.extend_failed", "err", err)
		case n == 0:
			s.logger.Warn("sweep.lock.lost")
			return
		}
	}
}

// cronLogger routes robfig/cron's logging into slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron."+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron."+msg, append(kv, "err", err)...)
}
