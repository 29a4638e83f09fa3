package jobs

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/riftwatch/smurfwatch/errors"
)

// memoryLogInterval is how many ticks pass between scheduler health
// log lines.
const memoryLogInterval = 300

// Scheduler fires enabled job configurations on their intervals. One
// goroutine per fire; at most one in-flight execution per
// configuration.
type Scheduler struct {
	configs *ConfigStore
	execs   *ExecutionStore
	runner  *Runner
	tick    time.Duration
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	inFlight map[int64]bool
	nextRun  map[int64]time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeNow func() time.Time

	proc *process.Process
}

// NewScheduler creates a scheduler ticking at the given interval.
func NewScheduler(configs *ConfigStore, execs *ExecutionStore, runner *Runner, tick time.Duration, logger *zap.SugaredLogger) *Scheduler {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Scheduler{
		configs:  configs,
		execs:    execs,
		runner:   runner,
		tick:     tick,
		logger:   logger,
		inFlight: make(map[int64]bool),
		nextRun:  make(map[int64]time.Time),
		timeNow:  time.Now,
		proc:     proc,
	}
}

// Start recovers crashed executions and begins the scheduling loop in
// a background goroutine. Call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	// Recovery runs before the first tick so a recovered
	// configuration is immediately eligible again.
	interrupted, err := s.execs.MarkInterrupted(ctx)
	if err != nil {
		return err
	}
	if interrupted > 0 {
		s.logger.Warnw("Recovered interrupted executions from previous run",
			"count", interrupted)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Infow("Scheduler started", "tick", s.tick)
	return nil
}

// Stop cancels the loop and waits for in-flight executions to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Infow("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx)
			ticks++
			if ticks%memoryLogInterval == 0 {
				s.logHealth()
			}
		}
	}
}

// dispatch fires every due configuration. Configurations are reloaded
// each tick so admin changes take effect without restart.
func (s *Scheduler) dispatch(ctx context.Context) {
	configs, err := s.configs.Enabled(ctx)
	if err != nil {
		s.logger.Errorw("Failed to load job configurations", "error", err)
		return
	}

	now := s.timeNow()
	enabled := make(map[int64]bool, len(configs))

	for _, cfg := range configs {
		enabled[cfg.ID] = true

		s.mu.Lock()
		if s.inFlight[cfg.ID] {
			s.mu.Unlock()
			continue
		}
		next, seen := s.nextRun[cfg.ID]
		if seen && now.Before(next) {
			s.mu.Unlock()
			continue
		}
		s.inFlight[cfg.ID] = true
		s.nextRun[cfg.ID] = now.Add(cfg.Interval)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.fire(ctx, cfg)
	}

	// Drop schedule state for removed or disabled configurations
	s.mu.Lock()
	for id := range s.nextRun {
		if !enabled[id] && !s.inFlight[id] {
			delete(s.nextRun, id)
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) fire(ctx context.Context, cfg *JobConfiguration) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, cfg.ID)
		s.mu.Unlock()
	}()

	if _, err := s.runner.Run(ctx, cfg); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.logger.Debugw("Skipped fire, job still running", "job", cfg.Name)
			return
		}
		s.logger.Errorw("Job run failed to record",
			"job", cfg.Name,
			"error", err)
	}
}

// logHealth emits process memory usage alongside scheduler state, the
// first place a leaking job body shows up.
func (s *Scheduler) logHealth() {
	s.mu.Lock()
	inFlight := len(s.inFlight)
	scheduled := len(s.nextRun)
	s.mu.Unlock()

	fields := []interface{}{
		"in_flight", inFlight,
		"scheduled", scheduled,
	}
	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			fields = append(fields, "rss_mb", mem.RSS/(1024*1024))
		}
	}
	s.logger.Infow("Scheduler health", fields...)
}
