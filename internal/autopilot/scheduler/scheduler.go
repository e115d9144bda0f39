package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/capability"
	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	autopilotrepo "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/repository"
)

// Scheduler polls on a fixed cadence and, on each tick, evaluates
// every account's enabled capabilities independently. One account's
// failure or slowness never delays another's.
type Scheduler struct {
	settings    autopilotrepo.SettingsRepository
	runners     map[string]capability.Runner
	tickEvery   time.Duration
	taskTimeout time.Duration
	sem         *Semaphore
	now         func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	// inFlight tracks per-capability tasks still running so a slow run
	// is never started twice for the same (account, capability).
	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

func New(settings autopilotrepo.SettingsRepository, runners []capability.Runner, tickEvery, taskTimeout time.Duration, maxConcurrent int) *Scheduler {
	if tickEvery <= 0 {
		tickEvery = 30 * time.Second
	}
	if taskTimeout <= 0 {
		taskTimeout = 45 * time.Second
	}

	byName := make(map[string]capability.Runner, len(runners))
	for _, r := range runners {
		byName[r.Name()] = r
	}

	return &Scheduler{
		settings:    settings,
		runners:     byName,
		tickEvery:   tickEvery,
		taskTimeout: taskTimeout,
		sem:         NewSemaphore(maxConcurrent),
		now:         time.Now,
		stopChan:    make(chan struct{}),
		inFlight:    make(map[string]bool),
	}
}

// Start begins the tick loop in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("[Autopilot] Scheduler started (tick %s, %d capabilities)", s.tickEvery, len(s.runners))

	go func() {
		ticker := time.NewTicker(s.tickEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick(ctx, s.now())
			case <-s.stopChan:
				log.Println("[Autopilot] Scheduler stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the tick loop. In-flight tasks complete but nothing new
// is scheduled.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// tick evaluates every known account against the wall clock given.
// Exposed to tests through simulated clock advancement.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	accounts, err := s.settings.List(ctx)
	if err != nil {
		log.Printf("[Autopilot] Failed to list accounts: %v", err)
		return
	}

	for _, account := range accounts {
		if !account.Enabled {
			continue
		}
		for name, capSettings := range account.Capabilities {
			runner, ok := s.runners[name]
			if !ok || !capSettings.Enabled {
				continue
			}
			if capSettings.Interval() <= 0 {
				continue
			}
			// Armed -> Running only once the capability's own interval
			// has elapsed.
			if !capSettings.LastRunAt.IsZero() && now.Sub(capSettings.LastRunAt) < capSettings.Interval() {
				continue
			}
			s.dispatch(ctx, account.Platform, account.Username, runner, now)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, platform, username string, runner capability.Runner, now time.Time) {
	key := platform + "/" + username + "/" + runner.Name()

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return
	}
	if !s.sem.TryAcquire() {
		// Concurrency cap reached; the capability stays Armed and is
		// re-evaluated next tick without consuming its cadence.
		s.mu.Unlock()
		return
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, key)
			s.mu.Unlock()
			s.sem.Release()
			s.wg.Done()
		}()

		run := s.runOne(ctx, platform, username, runner, now)

		switch run.Outcome {
		case autopilotdomain.RunOutcomeFailed:
			log.Printf("[Autopilot] %s failed for %s/%s: %s", run.Capability, platform, username, run.Err)
		case autopilotdomain.RunOutcomeSuccess:
			log.Printf("[Autopilot] %s succeeded for %s/%s", run.Capability, platform, username)
		}

		// Every terminal outcome stamps LastRunAt: skip and failure
		// both back off instead of hot-looping.
		if err := s.settings.UpdateLastRun(ctx, platform, username, runner.Name(), run.StartedAt); err != nil {
			log.Printf("[Autopilot] Failed to stamp %s run for %s/%s: %v", runner.Name(), platform, username, err)
		}
	}()
}

// runOne executes a single capability with a hard timeout; a hung
// platform call cannot pin a worker.
func (s *Scheduler) runOne(ctx context.Context, platform, username string, runner capability.Runner, startedAt time.Time) autopilotdomain.TaskRun {
	runCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	run := autopilotdomain.TaskRun{
		Platform:   platform,
		Username:   username,
		Capability: runner.Name(),
		StartedAt:  startedAt,
	}

	outcome, err := runner.Run(runCtx, platform, username)
	if err != nil {
		run.Outcome = autopilotdomain.RunOutcomeFailed
		run.Err = err.Error()
		return run
	}
	run.Outcome = outcome
	return run
}
