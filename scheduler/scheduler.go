package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownTask is returned by RunNow for a name with no ticker.
var ErrUnknownTask = errors.New("scheduler: unknown task")

// TaskFn is the function signature for scheduled tasks. The context is
// cancelled when the scheduler stops.
type TaskFn func(ctx context.Context) error

// TaskInfo is a snapshot of a ticker task.
type TaskInfo struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*time.Timer
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

type tickerEntry struct {
	fn       TaskFn
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}

	runMu sync.Mutex // one run at a time per task
	stats TaskInfo   // guarded by Scheduler.mu
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove existing.
	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		fn:       fn,
		interval: interval,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
		stats:    TaskInfo{Name: name, Interval: interval},
	}
	s.tickers[name] = entry

	go func() {
		for {
			select {
			case <-entry.ticker.C:
				_ = s.execute(name, entry)
			case <-entry.stopCh:
				entry.ticker.Stop()
				return
			case <-s.ctx.Done():
				entry.ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// RunNow runs a registered ticker task immediately in the caller's
// goroutine and returns its error. It waits for an in-flight run to finish.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	entry, ok := s.tickers[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.execute(name, entry)
}

func (s *Scheduler) execute(name string, entry *tickerEntry) (err error) {
	entry.runMu.Lock()
	defer entry.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
		s.record(entry, err)
	}()
	if err = entry.fn(s.ctx); err != nil {
		s.logger.Warn("scheduler task failed", zap.String("task", name), zap.Error(err))
	}
	return err
}

func (s *Scheduler) record(entry *tickerEntry, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.stats.Runs++
	entry.stats.LastRun = &now
	entry.stats.LastError = ""
	if err != nil {
		entry.stats.Failures++
		entry.stats.LastError = err.Error()
	}
}

// AddDelay runs fn once after the given delay. Scheduling the same name
// again before it fires replaces the pending run.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("delay task panicked",
					zap.String("task", name), zap.Any("recover", r))
			}
			s.mu.Lock()
			if s.timers[name] == t {
				delete(s.timers, name)
			}
			s.mu.Unlock()
		}()
		if s.ctx.Err() != nil {
			return
		}
		if err := fn(s.ctx); err != nil {
			s.logger.Warn("delay task failed", zap.String("task", name), zap.Error(err))
		}
	})
	s.timers[name] = t
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop stops all tasks and cancels the context of running ones.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

// ListTickers returns the names of all registered ticker tasks, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tasks returns run statistics for every ticker task, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tickers))
	for _, e := range s.tickers {
		info := e.stats
		if info.LastRun != nil {
			at := *info.LastRun
			info.LastRun = &at
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
