package paramsync

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock is the time source of the coordinator.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// task runs fn on a fixed interval until stopped. Unlike a bare ticker it
// can be stopped and started again.
type task struct {
	name     string
	interval time.Duration
	fn       func()
	logger   *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newTask(name string, interval time.Duration, fn func(), logger *zap.Logger) *task {
	return &task{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start starts the periodic loop
func (t *task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.interval <= 0 {
		return
	}

	t.running = true
	t.stopChan = make(chan struct{})
	t.wg.Add(1)

	go t.loop(t.stopChan)

	t.logger.Debug("Task started",
		zap.String("task", t.name),
		zap.Duration("interval", t.interval))
}

// Stop stops the loop and waits for a running fn to return
func (t *task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	close(t.stopChan)
	t.running = false
	t.mu.Unlock()

	t.wg.Wait()

	t.logger.Debug("Task stopped", zap.String("task", t.name))
}

// IsRunning reports whether the loop is active
func (t *task) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *task) loop(stop <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.fn()
		}
	}
}
