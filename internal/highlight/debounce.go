package highlight

import (
	"sync"
	"time"
)

// Debouncer runs only the most recently scheduled task, once input has been
// quiet for the configured delay.
//
// All methods are safe for concurrent use. A sequence number guards against
// a timer that fired just as it was replaced.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	seq   uint64
	task  func()
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule cancels any pending task and schedules fn after the delay.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.task = fn

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq || d.task == nil {
			d.mu.Unlock()
			return
		}
		task := d.task
		d.task = nil
		d.timer = nil
		d.mu.Unlock()
		task()
	})
}

// Flush runs the pending task now, if there is one.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	task := d.task
	d.task = nil
	d.mu.Unlock()

	if task != nil {
		task()
	}
}

// Cancel drops the pending task. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	pending := d.task != nil
	d.task = nil
	return pending
}

// Pending reports whether a task is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.task != nil
}
