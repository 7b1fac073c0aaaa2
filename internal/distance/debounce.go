package distance

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid calls into one, invoking only the last function
// passed once the quiet period elapses. The booking form uses it to avoid
// spamming the routing service while the user is still dragging map pins.
type Debouncer struct {
	Delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

const DefaultDebounce = 500 * time.Millisecond

func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Delay <= 0 {
		d.Delay = DefaultDebounce
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.Delay, fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
