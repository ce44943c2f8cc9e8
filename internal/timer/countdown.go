package timer

import (
	"context"
	"sync"
	"time"
)

// DefaultSyncEvery is how many running seconds pass between sync emissions.
const DefaultSyncEvery = 5

// Countdown is the client side of the protocol: a local one-second loop over a
// Machine that emits periodic syncs and a timeout when it reaches zero.
type Countdown struct {
	machine   *Machine
	syncEvery int
	emit      func(Control)

	mu        sync.Mutex
	sinceSync int
	onExpire  func()
	expired   bool
}

// NewCountdown wraps m. emit is called for every control this side originates.
func NewCountdown(m *Machine, syncEvery int, emit func(Control)) *Countdown {
	if syncEvery <= 0 {
		syncEvery = DefaultSyncEvery
	}
	if emit == nil {
		emit = func(Control) {}
	}
	return &Countdown{machine: m, syncEvery: syncEvery, emit: emit}
}

// OnExpire registers the hook run once when the countdown ends, locally or
// because the other side sent timeout.
func (c *Countdown) OnExpire(fn func()) {
	c.mu.Lock()
	c.onExpire = fn
	c.mu.Unlock()
}

func (c *Countdown) Machine() *Machine {
	return c.machine
}

// Start begins or resumes the countdown and announces it.
func (c *Countdown) Start() bool {
	ctl, ok := c.machine.Local(ActionStart)
	if ok {
		c.resetSync()
		c.emit(ctl)
	}
	return ok
}

// Pause stops the countdown and announces it.
func (c *Countdown) Pause() bool {
	ctl, ok := c.machine.Local(ActionPause)
	if ok {
		c.emit(ctl)
	}
	return ok
}

// End finishes the conversation early and announces timeout to the other side.
func (c *Countdown) End() bool {
	ctl, ok := c.machine.Local(ActionTimeout)
	if ok {
		c.emit(ctl)
		c.expire()
	}
	return ok
}

// Receive applies a control from the other participant.
func (c *Countdown) Receive(ctl Control) Outcome {
	out := c.machine.Apply(ctl)
	if out != Applied {
		return out
	}
	switch ctl.Action {
	case ActionTimeout:
		c.expire()
	case ActionStart, ActionSync:
		c.resetSync()
	}
	return out
}

// Step advances the countdown by one second.
func (c *Countdown) Step() {
	if !c.machine.Running() {
		return
	}
	if c.machine.Tick() {
		c.emit(c.machine.Announce(ActionTimeout))
		c.expire()
		return
	}

	c.mu.Lock()
	c.sinceSync++
	due := c.sinceSync >= c.syncEvery
	if due {
		c.sinceSync = 0
	}
	c.mu.Unlock()

	if due {
		c.emit(c.machine.Announce(ActionSync))
	}
}

// Run steps once per second until ctx is done, the countdown expires or the
// machine leaves its pairing.
func (c *Countdown) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Step()
			if c.machine.State() == StateExpired || c.machine.Left() {
				return
			}
		}
	}
}

func (c *Countdown) resetSync() {
	c.mu.Lock()
	c.sinceSync = 0
	c.mu.Unlock()
}

func (c *Countdown) expire() {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	fn := c.onExpire
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// DefaultResyncAttempts bounds the burst of resync requests after a reconnect.
const DefaultResyncAttempts = 3

// DefaultResyncInterval spaces the requests of one resync burst.
const DefaultResyncInterval = 500 * time.Millisecond

// Resync sends up to attempts resync requests spaced by interval. It stops early
// when ctx is cancelled, which callers do once an answer arrives.
func Resync(ctx context.Context, attempts int, interval time.Duration, send func() error) (int, error) {
	if attempts <= 0 {
		attempts = DefaultResyncAttempts
	}
	sent := 0
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return sent, nil
		}
		if err := send(); err != nil {
			return sent, err
		}
		sent++
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return sent, nil
		case <-time.After(interval):
		}
	}
	return sent, nil
}

// OffsetEstimator keeps a moving estimate of one-way latency (half the
// heartbeat round trip). Diagnostic only; it never adjusts timeLeft.
type OffsetEstimator struct {
	mu      sync.Mutex
	samples []time.Duration
	size    int
}

func NewOffsetEstimator(size int) *OffsetEstimator {
	if size <= 0 {
		size = 8
	}
	return &OffsetEstimator{size: size}
}

// Observe records a heartbeat sent at sent and acknowledged at received, and
// returns that sample's one-way estimate.
func (o *OffsetEstimator) Observe(sent, received time.Time) time.Duration {
	rtt := received.Sub(sent)
	if rtt < 0 {
		rtt = 0
	}
	half := rtt / 2

	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, half)
	if len(o.samples) > o.size {
		o.samples = o.samples[len(o.samples)-o.size:]
	}
	return half
}

// Offset returns the mean of the retained samples.
func (o *OffsetEstimator) Offset() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range o.samples {
		total += s
	}
	return total / time.Duration(len(o.samples))
}
