package timer

import (
	"sync"
	"time"
)

// Action is a timer control sent between the two members of a pairing.
type Action string

const (
	ActionStart   Action = "start"
	ActionPause   Action = "pause"
	ActionSync    Action = "sync"
	ActionTimeout Action = "timeout"
)

func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionPause, ActionSync, ActionTimeout:
		return true
	}
	return false
}

// State of one participant's countdown.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateExpired State = "expired"
)

// DefaultDuration is the conversation length in seconds.
const DefaultDuration = 180

// Control is the wire form of a timer action.
type Control struct {
	PairingID string `json:"pairingId"`
	Action    Action `json:"action"`
	TimeLeft  int    `json:"timeLeft"`
	SenderID  string `json:"senderId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix millis, stamped by the relay
}

// Outcome reports what Apply did with a control.
type Outcome int

const (
	Applied Outcome = iota
	IgnoredSelf
	IgnoredPairing
	IgnoredFinished
	IgnoredInvalid
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case IgnoredSelf:
		return "ignored_self"
	case IgnoredPairing:
		return "ignored_pairing"
	case IgnoredFinished:
		return "ignored_finished"
	default:
		return "ignored_invalid"
	}
}

// Machine is one participant's view of the shared countdown for a single
// pairing. It never reads a clock; Tick is driven by the caller.
type Machine struct {
	mu        sync.Mutex
	selfID    string
	pairingID string
	state     State
	timeLeft  int
	left      bool
}

// NewMachine creates an idle machine holding duration seconds. selfID is the
// local sender id used for echo suppression; empty means nothing is an echo.
func NewMachine(selfID, pairingID string, duration int) *Machine {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Machine{
		selfID:    selfID,
		pairingID: pairingID,
		state:     StateIdle,
		timeLeft:  duration,
	}
}

// Apply handles a control received from the other participant.
func (m *Machine) Apply(c Control) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selfID != "" && c.SenderID == m.selfID {
		return IgnoredSelf
	}
	if c.PairingID != m.pairingID {
		return IgnoredPairing
	}
	if m.left || m.state == StateExpired {
		return IgnoredFinished
	}
	if !c.Action.Valid() {
		return IgnoredInvalid
	}

	left := c.TimeLeft
	if left < 0 {
		left = 0
	}

	switch c.Action {
	case ActionStart:
		m.timeLeft = left
		m.state = StateRunning
	case ActionPause:
		m.timeLeft = left
		m.state = StatePaused
	case ActionSync:
		m.timeLeft = left
	case ActionTimeout:
		m.timeLeft = 0
		m.state = StateExpired
	}
	return Applied
}

// Tick advances a running countdown by one second and reports whether it
// reached zero on this tick.
func (m *Machine) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.left || m.state != StateRunning {
		return false
	}
	if m.timeLeft > 0 {
		m.timeLeft--
	}
	if m.timeLeft == 0 {
		m.state = StateExpired
		return true
	}
	return false
}

// Local applies an action originated by this participant and returns the
// control to send to the other side. ok is false when the action does not
// apply in the current state.
func (m *Machine) Local(action Action) (c Control, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.left || m.state == StateExpired || !action.Valid() {
		return Control{}, false
	}

	switch action {
	case ActionStart:
		if m.state == StateRunning {
			return Control{}, false
		}
		m.state = StateRunning
	case ActionPause:
		if m.state != StateRunning {
			return Control{}, false
		}
		m.state = StatePaused
	case ActionTimeout:
		m.timeLeft = 0
		m.state = StateExpired
	}
	return m.announce(action), true
}

// Announce builds a control carrying the current value without changing state.
func (m *Machine) Announce(action Action) Control {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.announce(action)
}

func (m *Machine) announce(action Action) Control {
	return Control{
		PairingID: m.pairingID,
		Action:    action,
		TimeLeft:  m.timeLeft,
		SenderID:  m.selfID,
	}
}

// Rebind changes the local sender id, as after a reconnect under a new
// connection.
func (m *Machine) Rebind(selfID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selfID = selfID
}

// Leave detaches the machine from its pairing; every later control is ignored.
func (m *Machine) Leave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left = true
	if m.state == StateRunning {
		m.state = StatePaused
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) TimeLeft() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeLeft
}

// Running reports whether the local loop should keep decrementing.
func (m *Machine) Running() bool {
	return m.State() == StateRunning
}

func (m *Machine) PairingID() string {
	return m.pairingID
}

// Left reports whether Leave was called.
func (m *Machine) Left() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.left
}

// snapshot returns the state and value atomically
func (m *Machine) snapshot() (State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.timeLeft
}

// NowMillis is the timestamp format used on timer controls.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
