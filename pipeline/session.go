package pipeline

import (
	"go.uber.org/atomic"
)

const (
	// DefaultThreshold is the starting maximum distance in millimeters.
	DefaultThreshold int64 = 2000
	// ThresholdStep is how far one key press moves the maximum distance.
	ThresholdStep int64 = 10
	// MinThreshold is the lowest maximum distance the keys can reach. Zero depth means no reading.
	MinThreshold int64 = 0
)

// Session is the interactive state of a capture run. It is only mutated from the capture loop.
type Session struct {
	// Threshold is the maximum distance in millimeters; farther samples are saturated.
	Threshold int64
	// Recording enables persisting processed frame pairs.
	Recording bool
	// FrameCount is the index the next persisted pair is saved under.
	FrameCount uint64
}

// NewSession returns a session at the default threshold with recording off.
func NewSession() *Session {
	return &Session{Threshold: DefaultThreshold}
}

// ShutdownToken is set once to stop the capture loop and is never cleared. It may be triggered from any
// goroutine.
type ShutdownToken struct {
	flag atomic.Bool
}

// Trigger requests shutdown.
func (t *ShutdownToken) Trigger() {
	t.flag.Store(true)
}

// Triggered reports whether shutdown was requested.
func (t *ShutdownToken) Triggered() bool {
	return t.flag.Load()
}

// Action is the effect a key press had.
type Action int

// Key actions.
const (
	ActionNone Action = iota
	ActionQuit
	ActionToggleRecording
	ActionThresholdDown
	ActionThresholdUp
)

func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionToggleRecording:
		return "toggle recording"
	case ActionThresholdDown:
		return "threshold down"
	case ActionThresholdUp:
		return "threshold up"
	case ActionNone:
		fallthrough
	default:
		return "none"
	}
}

// HandleKey applies key to the session and token.
func HandleKey(s *Session, tok *ShutdownToken, key rune) Action {
	switch key {
	case 'q', 'Q':
		tok.Trigger()
		return ActionQuit
	case 'r', 'R':
		s.Recording = !s.Recording
		return ActionToggleRecording
	case '-':
		s.Threshold = max(s.Threshold-ThresholdStep, MinThreshold)
		return ActionThresholdDown
	case '=':
		s.Threshold += ThresholdStep
		return ActionThresholdUp
	default:
		return ActionNone
	}
}
