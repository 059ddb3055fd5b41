package common

import "errors"

// Mode is the global operating mode of the marketplace system. Ordinary order
// flow runs in ModeNormal; ModeEmergency disables it and enables owner
// self-service withdrawal instead.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeEmergency
)

var (
	ErrPaused    = errors.New("system paused")
	ErrNotPaused = errors.New("system not paused")
)

// ModeView exposes the current system mode to the engines.
type ModeView interface {
	Mode() Mode
}

// String returns the lowercase mode label.
func (m Mode) String() string {
	if m == ModeEmergency {
		return "emergency"
	}
	return "normal"
}

// RequireMode fails unless the view reports the wanted mode. A nil view is
// treated as ModeNormal so engines remain usable without explicit wiring.
func RequireMode(v ModeView, want Mode) error {
	mode := ModeNormal
	if v != nil {
		mode = v.Mode()
	}
	if mode == want {
		return nil
	}
	if want == ModeNormal {
		return ErrPaused
	}
	return ErrNotPaused
}

// ModeSwitch is the concrete two-state switch shared by the vault and the
// marketplace. Transitions happen only through the privileged pause toggle.
type ModeSwitch struct {
	mode Mode
}

// Mode implements ModeView.
func (s *ModeSwitch) Mode() Mode {
	if s == nil {
		return ModeNormal
	}
	return s.mode
}

// Set transitions the switch to the supplied mode.
func (s *ModeSwitch) Set(mode Mode) {
	if s == nil {
		return
	}
	s.mode = mode
}
