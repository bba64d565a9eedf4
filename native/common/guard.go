package common

import "errors"

// ErrModulePaused is returned when a paused module rejects a state mutation.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a given module is currently paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty
// module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a simple in-memory PauseView with per-module switches.
type Pauses struct {
	paused map[string]bool
}

// NewPauses returns an empty pause table; nothing is paused by default.
func NewPauses() *Pauses {
	return &Pauses{paused: make(map[string]bool)}
}

// SetPaused flips the pause switch for the named module.
func (p *Pauses) SetPaused(module string, paused bool) {
	if p == nil || module == "" {
		return
	}
	if p.paused == nil {
		p.paused = make(map[string]bool)
	}
	p.paused[module] = paused
}

// IsPaused implements PauseView.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil || p.paused == nil {
		return false
	}
	return p.paused[module]
}
