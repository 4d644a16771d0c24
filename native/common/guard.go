package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports the pause flag kept in state for a module name, one of
// "lending", "lock", or "settlement".
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects a mutating engine call while its module is paused. A nil view
// or an empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
