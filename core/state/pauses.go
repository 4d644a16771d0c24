package state

// IsPaused reports whether a module's mutating operations are halted. The
// flag is persisted so a restart keeps a paused module paused; a small cache
// avoids a database read on every guarded call.
func (m *Manager) IsPaused(module string) bool {
	m.mu.RLock()
	paused, cached := m.pauseSet[module]
	m.mu.RUnlock()
	if cached {
		return paused
	}

	paused, err := m.hasFlag([]byte(prefixPause + module))
	if err != nil {
		return false
	}
	m.mu.Lock()
	m.pauseSet[module] = paused
	m.mu.Unlock()
	return paused
}

// SetPaused persists the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if err := m.setFlag([]byte(prefixPause+module), paused); err != nil {
		return err
	}
	m.mu.Lock()
	m.pauseSet[module] = paused
	m.mu.Unlock()
	return nil
}
