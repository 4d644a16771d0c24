package state

import (
	"hublend/native/lending"
	"hublend/native/lock"
	"hublend/native/settlement"
	"hublend/storage"
)

// stateOverlay bundles a write-buffered Manager with the buffer it commits.
type stateOverlay struct {
	overlay *storage.Overlay
	manager *Manager
}

// SettlementOverlay returns a fresh write-buffered view of the whole state.
// The settlement coordinator applies a batch through it and commits only when
// every action succeeded.
func (m *Manager) SettlementOverlay() (settlement.Overlay, error) {
	ov := storage.NewOverlay(m.db)
	return &stateOverlay{overlay: ov, manager: NewManager(ov)}, nil
}

func (s *stateOverlay) LedgerState() lending.EngineState        { return s.manager }
func (s *stateOverlay) LockState() lock.EngineState             { return s.manager }
func (s *stateOverlay) SettlementState() settlement.EngineState { return s.manager }

func (s *stateOverlay) Commit() error { return s.overlay.Commit() }
func (s *stateOverlay) Discard()      { s.overlay.Close() }
