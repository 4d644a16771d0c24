package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hublend/native/lock"
	"hublend/native/settlement"
)

type lockView struct {
	IntentID   string `json:"intentId"`
	IntentType string `json:"intentType"`
	User       string `json:"user"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	Relayer    string `json:"relayer"`
	LockedAt   int64  `json:"lockedAt"`
	Expiry     int64  `json:"expiry"`
	Status     string `json:"status"`
}

func viewLock(l *lock.Lock) lockView {
	return lockView{
		IntentID:   formatID(l.IntentID),
		IntentType: l.IntentType.String(),
		User:       formatAddress(l.User),
		Asset:      l.Asset,
		Amount:     formatAmount(l.Amount),
		Relayer:    formatAddress(l.Relayer),
		LockedAt:   l.LockTimestamp,
		Expiry:     l.Expiry,
		Status:     l.Status.String(),
	}
}

func (s *Server) createLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntentType  string `json:"intentType"`
		User        string `json:"user"`
		Asset       string `json:"asset"`
		Amount      string `json:"amount"`
		HubDomain   uint64 `json:"hubDomain"`
		SpokeDomain uint64 `json:"spokeDomain"`
		Nonce       uint64 `json:"nonce"`
		Deadline    int64  `json:"deadline"`
		Signature   string `json:"signature"`
		Relayer     string `json:"relayer"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	intentType, err := parseIntentType(req.IntentType)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	relayer, err := parseAddress(req.Relayer)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := parseHexBytes(req.Signature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	intent := &lock.Intent{
		IntentType:  intentType,
		User:        user,
		Asset:       req.Asset,
		Amount:      amount,
		HubDomain:   req.HubDomain,
		SpokeDomain: req.SpokeDomain,
		Nonce:       req.Nonce,
		Deadline:    req.Deadline,
	}
	created, err := s.cfg.Locks.Lock(intent, sig, relayer)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.LockOpened()
	}
	s.writeJSON(w, http.StatusCreated, viewLock(created))
}

func (s *Server) cancelLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntentID string `json:"intentId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	id, err := parseID(req.IntentID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Locks.Cancel(id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.LockClosed()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"intentId": req.IntentID, "status": lock.LockCancelled.String()})
}

func (s *Server) getLock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.cfg.Locks.Get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, lock.ErrLockNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, viewLock(record))
}

func (s *Server) recordEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller     string `json:"caller"`
		IntentID   string `json:"intentId"`
		IntentType string `json:"intentType"`
		User       string `json:"user"`
		Asset      string `json:"asset"`
		Amount     string `json:"amount"`
		Fee        string `json:"fee"`
		Relayer    string `json:"relayer"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	intentID, err := parseID(req.IntentID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	intentType, err := parseIntentType(req.IntentType)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	fee, err := parseAmount(req.Fee)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	relayer, err := parseAddress(req.Relayer)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	evidence := &settlement.FillEvidence{
		IntentID:   intentID,
		IntentType: intentType,
		User:       user,
		Asset:      req.Asset,
		Amount:     amount,
		Fee:        fee,
		Relayer:    relayer,
	}
	if err := s.cfg.Settlement.RecordFillEvidence(caller, evidence); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"intentId": req.IntentID, "recorded": "true"})
}
