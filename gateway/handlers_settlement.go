package gateway

import (
	"errors"
	"math/big"
	"net/http"

	"hublend/native/settlement"
)

type creditPayload struct {
	DepositID string `json:"depositId"`
	User      string `json:"user"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
}

type finalizePayload struct {
	IntentID string `json:"intentId"`
	User     string `json:"user"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
	Relayer  string `json:"relayer"`
}

type batchPayload struct {
	BatchID     string            `json:"batchId"`
	HubDomain   uint64            `json:"hubDomain"`
	SpokeDomain uint64            `json:"spokeDomain"`
	ActionsRoot string            `json:"actionsRoot"`
	Supplies    []creditPayload   `json:"supplies"`
	Repays      []creditPayload   `json:"repays"`
	Borrows     []finalizePayload `json:"borrows"`
	Withdraws   []finalizePayload `json:"withdraws"`
	Proof       string            `json:"proof"`
}

func (p creditPayload) decode() (id [32]byte, user [20]byte, amount *big.Int, err error) {
	if id, err = parseID(p.DepositID); err != nil {
		return
	}
	if user, err = parseAddress(p.User); err != nil {
		return
	}
	amount, err = parseAmount(p.Amount)
	return
}

func (p finalizePayload) decode() (id [32]byte, user, relayer [20]byte, amount, fee *big.Int, err error) {
	if id, err = parseID(p.IntentID); err != nil {
		return
	}
	if user, err = parseAddress(p.User); err != nil {
		return
	}
	if relayer, err = parseAddress(p.Relayer); err != nil {
		return
	}
	if amount, err = parseAmount(p.Amount); err != nil {
		return
	}
	fee, err = parseAmount(p.Fee)
	return
}

func (s *Server) settleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchPayload
	if !s.decode(w, r, &req) {
		return
	}
	batch, proof, err := decodeBatch(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Settlement.SettleBatch(batch, proof); err != nil {
		if s.metrics != nil {
			s.metrics.BatchRejected(rejectionReason(err))
		}
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.BatchSettled(len(batch.Supplies), len(batch.Repays), len(batch.Borrows), len(batch.Withdraws))
		for range batch.Borrows {
			s.metrics.LockClosed()
		}
		for range batch.Withdraws {
			s.metrics.LockClosed()
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"batchId":   req.BatchID,
		"settled":   true,
		"supplies":  len(batch.Supplies),
		"repays":    len(batch.Repays),
		"borrows":   len(batch.Borrows),
		"withdraws": len(batch.Withdraws),
	})
}

func decodeBatch(req batchPayload) (*settlement.Batch, []byte, error) {
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return nil, nil, err
	}
	root, err := parseFieldElement(req.ActionsRoot)
	if err != nil {
		return nil, nil, err
	}
	proof, err := parseHexBytes(req.Proof)
	if err != nil {
		return nil, nil, err
	}

	batch := &settlement.Batch{
		ID:          batchID,
		HubDomain:   req.HubDomain,
		SpokeDomain: req.SpokeDomain,
		ActionsRoot: root,
	}
	for _, p := range req.Supplies {
		id, user, amount, err := p.decode()
		if err != nil {
			return nil, nil, err
		}
		batch.Supplies = append(batch.Supplies, settlement.SupplyCredit{DepositID: id, User: user, Asset: p.Asset, Amount: amount})
	}
	for _, p := range req.Repays {
		id, user, amount, err := p.decode()
		if err != nil {
			return nil, nil, err
		}
		batch.Repays = append(batch.Repays, settlement.RepayCredit{DepositID: id, User: user, Asset: p.Asset, Amount: amount})
	}
	for _, p := range req.Borrows {
		id, user, relayer, amount, fee, err := p.decode()
		if err != nil {
			return nil, nil, err
		}
		batch.Borrows = append(batch.Borrows, settlement.BorrowFinalize{IntentID: id, User: user, Asset: p.Asset, Amount: amount, Fee: fee, Relayer: relayer})
	}
	for _, p := range req.Withdraws {
		id, user, relayer, amount, fee, err := p.decode()
		if err != nil {
			return nil, nil, err
		}
		batch.Withdraws = append(batch.Withdraws, settlement.WithdrawFinalize{IntentID: id, User: user, Asset: p.Asset, Amount: amount, Fee: fee, Relayer: relayer})
	}
	return batch, proof, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, settlement.ErrBatchReplayed):
		return "replay"
	case errors.Is(err, settlement.ErrRootMismatch):
		return "root_mismatch"
	case errors.Is(err, settlement.ErrProofInvalid):
		return "proof"
	case errors.Is(err, settlement.ErrDepositReplayed), errors.Is(err, settlement.ErrIntentReplayed):
		return "action_replay"
	case errors.Is(err, settlement.ErrEvidenceMissing), errors.Is(err, settlement.ErrEvidenceMismatch), errors.Is(err, settlement.ErrEvidenceConsumed):
		return "evidence"
	default:
		return "other"
	}
}
