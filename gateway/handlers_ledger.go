package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hublend/native/lending"
)

type marketView struct {
	Asset             string `json:"asset"`
	TotalSupplyShares string `json:"totalSupplyShares"`
	TotalDebtShares   string `json:"totalDebtShares"`
	SupplyIndex       string `json:"supplyIndex"`
	BorrowIndex       string `json:"borrowIndex"`
	Reserves          string `json:"reserves"`
	LastAccrualTime   uint64 `json:"lastAccrualTime"`
}

func viewMarket(m *lending.Market) marketView {
	return marketView{
		Asset:             m.Asset,
		TotalSupplyShares: formatAmount(m.TotalSupplyShares),
		TotalDebtShares:   formatAmount(m.TotalDebtShares),
		SupplyIndex:       formatAmount(m.SupplyIndex),
		BorrowIndex:       formatAmount(m.BorrowIndex),
		Reserves:          formatAmount(m.Reserves),
		LastAccrualTime:   m.LastAccrualTime,
	}
}

func (s *Server) listMarkets(w http.ResponseWriter, _ *http.Request) {
	assets, err := s.cfg.Ledger.Assets()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	views := make([]marketView, 0, len(assets))
	for _, asset := range assets {
		market, err := s.cfg.Ledger.Market(asset)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		views = append(views, viewMarket(market))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"markets": views})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.cfg.Ledger.Market(chi.URLParam(r, "asset"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewMarket(market))
}

func (s *Server) getLiquidity(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	available, err := s.cfg.Ledger.AvailableLiquidity(asset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"asset":     asset,
		"available": formatAmount(available),
	})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User  string `json:"user"`
		Asset string `json:"asset"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	position, err := s.cfg.Ledger.Position(user, req.Asset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	supplyAssets, err := s.cfg.Ledger.SupplyAssets(user, req.Asset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	debtAssets, err := s.cfg.Ledger.DebtAssets(user, req.Asset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"user":         req.User,
		"asset":        req.Asset,
		"supplyShares": formatAmount(position.SupplyShares),
		"debtShares":   formatAmount(position.DebtShares),
		"supplyAssets": formatAmount(supplyAssets),
		"debtAssets":   formatAmount(debtAssets),
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	hf, err := s.cfg.Risk.HealthFactor(user)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	liquidatable, err := s.cfg.Risk.Liquidatable(user)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	resp := map[string]interface{}{"user": req.User, "liquidatable": liquidatable}
	if hf == nil {
		resp["healthFactor"] = nil
	} else {
		resp["healthFactor"] = hf.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type ledgerOpRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) supply(w http.ResponseWriter, r *http.Request) {
	var req ledgerOpRequest
	if !s.decode(w, r, &req) {
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
	shares, err := s.cfg.Ledger.Supply(user, req.Asset, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"sharesMinted": formatAmount(shares)})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req ledgerOpRequest
	if !s.decode(w, r, &req) {
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
	shares, err := s.cfg.Ledger.Withdraw(user, req.Asset, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"sharesBurned": formatAmount(shares)})
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req ledgerOpRequest
	if !s.decode(w, r, &req) {
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
	shares, err := s.cfg.Ledger.Borrow(user, req.Asset, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"debtSharesMinted": formatAmount(shares)})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req ledgerOpRequest
	if !s.decode(w, r, &req) {
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
	repaid, err := s.cfg.Ledger.Repay(user, req.Asset, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"amountRepaid": formatAmount(repaid)})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Liquidator      string `json:"liquidator"`
		User            string `json:"user"`
		DebtAsset       string `json:"debtAsset"`
		RepayAmount     string `json:"repayAmount"`
		CollateralAsset string `json:"collateralAsset"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	liquidator, err := parseAddress(req.Liquidator)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	repay, err := parseAmount(req.RepayAmount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	repaid, seized, err := s.cfg.Ledger.Liquidate(liquidator, user, req.DebtAsset, repay, req.CollateralAsset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"amountRepaid":     formatAmount(repaid),
		"collateralSeized": formatAmount(seized),
	})
}
