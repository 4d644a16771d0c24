package gateway

import (
	"fmt"
	"net/http"
	"strconv"

	"hublend/native/risk"
)

func (s *Server) adminCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset                   string  `json:"asset"`
		Decimals                uint8   `json:"decimals"`
		MaxLTVBps               uint64  `json:"maxLtvBps"`
		LiquidationThresholdBps uint64  `json:"liquidationThresholdBps"`
		LiquidationBonusBps     uint64  `json:"liquidationBonusBps"`
		SupplyCap               string  `json:"supplyCap"`
		BorrowCap               string  `json:"borrowCap"`
		Price                   string  `json:"price"`
		BaseAPR                 float64 `json:"baseApr"`
		Slope1APR               float64 `json:"slope1Apr"`
		Slope2APR               float64 `json:"slope2Apr"`
		Kink                    float64 `json:"kink"`
		SpreadBps               uint64  `json:"spreadBps"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.LiquidationThresholdBps < req.MaxLTVBps {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("liquidation threshold below max LTV"))
		return
	}
	params := risk.AssetParams{
		Enabled:                 true,
		Decimals:                req.Decimals,
		MaxLTVBps:               req.MaxLTVBps,
		LiquidationThresholdBps: req.LiquidationThresholdBps,
		LiquidationBonusBps:     req.LiquidationBonusBps,
	}
	if req.SupplyCap != "" {
		supplyCap, err := parseAmount(req.SupplyCap)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		params.SupplyCap = supplyCap
	}
	if req.BorrowCap != "" {
		borrowCap, err := parseAmount(req.BorrowCap)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		params.BorrowCap = borrowCap
	}

	if err := s.cfg.Ledger.InitializeMarket(req.Asset); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.cfg.Risk.SetAssetParams(req.Asset, params)
	if oracle, ok := s.cfg.Risk.OracleBackend().(*risk.StaticOracle); ok && req.Price != "" {
		price, err := parseAmount(req.Price)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		oracle.SetPrice(req.Asset, price)
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"asset": req.Asset, "initialized": "true"})
}

func (s *Server) adminPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Module == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("module required"))
		return
	}
	if err := s.cfg.State.SetPaused(req.Module, req.Paused); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"module": req.Module,
		"paused": strconv.FormatBool(req.Paused),
	})
}

func (s *Server) adminRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  string `json:"action"`
		Role    string `json:"role"`
		Address string `json:"address"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	switch req.Action {
	case "grant":
		err = s.cfg.State.GrantRole(req.Role, addr)
	case "revoke":
		err = s.cfg.State.RevokeRole(req.Role, addr)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("action must be grant or revoke"))
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"role": req.Role, "address": req.Address, "action": req.Action})
}

func (s *Server) adminSetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset string `json:"asset"`
		Price string `json:"price"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	oracle, ok := s.cfg.Risk.OracleBackend().(*risk.StaticOracle)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("price oracle is not operator-settable"))
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	oracle.SetPrice(req.Asset, price)
	s.writeJSON(w, http.StatusOK, map[string]string{"asset": req.Asset, "price": req.Price})
}

func (s *Server) auditEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Audit == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("audit store not configured"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.cfg.Audit.Recent(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}
