package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"vstreet/crypto"
	"vstreet/native/lending"
)

type userView struct {
	Address             string `json:"address"`
	Balance             string `json:"balance"`
	BalanceTokens       string `json:"balanceTokens"`
	Rewards             string `json:"rewards"`
	RewardsTokens       string `json:"rewardsTokens"`
	RewardsWithdrawn    string `json:"rewardsWithdrawn"`
	BalanceNative       string `json:"balanceNative"`
	CollateralValue     string `json:"collateralValue"`
	MaxLoan             string `json:"maxLoan"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
	LoanAmount          string `json:"loanAmount"`
	LoanTokens          string `json:"loanTokens"`
	LTV                 uint64 `json:"ltv"`
	LoanActive          bool   `json:"loanActive"`
	SupplyCheckpoint    uint64 `json:"supplyCheckpoint"`
}

type poolView struct {
	Owner                   string         `json:"owner"`
	Admins                  []string       `json:"admins"`
	TokenContract           string         `json:"tokenContract,omitempty"`
	TotalSupplied           string         `json:"totalSupplied"`
	TotalSuppliedTokens     string         `json:"totalSuppliedTokens"`
	TotalBorrowed           string         `json:"totalBorrowed"`
	TotalBorrowedTokens     string         `json:"totalBorrowedTokens"`
	AvailableRewardsPool    string         `json:"availableRewardsPool"`
	TotalRewardsDistributed string         `json:"totalRewardsDistributed"`
	SeizedCollateral        string         `json:"seizedCollateral"`
	Utilization             uint64         `json:"utilization"`
	InterestRate            uint64         `json:"interestRate"`
	APR                     uint64         `json:"apr"`
	APRPercent              string         `json:"aprPercent"`
	BorrowRate              uint64         `json:"borrowRate"`
	BorrowRatePercent       string         `json:"borrowRatePercent"`
	LTV                     uint64         `json:"ltv"`
	Price                   uint64         `json:"price"`
	Users                   int            `json:"users"`
	Config                  lending.Config `json:"config"`
}

func (s *Server) scale() uint64 {
	return s.lending.ContractInfo().Config.ScaleFactor
}

func newUserView(u lending.UserInfo, scale uint64) userView {
	return userView{
		Address:             u.Address.String(),
		Balance:             u.Balance.Dec(),
		BalanceTokens:       units(u.Balance, scale),
		Rewards:             u.Rewards.Dec(),
		RewardsTokens:       units(u.Rewards, scale),
		RewardsWithdrawn:    u.RewardsWithdrawn.Dec(),
		BalanceNative:       u.BalanceNative.Dec(),
		CollateralValue:     u.CollateralValue.Dec(),
		MaxLoan:             u.MaxLoan.Dec(),
		AvailableToWithdraw: u.AvailableToWithdraw.Dec(),
		LoanAmount:          u.LoanAmount.Dec(),
		LoanTokens:          units(u.LoanAmount, scale),
		LTV:                 u.LTV,
		LoanActive:          u.LoanActive,
		SupplyCheckpoint:    u.SupplyCheckpoint,
	}
}

func addressStrings(addrs []crypto.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func pathAddress(r *http.Request) (crypto.Address, error) {
	return crypto.DecodeAddress(chi.URLParam(r, "address"))
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	info := s.lending.ContractInfo()
	scale := info.Config.ScaleFactor
	view := poolView{
		Owner:                   info.Owner.String(),
		Admins:                  addressStrings(info.Admins),
		TotalSupplied:           info.TotalSupplied.Dec(),
		TotalSuppliedTokens:     units(info.TotalSupplied, scale),
		TotalBorrowed:           info.TotalBorrowed.Dec(),
		TotalBorrowedTokens:     units(info.TotalBorrowed, scale),
		AvailableRewardsPool:    info.AvailableRewardsPool.Dec(),
		TotalRewardsDistributed: info.TotalRewardsDistributed.Dec(),
		SeizedCollateral:        info.SeizedCollateral.Dec(),
		Utilization:             info.Utilization,
		InterestRate:            info.InterestRate,
		APR:                     info.APR,
		APRPercent:              ratio(info.APR, scale),
		BorrowRate:              info.BorrowRate,
		BorrowRatePercent:       ratio(info.BorrowRate, scale),
		LTV:                     info.LTV,
		Price:                   info.Price,
		Users:                   info.Users,
		Config:                  info.Config,
	}
	if info.TokenContract != nil {
		view.TokenContract = info.TokenContract.String()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	scale := s.scale()
	users := s.lending.AllUsers()
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = newUserView(u, scale)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	info, err := s.lending.UserInfo(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(info, s.scale()))
}

func (s *Server) handleUserBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	balance, err := s.lending.UserBalance(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"balance":       balance.Dec(),
		"balanceTokens": units(balance, s.scale()),
	})
}

func (s *Server) handleUserRewards(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	accrued, withdrawn, err := s.lending.UserRewards(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"rewards":          accrued.Dec(),
		"rewardsTokens":    units(accrued, s.scale()),
		"rewardsWithdrawn": withdrawn.Dec(),
	})
}

type amountRequest struct {
	Amount Amount `json:"amount"`
}

type addressRequest struct {
	Address Address `json:"address"`
}

// callerAction runs fn for the authenticated caller and writes the
// resulting user row.
func (s *Server) callerAction(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, caller crypto.Address) error) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
		return
	}
	ctx, cancel := s.engineContext(r)
	defer cancel()
	err := fn(ctx, caller)
	s.recordLending(op, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	info, err := s.lending.UserInfo(caller)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, newUserView(info, s.scale()))
}

func (s *Server) amountAction(op string, fn func(ctx context.Context, caller crypto.Address, amount *uint256.Int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		s.callerAction(w, r, op, func(ctx context.Context, caller crypto.Address) error {
			return fn(ctx, caller, &req.Amount.Int)
		})
	}
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.amountAction("deposit", s.lending.DepositLiquidity)(w, r)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.amountAction("withdraw", s.lending.WithdrawLiquidity)(w, r)
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, r *http.Request) {
	s.amountAction("deposit_collateral", s.lending.DepositCollateral)(w, r)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, r *http.Request) {
	s.amountAction("withdraw_collateral", s.lending.WithdrawCollateral)(w, r)
}

func (s *Server) handleTakeLoan(w http.ResponseWriter, r *http.Request) {
	s.amountAction("take_loan", s.lending.TakeLoan)(w, r)
}

func (s *Server) handlePayLoan(w http.ResponseWriter, r *http.Request) {
	s.amountAction("pay_loan", s.lending.PayLoan)(w, r)
}

func (s *Server) handlePayAllLoan(w http.ResponseWriter, r *http.Request) {
	s.callerAction(w, r, "pay_all_loan", s.lending.PayAllLoan)
}

func (s *Server) handleWithdrawRewards(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
		return
	}
	ctx, cancel := s.engineContext(r)
	defer cancel()
	paid, err := s.lending.WithdrawRewards(ctx, caller)
	s.recordLending("withdraw_rewards", err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.Dec()})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.engineContext(r)
	defer cancel()
	n, err := s.lending.Sweep(ctx)
	s.recordLending("sweep", err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"liquidated": n})
}

// adminAction decodes req and runs fn for the authenticated caller.
func adminAction[T any](s *Server, op string, record func(string, error), fn func(ctx context.Context, caller crypto.Address, req T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		var req T
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		ctx, cancel := s.engineContext(r)
		defer cancel()
		err := fn(ctx, caller, req)
		record(op, err)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type priceRequest struct {
	Price *uint64 `json:"price"`
}

type ltvRequest struct {
	LTV *uint64 `json:"ltv"`
}

type pauseRequest struct {
	Paused *bool `json:"paused"`
}

var errMissingField = errors.New("required field missing")

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "set_price", s.recordLending, func(ctx context.Context, caller crypto.Address, req priceRequest) error {
		if req.Price == nil {
			return errMissingField
		}
		return s.lending.SetPrice(ctx, caller, *req.Price)
	})(w, r)
}

func (s *Server) handleSetLTV(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "set_ltv", s.recordLending, func(ctx context.Context, caller crypto.Address, req ltvRequest) error {
		if req.LTV == nil {
			return errMissingField
		}
		return s.lending.SetLTV(ctx, caller, *req.LTV)
	})(w, r)
}

func (s *Server) handleRewardsPool(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "modify_rewards_pool", s.recordLending, func(ctx context.Context, caller crypto.Address, req amountRequest) error {
		return s.lending.ModifyAvailableRewardsPool(ctx, caller, &req.Amount.Int)
	})(w, r)
}

func (s *Server) handleSetLendingPaused(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "set_paused", s.recordLending, func(ctx context.Context, caller crypto.Address, req pauseRequest) error {
		if req.Paused == nil {
			return errMissingField
		}
		return s.lending.SetPaused(ctx, caller, *req.Paused)
	})(w, r)
}

func (s *Server) handleSetTokenContract(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "set_token_contract", s.recordLending, func(ctx context.Context, caller crypto.Address, req addressRequest) error {
		return s.lending.SetTokenContract(ctx, caller, req.Address.Address)
	})(w, r)
}

func (s *Server) handleAddLendingAdmin(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "add_admin", s.recordLending, func(ctx context.Context, caller crypto.Address, req addressRequest) error {
		return s.lending.AddAdmin(ctx, caller, req.Address.Address)
	})(w, r)
}

func (s *Server) handleRemoveLendingAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
		return
	}
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	ctx, cancel := s.engineContext(r)
	defer cancel()
	err = s.lending.RemoveAdmin(ctx, caller, addr)
	s.recordLending("remove_admin", err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
