package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vstreet/crypto"
	"vstreet/native/vault"
	"vstreet/storage/journal"
)

type positionView struct {
	ID              uint64 `json:"id"`
	Owner           string `json:"owner"`
	Amount          string `json:"amount"`
	Conviction      string `json:"conviction"`
	Multiplier      uint64 `json:"multiplier"`
	Power           string `json:"power"`
	StartAt         uint64 `json:"startAt"`
	UnlockAt        uint64 `json:"unlockAt"`
	Active          bool   `json:"active"`
	Claimed         bool   `json:"claimed"`
	TimeUntilUnlock uint64 `json:"timeUntilUnlock"`
}

func (s *Server) newPositionView(p vault.Position) positionView {
	return positionView{
		ID:              p.ID,
		Owner:           p.Owner.String(),
		Amount:          p.Amount.Dec(),
		Conviction:      p.Conviction.String(),
		Multiplier:      p.Multiplier,
		Power:           p.Power.Dec(),
		StartAt:         p.StartAt,
		UnlockAt:        p.UnlockAt,
		Active:          p.Active,
		Claimed:         p.Claimed,
		TimeUntilUnlock: s.vault.TimeUntilUnlock(p.ID),
	}
}

func (s *Server) positionViews(positions []vault.Position) []positionView {
	out := make([]positionView, len(positions))
	for i, p := range positions {
		out[i] = s.newPositionView(p)
	}
	return out
}

func pathID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) handleVaultStats(w http.ResponseWriter, r *http.Request) {
	stats := s.vault.GlobalStats()
	view := map[string]any{
		"totalLocked":          stats.TotalLocked.Dec(),
		"totalPower":           stats.TotalPower.Dec(),
		"activePositionsCount": stats.ActivePositionsCount,
		"nextPositionId":       stats.NextPositionID,
		"owner":                stats.Owner.String(),
		"admins":               addressStrings(stats.Admins),
	}
	if stats.Token != nil {
		view["token"] = stats.Token.String()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}
	pos, ok := s.vault.PositionDetails(id)
	if !ok {
		writeEngineError(w, vault.ErrPositionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.newPositionView(pos))
}

func (s *Server) handleTimeUntilUnlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"seconds": s.vault.TimeUntilUnlock(id)})
}

func (s *Server) handleUserVault(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	info := s.vault.UserVaultInfo(addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"totalStaked": info.TotalStaked.Dec(),
		"totalPower":  info.TotalPower.Dec(),
		"active":      nonNil(info.Active),
		"matured":     nonNil(info.Matured),
		"history":     nonNil(info.History),
	})
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}

func (s *Server) handleUserPositions(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	var positions []vault.Position
	switch filter := r.URL.Query().Get("filter"); filter {
	case "", "all":
		positions = s.vault.UserPositions(addr)
	case "active":
		positions = s.vault.UserActivePositions(addr)
	case "matured":
		positions = s.vault.UserMaturedPositions(addr)
	default:
		writeError(w, http.StatusBadRequest, "invalid_filter", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": s.positionViews(positions)})
}

type stakeRequest struct {
	Amount     Amount           `json:"amount"`
	Conviction vault.Conviction `json:"conviction"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
		return
	}
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := s.engineContext(r)
	defer cancel()
	pos, err := s.vault.Stake(ctx, caller, &req.Amount.Int, req.Conviction)
	s.recordVault("stake", err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.newPositionView(pos))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}
	ctx, cancel := s.engineContext(r)
	defer cancel()
	pos, err := s.vault.UnlockAndClaim(ctx, caller, id)
	s.recordVault("claim", err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newPositionView(pos))
}

type claimMultipleRequest struct {
	IDs []uint64 `json:"ids"`
}

func (s *Server) handleClaimMultiple(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", errMissingToken)
		return
	}
	var req claimMultipleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := s.engineContext(r)
	defer cancel()
	res := s.vault.ClaimMultiple(ctx, caller, req.IDs)
	s.recordVault("claim_multiple", nil)
	failed := make(map[string]string, len(res.Failed))
	for id, err := range res.Failed {
		_, code := statusFor(err)
		failed[strconv.FormatUint(id, 10)] = code
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claimed": nonNil(res.Claimed),
		"failed":  failed,
		"amount":  res.Amount.Dec(),
	})
}

func (s *Server) handleAddVaultAdmin(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "add_admin", s.recordVault, func(ctx context.Context, caller crypto.Address, req addressRequest) error {
		return s.vault.AddAdmin(ctx, caller, req.Address.Address)
	})(w, r)
}

func (s *Server) handleSetVaultToken(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "set_token", s.recordVault, func(ctx context.Context, caller crypto.Address, req addressRequest) error {
		return s.vault.SetToken(ctx, caller, req.Address.Address)
	})(w, r)
}

func (s *Server) handleSetVaultPaused(w http.ResponseWriter, r *http.Request) {
	adminAction(s, "set_paused", s.recordVault, func(ctx context.Context, caller crypto.Address, req pauseRequest) error {
		if req.Paused == nil {
			return errMissingField
		}
		return s.vault.SetPaused(ctx, caller, *req.Paused)
	})(w, r)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal_disabled", nil)
		return
	}
	q := r.URL.Query()
	var after uint64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cursor", err)
			return
		}
		after = v
	}
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = v
	}
	records, err := s.journal.List(after, limit, q.Get("module"))
	if err != nil {
		s.logger.Error("journal read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", nil)
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": records})
}
