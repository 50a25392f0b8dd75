package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "vstreet/native/common"
	"vstreet/native/vault"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps engine errors onto HTTP statuses and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingField):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, nativecommon.ErrZeroAmount),
		errors.Is(err, nativecommon.ErrInvalidAmount),
		errors.Is(err, vault.ErrInvalidConviction):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, nativecommon.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity, "overflow"
	case errors.Is(err, nativecommon.ErrInsufficientAdminPrivileges):
		return http.StatusForbidden, "not_admin"
	case errors.Is(err, vault.ErrNotPositionOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, nativecommon.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, vault.ErrPositionNotFound):
		return http.StatusNotFound, "position_not_found"
	case errors.Is(err, nativecommon.ErrInsufficientRewardsPool),
		errors.Is(err, nativecommon.ErrInsufficientUserRewards):
		return http.StatusConflict, "insufficient_rewards"
	case errors.Is(err, nativecommon.ErrAdminAlreadyExists),
		errors.Is(err, nativecommon.ErrAdminDoesNotExist):
		return http.StatusConflict, "admin_conflict"
	case errors.Is(err, vault.ErrPositionNotMatured):
		return http.StatusConflict, "not_matured"
	case errors.Is(err, vault.ErrPositionAlreadyClaimed),
		errors.Is(err, vault.ErrPositionInactive):
		return http.StatusConflict, "position_closed"
	case errors.Is(err, nativecommon.ErrTokenNotConfigured):
		return http.StatusConflict, "token_not_configured"
	case errors.Is(err, nativecommon.ErrTransferFailed):
		return http.StatusBadGateway, "transfer_failed"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, "paused"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, code, errors.New("internal error"))
		return
	}
	writeError(w, status, code, err)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
