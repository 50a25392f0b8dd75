package common

import "errors"

// Shared failure taxonomy for the lending and vault engines. Callers match
// with errors.Is; engines wrap these with operation context.
var (
	ErrZeroAmount                  = errors.New("amount must be greater than zero")
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrUserNotFound                = errors.New("user not found")
	ErrTransferFailed              = errors.New("transfer failed")
	ErrInsufficientRewardsPool     = errors.New("insufficient rewards in pool")
	ErrInsufficientUserRewards     = errors.New("insufficient user rewards")
	ErrInsufficientAdminPrivileges = errors.New("only an administrator can perform this action")
	ErrAdminAlreadyExists          = errors.New("admin already exists")
	ErrAdminDoesNotExist           = errors.New("admin does not exist")
	ErrArithmeticOverflow          = errors.New("arithmetic overflow")
	ErrTokenNotConfigured          = errors.New("token contract not configured")
)
