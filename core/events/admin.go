package events

import "vstreet/core/types"

const (
	TypeAdminAdded       = "admin.added"
	TypeAdminRemoved     = "admin.removed"
	TypeTokenContractSet = "admin.token.set"
	TypeModulePaused     = "module.paused"
	TypeModuleResumed    = "module.resumed"
)

// AdminChanged records an admin grant or revocation in a module.
type AdminChanged struct {
	Module string
	Admin  [20]byte
	Added  bool
}

func (e AdminChanged) EventType() string {
	if e.Added {
		return TypeAdminAdded
	}
	return TypeAdminRemoved
}

func (e AdminChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"module": e.Module,
		"admin":  formatAddress(e.Admin),
	}}
}

// TokenContractSet records the token a module moves.
type TokenContractSet struct {
	Module string
	Token  [20]byte
}

func (TokenContractSet) EventType() string { return TypeTokenContractSet }

func (e TokenContractSet) Event() *types.Event {
	return &types.Event{Type: TypeTokenContractSet, Attributes: map[string]string{
		"module": e.Module,
		"token":  formatAddress(e.Token),
	}}
}

// ModulePauseChanged records an admin halting or resuming a module.
type ModulePauseChanged struct {
	Module string
	Paused bool
	By     [20]byte
}

func (e ModulePauseChanged) EventType() string {
	if e.Paused {
		return TypeModulePaused
	}
	return TypeModuleResumed
}

func (e ModulePauseChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"module": e.Module,
		"by":     formatAddress(e.By),
	}}
}
