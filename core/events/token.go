package events

import (
	"math/big"
	"strconv"

	"sentechain/core/types"
	"sentechain/crypto"
)

const (
	// TypeTokenTransfer is emitted for every balance movement, including mints
	// (From is the zero address).
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an allowance is set.
	TypeTokenApproval = "token.approval"
	// TypeModulePaused is emitted when an administrator toggles a module pause.
	TypeModulePaused = "system.module.paused"
)

// Transfer captures a movement of value between two accounts.
type Transfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

// EventType implements the Event interface.
func (Transfer) EventType() string { return TypeTokenTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"from":   addrString(e.From),
			"to":     addrString(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

// Approval captures an allowance assignment.
type Approval struct {
	Owner   crypto.Address
	Spender crypto.Address
	Amount  *big.Int
}

// EventType implements the Event interface.
func (Approval) EventType() string { return TypeTokenApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"owner":   addrString(e.Owner),
			"spender": addrString(e.Spender),
			"amount":  amountString(e.Amount),
		},
	}
}

// ModulePaused records an administrative pause toggle.
type ModulePaused struct {
	Module string
	Paused bool
	Caller crypto.Address
}

// EventType implements the Event interface.
func (ModulePaused) EventType() string { return TypeModulePaused }

func (e ModulePaused) Event() *types.Event {
	return &types.Event{
		Type: TypeModulePaused,
		Attributes: map[string]string{
			"module": e.Module,
			"paused": strconv.FormatBool(e.Paused),
			"caller": addrString(e.Caller),
		},
	}
}
