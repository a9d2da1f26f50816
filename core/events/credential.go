package events

import (
	"strconv"

	"sentechain/core/types"
	"sentechain/crypto"
)

const (
	// TypeCredentialMinted is emitted when a reputation credential is issued.
	TypeCredentialMinted = "credential.minted"
	// TypeCredentialMinterUpdated is emitted when a minter is authorised or
	// revoked.
	TypeCredentialMinterUpdated = "credential.minter.updated"
)

// CredentialMinted captures the issuance of a non-transferable credential.
type CredentialMinted struct {
	Owner      crypto.Address
	TokenID    uint64
	Score      uint64
	Repayments uint64
	Tier       string
	MintedAt   uint64
}

// EventType implements the Event interface.
func (CredentialMinted) EventType() string { return TypeCredentialMinted }

func (e CredentialMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeCredentialMinted,
		Attributes: map[string]string{
			"owner":      addrString(e.Owner),
			"tokenId":    uintString(e.TokenID),
			"score":      uintString(e.Score),
			"repayments": uintString(e.Repayments),
			"tier":       e.Tier,
			"mintedAt":   uintString(e.MintedAt),
		},
	}
}

// CredentialMinterUpdated records a change to the minter set.
type CredentialMinterUpdated struct {
	Minter     crypto.Address
	Authorized bool
	Caller     crypto.Address
}

// EventType implements the Event interface.
func (CredentialMinterUpdated) EventType() string { return TypeCredentialMinterUpdated }

func (e CredentialMinterUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCredentialMinterUpdated,
		Attributes: map[string]string{
			"minter":     addrString(e.Minter),
			"authorized": strconv.FormatBool(e.Authorized),
			"caller":     addrString(e.Caller),
		},
	}
}
