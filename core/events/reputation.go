package events

import (
	"strconv"

	"sentechain/core/types"
	"sentechain/crypto"
)

const (
	// TypeReputationProfileCreated is emitted the first time a principal's
	// profile is activated.
	TypeReputationProfileCreated = "reputation.profile.created"
	// TypeReputationScoreUpdated is emitted whenever a stored score changes.
	TypeReputationScoreUpdated = "reputation.score.updated"
	// TypeReputationOracleUpdated is emitted when an oracle is authorised or
	// revoked.
	TypeReputationOracleUpdated = "reputation.oracle.updated"
)

// Score update reasons carried by ScoreUpdated.
const (
	ScoreReasonOracle    = "oracle_update"
	ScoreReasonRepayment = "repayment"
	ScoreReasonDefault   = "default"
)

// ProfileCreated captures the activation of a reputation profile.
type ProfileCreated struct {
	Principal crypto.Address
	Score     uint64
	Oracle    crypto.Address
	CreatedAt uint64
}

// EventType implements the Event interface.
func (ProfileCreated) EventType() string { return TypeReputationProfileCreated }

// Event converts the profile creation into the generic payload.
func (e ProfileCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeReputationProfileCreated,
		Attributes: map[string]string{
			"principal": addrString(e.Principal),
			"score":     uintString(e.Score),
			"oracle":    addrString(e.Oracle),
			"createdAt": uintString(e.CreatedAt),
		},
	}
}

// ScoreUpdated captures a score transition together with the operation that
// caused it.
type ScoreUpdated struct {
	Principal crypto.Address
	OldScore  uint64
	NewScore  uint64
	Reason    string
	UpdatedAt uint64
}

// EventType implements the Event interface.
func (ScoreUpdated) EventType() string { return TypeReputationScoreUpdated }

// Event converts the score update into the generic payload.
func (e ScoreUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeReputationScoreUpdated,
		Attributes: map[string]string{
			"principal": addrString(e.Principal),
			"oldScore":  uintString(e.OldScore),
			"newScore":  uintString(e.NewScore),
			"reason":    e.Reason,
			"updatedAt": uintString(e.UpdatedAt),
		},
	}
}

// OracleUpdated records a change to the oracle authorisation set.
type OracleUpdated struct {
	Oracle     crypto.Address
	Authorized bool
	Caller     crypto.Address
}

// EventType implements the Event interface.
func (OracleUpdated) EventType() string { return TypeReputationOracleUpdated }

func (e OracleUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeReputationOracleUpdated,
		Attributes: map[string]string{
			"oracle":     addrString(e.Oracle),
			"authorized": strconv.FormatBool(e.Authorized),
			"caller":     addrString(e.Caller),
		},
	}
}
