package reputation

import (
	"fmt"

	"sentechain/crypto"
)

// engineState abstracts the subset of state manager functionality required by
// the registry.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	profilePrefix = []byte("reputation/profile/")
	oraclePrefix  = []byte("reputation/oracle/")
	ownerKey      = []byte("reputation/owner")
)

func profileKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", profilePrefix, addr[:]))
}

func oracleKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", oraclePrefix, addr[:]))
}

func (e *Engine) loadProfile(addr crypto.Address) (*Profile, error) {
	var profile Profile
	ok, err := e.state.KVGet(profileKey(addr), &profile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Profile{}, nil
	}
	return &profile, nil
}

func (e *Engine) storeProfile(addr crypto.Address, profile *Profile) error {
	return e.state.KVPut(profileKey(addr), profile)
}
