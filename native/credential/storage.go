package credential

import (
	"fmt"

	"sentechain/crypto"
)

// engineState abstracts the subset of state manager functionality required by
// the issuer.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	tokenPrefix  = []byte("credential/token/")
	holderPrefix = []byte("credential/holder/")
	flagPrefix   = []byte("credential/has/")
	minterPrefix = []byte("credential/minter/")
	nextIDKey    = []byte("credential/next-id")
	ownerKey     = []byte("credential/owner")
)

func tokenKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", tokenPrefix, id))
}

func holderKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", holderPrefix, addr[:]))
}

func flagKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", flagPrefix, addr[:]))
}

func minterKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", minterPrefix, addr[:]))
}
