package token

import (
	"fmt"
	"math/big"

	"sentechain/crypto"
)

// engineState abstracts the subset of state manager functionality required by
// the value ledger.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix   = []byte("token/balance/")
	allowancePrefix = []byte("token/allowance/")
	minterPrefix    = []byte("token/minter/")
	supplyKey       = []byte("token/supply")
	ownerKey        = []byte("token/owner")
)

func balanceKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", balancePrefix, addr[:]))
}

func allowanceKey(owner, spender crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x/%x", allowancePrefix, owner[:], spender[:]))
}

func minterKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", minterPrefix, addr[:]))
}

func (e *Engine) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := e.state.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (e *Engine) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return e.state.KVPut(key, amount)
}
