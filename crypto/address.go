package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of every bech32 principal address.
const AddressPrefix = "snt"

// AddressLength is the byte length of a principal address.
const AddressLength = 20

// ErrInvalidAddress is returned when a textual address cannot be decoded.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// Address identifies a principal: a borrower, lender, oracle or module
// account. It is comparable and therefore usable as a map key.
type Address [AddressLength]byte

// ZeroAddress is the unset principal.
var ZeroAddress Address

// BytesToAddress copies b into an address. Inputs longer than 20 bytes keep
// their trailing bytes, matching the Ethereum convention.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ModuleAddress derives the deterministic custody address for a native module.
func ModuleAddress(name string) Address {
	digest := ethcrypto.Keccak256([]byte("sentechain/module/" + strings.TrimSpace(name)))
	return BytesToAddress(digest[12:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the 0x-prefixed hexadecimal encoding.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return a.Hex()
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		return a.Hex()
	}
	return encoded
}

// MarshalText implements encoding.TextMarshaler so addresses render as bech32
// in JSON payloads.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts both bech32 and 0x-prefixed hex encodings.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses a bech32 (snt1...) or 0x-prefixed hex address.
func DecodeAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		decoded, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if len(decoded) != AddressLength {
			return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(decoded))
		}
		return BytesToAddress(decoded), nil
	}
	prefix, data, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, prefix)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(conv))
	}
	return BytesToAddress(conv), nil
}

// MustDecodeAddress is DecodeAddress for constants and tests.
func MustDecodeAddress(raw string) Address {
	addr, err := DecodeAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) toCommon() common.Address { return common.Address(a) }
