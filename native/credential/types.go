package credential

import "sentechain/crypto"

// MinScore is the lowest score at which a credential may be minted.
const MinScore uint64 = 60

// Tier is the discrete rank assigned to a credential at mint time.
type Tier uint8

const (
	TierBronze Tier = iota + 1
	TierSilver
	TierGold
	TierPlatinum
)

func (t Tier) String() string {
	switch t {
	case TierBronze:
		return "Bronze"
	case TierSilver:
		return "Silver"
	case TierGold:
		return "Gold"
	case TierPlatinum:
		return "Platinum"
	default:
		return "Unknown"
	}
}

// MarshalText renders the tier name in JSON payloads.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// CalculateTier derives the tier from the score and repayment count at mint.
func CalculateTier(score, repayments uint64) Tier {
	switch {
	case score >= 90 && repayments >= 10:
		return TierPlatinum
	case score >= 80 && repayments >= 7:
		return TierGold
	case score >= 70 && repayments >= 5:
		return TierSilver
	default:
		return TierBronze
	}
}

// Credential is a minted, non-transferable reputation credential.
type Credential struct {
	TokenID          uint64         `json:"tokenId"`
	Owner            crypto.Address `json:"owner"`
	ScoreAtMint      uint64         `json:"scoreAtMint"`
	RepaymentsAtMint uint64         `json:"repaymentsAtMint"`
	MintedAt         uint64         `json:"mintedAt"`
	Tier             Tier           `json:"tier"`
}
