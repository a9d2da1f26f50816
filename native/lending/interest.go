package lending

import "math/big"

var basisPoints = big.NewInt(10_000)

// Interest rate schedule in basis points, keyed by the lowest score of each
// step.
const (
	RateExcellentBps uint64 = 500  // score >= 91
	RateGoodBps      uint64 = 600  // 81..90
	RateFairBps      uint64 = 800  // 71..80
	RateBaseBps      uint64 = 1000 // everything else
)

// InterestRateBps returns the flat rate applied to a loan for score. The
// schedule is a non-increasing step function of score.
func InterestRateBps(score uint64) uint64 {
	switch {
	case score >= 91:
		return RateExcellentBps
	case score >= 81:
		return RateGoodBps
	case score >= 71:
		return RateFairBps
	default:
		return RateBaseBps
	}
}

// CalculateInterest returns the interest owed on amount for a borrower with
// score, truncating toward zero.
func CalculateInterest(amount *big.Int, score uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(amount, new(big.Int).SetUint64(InterestRateBps(score)))
	return interest.Quo(interest, basisPoints)
}

// ScoreTier labels a score the way borrowers see it. Scores below the
// Bronze floor are Unrated.
func ScoreTier(score uint64) string {
	switch {
	case score >= 90:
		return "Platinum"
	case score >= 80:
		return "Gold"
	case score >= 70:
		return "Silver"
	case score >= 60:
		return "Bronze"
	default:
		return "Unrated"
	}
}

// MaxLoanForScore returns the largest principal quoted to a borrower with
// score. Unrated scores get zero.
func MaxLoanForScore(score uint64) *big.Int {
	switch {
	case score >= 90:
		return big.NewInt(1000)
	case score >= 80:
		return big.NewInt(750)
	case score >= 70:
		return big.NewInt(500)
	case score >= 60:
		return big.NewInt(250)
	default:
		return big.NewInt(0)
	}
}
