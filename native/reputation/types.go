package reputation

const (
	// DefaultScore is reported for principals without an active profile.
	DefaultScore uint64 = 50
	// MaxScore is the inclusive upper bound of the score domain.
	MaxScore uint64 = 100
	// RepaymentBonus is added to the score on every successful repayment.
	RepaymentBonus uint64 = 2
	// DefaultPenalty is subtracted from the score on every default.
	DefaultPenalty uint64 = 15
)

// Profile is the reputation record kept for a principal.
type Profile struct {
	Score                uint64 `json:"score"`
	LastUpdated          uint64 `json:"lastUpdated"`
	TotalLoans           uint64 `json:"totalLoans"`
	SuccessfulRepayments uint64 `json:"successfulRepayments"`
	DefaultedLoans       uint64 `json:"defaultedLoans"`
	Active               bool   `json:"active"`
}

// RepaymentRate returns successful repayments as a truncated percentage of
// total loans. Profiles without loans report zero.
func (p *Profile) RepaymentRate() uint64 {
	if p == nil || !p.Active || p.TotalLoans == 0 {
		return 0
	}
	return p.SuccessfulRepayments * 100 / p.TotalLoans
}

func validScore(score int64) bool {
	return score >= 0 && uint64(score) <= MaxScore
}
