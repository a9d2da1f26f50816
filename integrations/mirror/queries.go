package mirror

import (
	"context"
	"database/sql"
	"math"
	"math/big"
)

// DefaultHistoryLimit bounds ScoreHistory when the caller passes zero.
const DefaultHistoryLimit = 10

// LoanStats aggregates every mirrored loan.
type LoanStats struct {
	TotalLoans     int64   `json:"totalLoans"`
	ActiveLoans    int64   `json:"activeLoans"`
	RepaidLoans    int64   `json:"repaidLoans"`
	DefaultedLoans int64   `json:"defaultedLoans"`
	TotalBorrowed  string  `json:"totalBorrowed"`
	TotalRepaid    string  `json:"totalRepaid"`
	RepaymentRate  float64 `json:"repaymentRate"`
}

// PlatformStats aggregates the user projection.
type PlatformStats struct {
	TotalUsers         int64   `json:"totalUsers"`
	UsersWithLoans     int64   `json:"usersWithLoans"`
	UsersWithBadges    int64   `json:"usersWithBadges"`
	AverageCreditScore float64 `json:"averageCreditScore"`
}

// User returns the projection for address, or nil when it was never seen.
func (s *Store) User(ctx context.Context, address string) (*UserRow, error) {
	var rows []UserRow
	if err := s.db.WithContext(ctx).Where("address = ?", address).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UserProfile is a user projection together with its repayment rate, the
// share of loans repaid in percent. The rate is nil before the first loan.
type UserProfile struct {
	UserRow
	RepaymentRate *float64 `json:"repaymentRate"`
}

// UserProfile returns the projection and repayment rate of address, or nil
// when it was never seen.
func (s *Store) UserProfile(ctx context.Context, address string) (*UserProfile, error) {
	user, err := s.User(ctx, address)
	if err != nil || user == nil {
		return nil, err
	}
	profile := &UserProfile{UserRow: *user}
	if user.TotalLoans > 0 {
		rate := round2(float64(user.SuccessfulRepayments) / float64(user.TotalLoans) * 100)
		profile.RepaymentRate = &rate
	}
	return profile, nil
}

// UserLoans lists borrower's loans ordered by loan id.
func (s *Store) UserLoans(ctx context.Context, borrower string, activeOnly bool) ([]LoanRow, error) {
	query := s.db.WithContext(ctx).Where("borrower = ?", borrower)
	if activeOnly {
		query = query.Where("status = ?", StatusActive)
	}
	var rows []LoanRow
	if err := query.Order("loan_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ScoreHistory returns the latest score changes of address, newest first.
func (s *Store) ScoreHistory(ctx context.Context, address string, limit int) ([]ScoreChangeRow, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []ScoreChangeRow
	err := s.db.WithContext(ctx).
		Where("address = ?", address).
		Order("height DESC").Order("event_index DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LoanStats computes the loan aggregates. Amounts are summed as big integers
// in Go since they are stored as decimal strings.
func (s *Store) LoanStats(ctx context.Context) (*LoanStats, error) {
	var rows []LoanRow
	if err := s.db.WithContext(ctx).Select("principal", "interest_due", "status").Find(&rows).Error; err != nil {
		return nil, err
	}
	stats := &LoanStats{TotalLoans: int64(len(rows))}
	borrowed := new(big.Int)
	repaid := new(big.Int)
	for _, row := range rows {
		principal := parseAmount(row.Principal)
		borrowed.Add(borrowed, principal)
		switch row.Status {
		case StatusActive:
			stats.ActiveLoans++
		case StatusRepaid:
			stats.RepaidLoans++
			repaid.Add(repaid, principal)
			repaid.Add(repaid, parseAmount(row.InterestDue))
		case StatusDefaulted:
			stats.DefaultedLoans++
		}
	}
	stats.TotalBorrowed = borrowed.String()
	stats.TotalRepaid = repaid.String()
	if stats.TotalLoans > 0 {
		stats.RepaymentRate = round2(float64(stats.RepaidLoans) / float64(stats.TotalLoans) * 100)
	}
	return stats, nil
}

// PlatformStats computes the user aggregates.
func (s *Store) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{}
	if err := s.db.WithContext(ctx).Model(&UserRow{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&UserRow{}).Where("total_loans > 0").Count(&stats.UsersWithLoans).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&UserRow{}).Where("has_credential = ?", true).Count(&stats.UsersWithBadges).Error; err != nil {
		return nil, err
	}
	var avg sql.NullFloat64
	if err := s.db.WithContext(ctx).Model(&UserRow{}).Select("AVG(score)").Row().Scan(&avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AverageCreditScore = round2(avg.Float64)
	}
	return stats, nil
}

func parseAmount(v string) *big.Int {
	out, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return new(big.Int)
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
