package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"sentechain/core/events"
	"sentechain/core/types"
)

// Store is the relational projection of committed ledger events. It is
// read-only from the API's point of view; only Apply writes.
type Store struct {
	db *gorm.DB
}

// Open connects to driver (sqlite or postgres) and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("mirror: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("mirror: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("mirror: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("mirror: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LastHeight returns the highest applied height, zero when empty.
func (s *Store) LastHeight(ctx context.Context) (uint64, error) {
	var height sql.NullInt64
	if err := s.db.WithContext(ctx).Model(&EventRow{}).Select("MAX(height)").Row().Scan(&height); err != nil {
		return 0, err
	}
	if !height.Valid || height.Int64 < 0 {
		return 0, nil
	}
	return uint64(height.Int64), nil
}

// Apply projects one committed record. Records already applied are skipped,
// so replays are harmless.
func (s *Store) Apply(ctx context.Context, rec events.Record) error {
	if rec.Event == nil {
		return nil
	}
	attrs, err := json.Marshal(rec.Event.Attributes)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := EventRow{
			ID:         uuid.New(),
			Height:     rec.Height,
			EventIndex: rec.Index,
			Type:       rec.Event.Type,
			Timestamp:  rec.Timestamp,
			Attributes: string(attrs),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return project(tx, rec)
	})
}

func project(tx *gorm.DB, rec events.Record) error {
	evt := rec.Event
	switch evt.Type {
	case events.TypeReputationProfileCreated:
		user, err := loadUser(tx, evt.Attr("principal"))
		if err != nil {
			return err
		}
		user.Score = attrUint(evt, "score")
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return tx.Create(&ScoreChangeRow{
			ID:         uuid.New(),
			Address:    user.Address,
			NewScore:   user.Score,
			Reason:     ReasonInitial,
			Height:     rec.Height,
			EventIndex: rec.Index,
			Timestamp:  int64(attrUint(evt, "createdAt")),
		}).Error
	case events.TypeReputationScoreUpdated:
		user, err := loadUser(tx, evt.Attr("principal"))
		if err != nil {
			return err
		}
		user.Score = attrUint(evt, "newScore")
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return tx.Create(&ScoreChangeRow{
			ID:         uuid.New(),
			Address:    user.Address,
			OldScore:   attrUint(evt, "oldScore"),
			NewScore:   user.Score,
			Reason:     evt.Attr("reason"),
			Height:     rec.Height,
			EventIndex: rec.Index,
			Timestamp:  int64(attrUint(evt, "updatedAt")),
		}).Error
	case events.TypeLendingLoanRequested:
		user, err := loadUser(tx, evt.Attr("borrower"))
		if err != nil {
			return err
		}
		user.TotalLoans++
		user.TotalBorrowed = addAmounts(user.TotalBorrowed, evt.Attr("principal"))
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return tx.Create(&LoanRow{
			ID:          uuid.New(),
			Borrower:    user.Address,
			LoanID:      attrUint(evt, "loanId"),
			Principal:   evt.Attr("principal"),
			InterestDue: evt.Attr("interestDue"),
			Score:       attrUint(evt, "score"),
			Status:      StatusActive,
			StartTime:   int64(attrUint(evt, "startTime")),
			DueDate:     int64(attrUint(evt, "dueDate")),
		}).Error
	case events.TypeLendingLoanRepaid:
		return closeLoan(tx, evt, StatusRepaid, "repaidAt")
	case events.TypeLendingLoanDefaulted:
		return closeLoan(tx, evt, StatusDefaulted, "defaultedAt")
	case events.TypeCredentialMinted:
		user, err := loadUser(tx, evt.Attr("owner"))
		if err != nil {
			return err
		}
		user.HasCredential = true
		user.CredentialTier = evt.Attr("tier")
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return tx.Create(&CredentialRow{
			TokenID:    attrUint(evt, "tokenId"),
			Owner:      user.Address,
			Score:      attrUint(evt, "score"),
			Repayments: attrUint(evt, "repayments"),
			Tier:       user.CredentialTier,
			MintedAt:   int64(attrUint(evt, "mintedAt")),
		}).Error
	case events.TypeLendingDeposited, events.TypeLendingWithdrawn:
		kind := "deposit"
		if evt.Type == events.TypeLendingWithdrawn {
			kind = "withdraw"
		}
		return tx.Create(&LenderActivityRow{
			ID:        uuid.New(),
			Lender:    evt.Attr("lender"),
			Kind:      kind,
			Amount:    evt.Attr("amount"),
			Position:  evt.Attr("position"),
			Height:    rec.Height,
			Timestamp: int64(attrUint(evt, "timestamp")),
		}).Error
	}
	return nil
}

func closeLoan(tx *gorm.DB, evt *types.Event, status, closedAttr string) error {
	borrower := evt.Attr("borrower")
	res := tx.Model(&LoanRow{}).
		Where("borrower = ? AND loan_id = ?", borrower, attrUint(evt, "loanId")).
		Updates(map[string]interface{}{"status": status, "closed_at": int64(attrUint(evt, closedAttr))})
	if res.Error != nil {
		return res.Error
	}
	user, err := loadUser(tx, borrower)
	if err != nil {
		return err
	}
	if status == StatusRepaid {
		user.SuccessfulRepayments++
		user.TotalRepaid = addAmounts(user.TotalRepaid, evt.Attr("total"))
	} else {
		user.DefaultedLoans++
	}
	return tx.Save(user).Error
}

func loadUser(tx *gorm.DB, address string) (*UserRow, error) {
	if address == "" {
		return nil, errors.New("mirror: event without principal")
	}
	user := &UserRow{Address: address}
	err := tx.First(user, "address = ?", address).Error
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &UserRow{Address: address, TotalBorrowed: "0", TotalRepaid: "0"}, nil
	default:
		return nil, err
	}
}

func addAmounts(a, b string) string {
	return new(big.Int).Add(parseAmount(a), parseAmount(b)).String()
}

func attrUint(evt *types.Event, key string) uint64 {
	v, err := strconv.ParseUint(evt.Attr(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
