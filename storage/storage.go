// Package storage persists finished backtest reports via gorm, selecting a
// sqlite or postgres backend from the environment. Grounded on the gorm
// model/tag conventions in the teacher's internal/database/database.go and
// the env-driven backend selection in its storage/database.go.
package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
)

// BacktestReportRecord is the gorm-mapped row one finished run persists.
type BacktestReportRecord struct {
	ID              uint `gorm:"primaryKey"`
	ManifestName    string
	StartedAt       time.Time
	FinishedAt      time.Time
	FinalEquityUSD  float64 `gorm:"type:decimal(20,6)"`
	TotalReturn     float64
	MaxDrawdown     float64
	FillCount       int
	DeclinedOrders  int
}

// FillRecord is one persisted Fill belonging to a BacktestReportRecord.
type FillRecord struct {
	ID             uint `gorm:"primaryKey"`
	ReportID       uint `gorm:"index"`
	UUID           string
	Symbol         string
	Action         string
	Quantity       string
	PriceUSD       float64 `gorm:"type:decimal(20,6)"`
	CreatedAtNanos int64
}

// ReportStore persists completed backtest reports. A store with no database
// (from NewDisabled, or a nil *ReportStore) accepts Save calls as no-ops,
// matching the
// teacher's storage/database.go IsEnabled() escape hatch for running
// without a configured database.
type ReportStore struct {
	db *gorm.DB
}

// Open selects sqlite or postgres based on the DATABASE_DRIVER environment
// variable ("sqlite", the default, or "postgres", which then requires
// DATABASE_DSN) and runs AutoMigrate.
func Open() (*ReportStore, error) {
	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		path := os.Getenv("DATABASE_PATH")
		if path == "" {
			path = "polyforge.db"
		}
		dialector = sqlite.Open(path)
	case "postgres":
		dsn := os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("storage: DATABASE_DSN is required when DATABASE_DRIVER=postgres")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unknown DATABASE_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}

	if err := db.AutoMigrate(&BacktestReportRecord{}, &FillRecord{}); err != nil {
		return nil, fmt.Errorf("storage: automigrate: %w", err)
	}

	log.Info().Str("driver", driver).Msg("storage: database ready")
	return &ReportStore{db: db}, nil
}

// NewDisabled returns a ReportStore whose Save calls are no-ops, for runs
// invoked without a backing database.
func NewDisabled() *ReportStore { return &ReportStore{} }

// IsEnabled reports whether this store is backed by a real database.
func (r *ReportStore) IsEnabled() bool { return r != nil && r.db != nil }

// Save persists a completed report and its fills in one transaction. The
// store takes no lock of its own: concurrent Save calls from a runner.Pool
// each run their own transaction on the shared gorm.DB, which is safe for
// concurrent use.
func (r *ReportStore) Save(manifestName string, startedAt, finishedAt time.Time, fills []models.Fill, finalEquity money.Money, totalReturn, maxDrawdown float64, declinedOrders int) error {
	if !r.IsEnabled() {
		return nil
	}

	record := BacktestReportRecord{
		ManifestName:   manifestName,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		FinalEquityUSD: finalEquity.ToDollars(),
		TotalReturn:    totalReturn,
		MaxDrawdown:    maxDrawdown,
		FillCount:      len(fills),
		DeclinedOrders: declinedOrders,
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("storage: create report: %w", err)
		}
		for _, f := range fills {
			fr := FillRecord{
				ReportID:       record.ID,
				UUID:           f.UUID,
				Symbol:         f.Symbol,
				Action:         string(f.Action),
				Quantity:       f.Quantity.String(),
				PriceUSD:       f.Price.ToDollars(),
				CreatedAtNanos: f.CreatedAtNanos,
			}
			if err := tx.Create(&fr).Error; err != nil {
				return fmt.Errorf("storage: create fill: %w", err)
			}
		}
		return nil
	})
}
