package database

import (
	"fmt"
	"strings"
	"time"

	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// entities are auto-migrated in dependency order
var entities = []interface{}{
	&models.Item{},
	&models.PriceSample{},
}

// Dialect names the SQL backend selected from the connection URL.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DetectDialect picks a backend from the URL scheme. Anything unrecognised is treated as a
// MySQL DSN, which is what production deployments use.
func DetectDialect(databaseURL string) (Dialect, string) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DialectPostgres, u
	case strings.HasPrefix(u, "sqlite://"):
		return DialectSQLite, sqliteDSN(strings.TrimPrefix(u, "sqlite://"))
	case strings.HasPrefix(u, "file:"), strings.HasSuffix(u, ".db"):
		return DialectSQLite, sqliteDSN(u)
	case strings.HasPrefix(u, "mysql://"):
		return DialectMySQL, strings.TrimPrefix(u, "mysql://")
	default:
		return DialectMySQL, u
	}
}

// sqliteDSN makes sure foreign keys are enforced, otherwise deleting an item would leave
// orphaned samples behind.
func sqliteDSN(path string) string {
	if strings.Contains(path, "foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func Initialize(databaseURL string) (*gorm.DB, error) {
	dialect, dsn := DetectDialect(databaseURL)

	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	default:
		dialector = mysql.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dialect == DialectSQLite {
		// a single writer avoids "database is locked" under concurrent API requests
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if dialect == DialectMySQL {
		if err := ensureCaseSensitiveNames(db); err != nil {
			logger.Warn("Migration warning: %v", err)
		}
	}

	logger.Info("Database initialized successfully (%s)", dialect)
	return db, nil
}

// Migrate creates or updates the items and price_history tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entities...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureCaseSensitiveNames switches items.market_hash_name to a binary collation on MySQL.
// The default utf8mb4 collations compare case-insensitively, which would make names that
// differ only by case collide on the unique index.
func ensureCaseSensitiveNames(db *gorm.DB) error {
	var collation string
	checkSQL := `SELECT COALESCE(collation_name, '') FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = 'items' AND column_name = 'market_hash_name'`
	if err := db.Raw(checkSQL).Scan(&collation).Error; err != nil {
		return fmt.Errorf("failed checking market_hash_name collation: %w", err)
	}
	if strings.HasSuffix(collation, "_bin") {
		return nil
	}
	alterSQL := `ALTER TABLE items MODIFY market_hash_name VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL`
	if err := db.Exec(alterSQL).Error; err != nil {
		return fmt.Errorf("failed switching market_hash_name to utf8mb4_bin: %w", err)
	}
	logger.Info("Switched items.market_hash_name to utf8mb4_bin")
	return nil
}
