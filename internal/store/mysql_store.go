package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// LocationCacheModel is the GORM model for the location_cache table
type LocationCacheModel struct {
	IP       string `gorm:"column:ip;primaryKey;size:45"`
	Payload  string `gorm:"column:payload;type:text"`        // JSON-encoded LocationRecord
	StoredAt int64  `gorm:"column:stored_at;index;not null"` // unix milliseconds
}

// TableName specifies the table name for GORM
// By default, GORM would pluralize to "location_cache_models"
func (LocationCacheModel) TableName() string {
	return "location_cache"
}

// MySQLStore implements Store interface using MySQL with GORM
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store using GORM and migrates the cache table
//
// Parameters:
//   - dsn: Data Source Name (connection string)
//     Format: user:password@tcp(host:port)/dbname?parseTime=true
//
// Returns:
//   - *MySQLStore: pointer to the created store
//   - error: any error that occurred during connection
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	if err := db.AutoMigrate(&LocationCacheModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate location_cache table: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Get(ctx context.Context, ip string) (*models.CacheEntry, error) {
	var record LocationCacheModel

	// SELECT * FROM location_cache WHERE ip = ? ORDER BY ... LIMIT 1
	result := s.db.WithContext(ctx).Where("ip = ?", ip).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database query failed: %w", result.Error)
	}

	var location models.LocationRecord
	if err := json.Unmarshal([]byte(record.Payload), &location); err != nil {
		return nil, fmt.Errorf("failed to decode cached location: %w", err)
	}

	return &models.CacheEntry{
		IP:       record.IP,
		Location: location,
		StoredAt: time.UnixMilli(record.StoredAt),
	}, nil
}

// Put upserts with INSERT ... ON DUPLICATE KEY UPDATE
func (s *MySQLStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	payload, err := json.Marshal(entry.Location)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	record := LocationCacheModel{
		IP:       entry.IP,
		Payload:  string(payload),
		StoredAt: entry.StoredAt.UnixMilli(),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record)
	if result.Error != nil {
		return fmt.Errorf("database upsert failed: %w", result.Error)
	}
	return nil
}

func (s *MySQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&LocationCacheModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("database count failed: %w", err)
	}
	return n, nil
}

func (s *MySQLStore) Clear(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&LocationCacheModel{})
	if result.Error != nil {
		return fmt.Errorf("database clear failed: %w", result.Error)
	}
	return nil
}

func (s *MySQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("stored_at < ?", cutoff.UnixMilli()).
		Delete(&LocationCacheModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("database eviction failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
