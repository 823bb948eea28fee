package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupMockDB creates a mock database for testing
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	return db, mock, sqlDB
}

const selectByIP = "SELECT \\* FROM `location_cache` WHERE ip = \\? .*"

// TestMySQLStore_Get_Success tests successful lookup
func TestMySQLStore_Get_Success(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	// GORM adds LIMIT 1 to First() queries, so we expect 2 args: ip and limit
	rows := sqlmock.NewRows([]string{"ip", "payload", "stored_at"}).
		AddRow("8.8.8.8", `{"ip":"8.8.8.8","city":"Mountain View","lat":37.386,"lng":-122.0838}`, int64(1700000000000))

	mock.ExpectQuery(selectByIP).
		WithArgs("8.8.8.8", 1).
		WillReturnRows(rows)

	entry, err := s.Get(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.IP != "8.8.8.8" {
		t.Errorf("expected IP '8.8.8.8', got '%s'", entry.IP)
	}
	if entry.Location.City != "Mountain View" {
		t.Errorf("expected 'Mountain View', got '%s'", entry.Location.City)
	}
	if entry.Location.Lat != 37.386 {
		t.Errorf("expected lat 37.386, got %v", entry.Location.Lat)
	}
	if !entry.StoredAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected stored at: %v", entry.StoredAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// TestMySQLStore_Get_NotFound tests IP not found
func TestMySQLStore_Get_NotFound(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	mock.ExpectQuery(selectByIP).
		WithArgs("192.168.1.1", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	entry, err := s.Get(context.Background(), "192.168.1.1")

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if entry != nil {
		t.Error("expected nil entry, got data")
	}
}

// TestMySQLStore_Get_DatabaseError tests database errors
func TestMySQLStore_Get_DatabaseError(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	mock.ExpectQuery(selectByIP).
		WithArgs("8.8.8.8", 1).
		WillReturnError(sql.ErrConnDone)

	_, err := s.Get(context.Background(), "8.8.8.8")

	if err == nil {
		t.Fatal("expected database error, got nil")
	}
	// Should wrap the error, not report a miss
	if errors.Is(err, ErrNotFound) {
		t.Error("expected database error, got not found error")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("expected wrapped sql.ErrConnDone, got %v", err)
	}
}

// TestMySQLStore_Put tests the upsert statement
func TestMySQLStore_Put(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `location_cache` .* ON DUPLICATE KEY UPDATE .*").
		WithArgs("8.8.8.8", sqlmock.AnyArg(), int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.Put(context.Background(), testEntry("8.8.8.8", "Mountain View", time.UnixMilli(1700000000000)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// TestMySQLStore_Count tests counting rows
func TestMySQLStore_Count(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `location_cache`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(3))

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

// TestMySQLStore_Clear tests deleting every row
func TestMySQLStore_Clear(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `location_cache`").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// TestMySQLStore_DeleteOlderThan tests eviction by stored_at
func TestMySQLStore_DeleteOlderThan(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}
	cutoff := time.UnixMilli(1700000000000)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `location_cache` WHERE stored_at < \\?").
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	removed, err := s.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed rows, got %d", removed)
	}
}

// TestMySQLStore_Close tests cleanup
func TestMySQLStore_Close(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	s := &MySQLStore{db: db}

	mock.ExpectClose()

	if err := s.Close(); err != nil {
		t.Errorf("unexpected error on close: %v", err)
	}
}

// TestMySQLStore_Close_NilDB tests close with nil db
func TestMySQLStore_Close_NilDB(t *testing.T) {
	s := &MySQLStore{db: nil}

	if err := s.Close(); err != nil {
		t.Errorf("expected no error for nil db, got: %v", err)
	}
}

// TestLocationCacheModel_TableName tests GORM table name override
func TestLocationCacheModel_TableName(t *testing.T) {
	if name := (LocationCacheModel{}).TableName(); name != "location_cache" {
		t.Errorf("expected table name 'location_cache', got '%s'", name)
	}
}
