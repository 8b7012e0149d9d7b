// Package store persists an audit trail of executed cells and installed
// packages to a local sqlite database, so `swiftkernel history` and
// `swiftkernel packages` can report on past kernel activity across
// process restarts. The kernel's in-process Session remains
// the source of truth while the process is alive; this store is a
// best-effort log, not a durability guarantee.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"swiftkernel/logging"
)

// CellRecord is one execute_request's audit entry.
type CellRecord struct {
	ID             uint `gorm:"primarykey"`
	SessionID      string
	ExecutionCount int
	Source         string
	Outcome        string
	Message        string
	CreatedAt      time.Time
}

// InstalledPackageRecord audits a completed package install.
type InstalledPackageRecord struct {
	ID          uint `gorm:"primarykey"`
	SessionID   string
	Product     string
	Dependency  string
	Fingerprint string
	CreatedAt   time.Time
}

// gormLogger routes gorm's log output through the kernel's structured
// logger instead of gorm's own stdout writer.
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		logging.FromContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		logging.FromContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		logging.FromContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level < logger.Info {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("audit db query error", "error", err, "duration", elapsed, "sql", sql, "rows", rows)
		return
	}
	logging.Logger.Debug("audit db query", "duration", elapsed, "sql", sql, "rows", rows)
}

func newGormLogger() logger.Interface {
	if os.Getenv("SWIFTKERNEL_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// Store wraps the audit database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite database at path, in WAL
// mode for safe concurrent reads from the CLI while a kernel is running.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit db directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")

	if err := db.AutoMigrate(&CellRecord{}, &InstalledPackageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit db schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	return &Store{db: db}, nil
}

// RecordCell appends a cell's outcome to the audit log, retrying on
// SQLITE_BUSY the way concurrent CLI reads can transiently trigger.
func (s *Store) RecordCell(ctx context.Context, rec CellRecord) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Create(&rec).Error
	}, 3)
}

// RecordPackage appends an installed-package audit entry.
func (s *Store) RecordPackage(ctx context.Context, rec InstalledPackageRecord) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Create(&rec).Error
	}, 3)
}

// History returns the most recent cell records, newest first, for the
// `swiftkernel history` command.
func (s *Store) History(ctx context.Context, limit int) ([]CellRecord, error) {
	var out []CellRecord
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Packages returns every recorded package install, newest first, for the
// `swiftkernel packages` command.
func (s *Store) Packages(ctx context.Context) ([]InstalledPackageRecord, error) {
	var out []InstalledPackageRecord
	err := s.db.WithContext(ctx).Order("id DESC").Find(&out).Error
	return out, err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}
		return err
	}
	return fmt.Errorf("audit db operation failed after %d retries", maxRetries)
}
