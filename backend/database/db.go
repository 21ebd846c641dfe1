package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *gorm.DB
}

// New creates a new database connection and migrates the schema.
//
// The DSN supports both SQLite and MySQL:
//   - SQLite: "./data/docconvert.db" or any plain file path
//   - MySQL:  "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func New(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = "./data/docconvert.db"
	}

	var dialector gorm.Dialector
	if strings.Contains(dsn, "@tcp(") {
		dialector = mysql.Open(dsn)
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// DriverName "sqlite" selects the CGO-free modernc driver.
		// WAL plus a busy timeout keeps concurrent task updates from
		// failing with SQLITE_BUSY.
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
		}
		dialector = sqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := conn.AutoMigrate(&TaskModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
