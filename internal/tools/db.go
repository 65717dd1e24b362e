package tools

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"time"

	"embed"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migration/*
var migrationFiles embed.FS

// ConnectSqlite opens (or creates) the readings database and applies the
// embedded schema migrations. The acquisition loop writes while HTTP
// handlers read, so the connection runs in WAL mode.
func ConnectSqlite(filePath string) (*sql.DB, error) {
	db, err := connectWithBackoff("sqlite3", filePath+"?_journal_mode=WAL", 3)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// RunMigrations applies every embedded migration file, in name order.
func RunMigrations(db *sql.DB) error {
	dirEntries, err := fs.ReadDir(migrationFiles, "migration")
	if err != nil {
		return err
	}
	for _, entry := range dirEntries {
		fileData, err := fs.ReadFile(migrationFiles, "migration/"+entry.Name())
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(fileData)); err != nil {
			return fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func connectWithBackoff(driver string, connStr string, maxRetries int) (*sql.DB, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sql.Open(driver, connStr)
		if err == nil {
			if err = db.Ping(); err == nil {
				return db, nil
			}
		}
		lastErr = err
		log.Println("Failed attempt to connect to " + driver + ": " + err.Error())
		time.Sleep(time.Duration(i+1) * (3 * time.Second))
	}
	return nil, lastErr
}
