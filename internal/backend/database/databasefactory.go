package database

import (
	"fmt"
	"log/slog"
)

const (
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

func NewDatabase(databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case TypeSQLite:
		database, err = NewSQLiteDatabase(connectionString)
	case TypeRedis:
		database, err = NewRedisDatabase(connectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	// Ensure schema exists (idempotent), important for in-memory SQLite
	slog.Debug("initializing preview cache schema", "type", databaseType)
	if err = database.CreateDatabase(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
