package database

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// Every new connection to ":memory:" opens a fresh, empty database.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS previews (
		key TEXT PRIMARY KEY,
		preview BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) GetPreview(key string) ([]byte, error) {
	row := s.db.QueryRow("SELECT preview FROM previews WHERE key = ?", key)
	var preview []byte
	if err := row.Scan(&preview); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return preview, nil
}

func (s *SQLiteDatabase) SetPreview(key string, preview []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO previews (key, preview, created_at) VALUES (?, ?, ?)",
		key, preview, time.Now().Unix())
	return err
}

func (s *SQLiteDatabase) DeletePreview(key string) error {
	_, err := s.db.Exec("DELETE FROM previews WHERE key = ?", key)
	return err
}

func (s *SQLiteDatabase) CountPreviews() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM previews").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
