package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore хранит документы сохранения в одном файле SQLite
// (таблица saves, ключ profile+world_id). Удобно для переносимых слотов.
type SQLiteStore struct {
	db      *sql.DB
	mutex   sync.RWMutex
	isReady bool
}

// NewSQLiteStore открывает (создаёт) базу path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к базе SQLite")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть SQLite: %w", err)
	}
	// Один писатель: SQLite сериализует запись
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("ошибка %s: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS saves (
			profile    TEXT    NOT NULL,
			world_id   TEXT    NOT NULL,
			document   BLOB    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (profile, world_id)
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания таблицы saves: %w", err)
	}

	return &SQLiteStore{db: db, isReady: true}, nil
}

// Save записывает документ (UPSERT)
func (s *SQLiteStore) Save(ctx context.Context, profile, worldID string, doc *Document) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrClosed
	}

	query := `
		INSERT INTO saves (profile, world_id, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile, world_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, profile, worldID, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("ошибка сохранения %s/%s в SQLite: %w", profile, worldID, err)
	}
	return nil
}

// Load читает документ
func (s *SQLiteStore) Load(ctx context.Context, profile, worldID string) (*Document, error) {
	if err := validateKey(profile, worldID); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM saves WHERE profile = ? AND world_id = ?`, profile, worldID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s/%s из SQLite: %w", profile, worldID, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, err)
	}
	return doc, nil
}

// Delete удаляет документ; отсутствие строки не ошибка
func (s *SQLiteStore) Delete(ctx context.Context, profile, worldID string) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE profile = ? AND world_id = ?`, profile, worldID)
	return err
}

// List перечисляет миры профиля
func (s *SQLiteStore) List(ctx context.Context, profile string) ([]string, error) {
	if err := validateName("профиль", profile); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT world_id FROM saves WHERE profile = ? ORDER BY world_id`, profile)
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления сохранений: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close закрывает базу
func (s *SQLiteStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
