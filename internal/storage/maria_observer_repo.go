package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaObserverRepo реализует ObserverRepo для MariaDB/MySQL.
// Использует таблицу observer_positions.
type MariaObserverRepo struct {
	db *sql.DB
}

// NewMariaObserverRepo подключается к базе и создает таблицу при необходимости.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaObserverRepo(ctx context.Context, dsn string) (*MariaObserverRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaObserverRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

func (r *MariaObserverRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS observer_positions (
			player_id  VARCHAR(64)  PRIMARY KEY,
			world_id   VARCHAR(128) NOT NULL,
			entrance   VARCHAR(128) NOT NULL DEFAULT '',
			x          DOUBLE       NOT NULL,
			y          DOUBLE       NOT NULL,
			z          DOUBLE       NOT NULL,
			updated_at TIMESTAMP    NOT NULL,
			INDEX idx_world (world_id)
		) ENGINE=InnoDB
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы observer_positions: %w", err)
	}
	return nil
}

// Save сохраняет позицию (INSERT ... ON DUPLICATE KEY UPDATE)
func (r *MariaObserverRepo) Save(ctx context.Context, pos ObserverPosition) error {
	if err := validateObserver(pos); err != nil {
		return err
	}
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO observer_positions (player_id, world_id, entrance, x, y, z, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			world_id = VALUES(world_id),
			entrance = VALUES(entrance),
			x = VALUES(x),
			y = VALUES(y),
			z = VALUES(z),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query, pos.PlayerID, pos.WorldID, pos.Entrance,
		pos.Position.X, pos.Position.Y, pos.Position.Z, pos.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ошибка сохранения позиции игрока %s: %w", pos.PlayerID, err)
	}
	return nil
}

// Load загружает позицию
func (r *MariaObserverRepo) Load(ctx context.Context, playerID string) (ObserverPosition, bool, error) {
	query := `SELECT world_id, entrance, x, y, z, updated_at FROM observer_positions WHERE player_id = ?`

	pos := ObserverPosition{PlayerID: playerID}
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&pos.WorldID, &pos.Entrance, &pos.Position.X, &pos.Position.Y, &pos.Position.Z, &pos.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Первый вход игрока
		return ObserverPosition{}, false, nil
	}
	if err != nil {
		return ObserverPosition{}, false, fmt.Errorf("ошибка загрузки позиции игрока %s: %w", playerID, err)
	}
	return pos, true, nil
}

// Delete удаляет позицию
func (r *MariaObserverRepo) Delete(ctx context.Context, playerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM observer_positions WHERE player_id = ?`, playerID)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции игрока %s: %w", playerID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("позиция игрока %s: %w", playerID, ErrNotFound)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (r *MariaObserverRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
