// Package db persists the offline training data and the training history in
// SQLite. Prediction results are never stored.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"organicscan/classifier"
	"organicscan/dataset"
)

type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS samples (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        sample_id TEXT NOT NULL UNIQUE,
        f1 REAL NOT NULL,
        f2 REAL NOT NULL,
        f3 REAL NOT NULL,
        f4 REAL NOT NULL,
        f5 REAL NOT NULL,
        f6 REAL NOT NULL,
        f7 REAL NOT NULL,
        f8 REAL NOT NULL,
        fruit TEXT NOT NULL,
        organic INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL UNIQUE,
        model_type VARCHAR(50) NOT NULL,
        fruit_accuracy REAL NOT NULL,
        organic_accuracy TEXT NOT NULL,
        data_points INTEGER NOT NULL,
        model_dir TEXT,
        trained_at DATETIME NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_samples_fruit ON samples(fruit, organic)`,
	`CREATE INDEX IF NOT EXISTS idx_training_log_time ON training_log(trained_at)`,
}

// Open creates the database file and its directory if needed and applies
// the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	conn.SetMaxOpenConns(1)

	for _, query := range schema {
		if _, err := conn.Exec(query); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create schema failed: %w", err)
		}
	}
	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSamples inserts the samples in one transaction. A sample whose ID is
// already stored is replaced.
func (s *Store) SaveSamples(ctx context.Context, samples []dataset.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT OR REPLACE INTO samples (sample_id, f1, f2, f3, f4, f5, f6, f7, f8, fruit, organic)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sample := range samples {
		v := sample.Values
		if _, err := stmt.ExecContext(ctx, sample.ID,
			v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7],
			sample.Fruit.String(), sample.Organic,
		); err != nil {
			return fmt.Errorf("insert sample %s: %w", sample.ID, err)
		}
	}
	return tx.Commit()
}

// LoadSamples returns every stored sample in insertion order.
func (s *Store) LoadSamples(ctx context.Context) ([]dataset.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT sample_id, f1, f2, f3, f4, f5, f6, f7, f8, fruit, organic
        FROM samples
        ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []dataset.Sample
	for rows.Next() {
		var sample dataset.Sample
		var fruit string
		v := &sample.Values
		if err := rows.Scan(&sample.ID,
			&v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7],
			&fruit, &sample.Organic,
		); err != nil {
			return nil, err
		}
		if sample.Fruit, err = classifier.ParseFruit(fruit); err != nil {
			return nil, fmt.Errorf("sample %s: %w", sample.ID, err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *Store) CountSamples(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n)
	return n, err
}

// DeleteSamples empties the sample table.
func (s *Store) DeleteSamples(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM samples`)
	return err
}

type TrainingLog struct {
	RunID           string             `json:"run_id"`
	ModelType       string             `json:"model_type"`
	FruitAccuracy   float64            `json:"fruit_accuracy"`
	OrganicAccuracy map[string]float64 `json:"organic_accuracy"`
	DataPoints      int                `json:"data_points"`
	ModelDir        string             `json:"model_dir"`
	TrainedAt       time.Time          `json:"trained_at"`
}

func (s *Store) LogTraining(ctx context.Context, entry TrainingLog) error {
	if entry.RunID == "" {
		return errors.New("run id required")
	}
	organic, err := json.Marshal(entry.OrganicAccuracy)
	if err != nil {
		return err
	}
	if entry.TrainedAt.IsZero() {
		entry.TrainedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO training_log (run_id, model_type, fruit_accuracy, organic_accuracy, data_points, model_dir, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.ModelType, entry.FruitAccuracy, string(organic),
		entry.DataPoints, entry.ModelDir, entry.TrainedAt.UTC(),
	)
	return err
}

// TrainingHistory returns the most recent runs first. limit <= 0 returns
// all of them.
func (s *Store) TrainingHistory(ctx context.Context, limit int) ([]TrainingLog, error) {
	query := `
        SELECT run_id, model_type, fruit_accuracy, organic_accuracy, data_points, model_dir, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var entry TrainingLog
		var organic string
		var modelDir sql.NullString
		if err := rows.Scan(&entry.RunID, &entry.ModelType, &entry.FruitAccuracy, &organic,
			&entry.DataPoints, &modelDir, &entry.TrainedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(organic), &entry.OrganicAccuracy); err != nil {
			return nil, fmt.Errorf("run %s: organic accuracy: %w", entry.RunID, err)
		}
		entry.ModelDir = modelDir.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
