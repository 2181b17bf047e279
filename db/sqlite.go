package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store records served recommendations and training runs in SQLite.
type Store struct {
	db *sql.DB
}

type PredictionRecord struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	N           float64   `json:"N"`
	P           float64   `json:"P"`
	K           float64   `json:"K"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	PH          float64   `json:"ph"`
	Rainfall    float64   `json:"rainfall"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	Nodes      int       `json:"nodes"`
	Depth      int       `json:"depth"`
	Seed       int64     `json:"seed"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

// Open creates the database file and schema if needed. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	// One connection keeps an in-memory database shared between calls.
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT,
        n REAL NOT NULL,
        p REAL NOT NULL,
        k REAL NOT NULL,
        temperature REAL NOT NULL,
        humidity REAL NOT NULL,
        ph REAL NOT NULL,
        rainfall REAL NOT NULL,
        label TEXT NOT NULL,
        confidence REAL,
        cached INTEGER DEFAULT 0,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        accuracy REAL,
        nodes INTEGER,
        depth INTEGER,
        seed INTEGER,
        trained_at DATETIME,
        data_points INTEGER
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) SavePrediction(ctx context.Context, rec PredictionRecord) error {
	if s == nil || s.db == nil {
		return errors.New("database not initialized")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            request_id, n, p, k, temperature, humidity, ph, rainfall,
            label, confidence, cached, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.N, rec.P, rec.K, rec.Temperature, rec.Humidity, rec.PH, rec.Rainfall,
		rec.Label, rec.Confidence, rec.Cached, rec.CreatedAt,
	)
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, request_id, n, p, k, temperature, humidity, ph, rainfall,
               label, confidence, cached, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		var requestID sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&r.ID, &requestID, &r.N, &r.P, &r.K, &r.Temperature, &r.Humidity, &r.PH, &r.Rainfall,
			&r.Label, &confidence, &r.Cached, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.RequestID = requestID.String
		r.Confidence = confidence.Float64
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) error {
	if s == nil || s.db == nil {
		return errors.New("database not initialized")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (model_name, accuracy, nodes, depth, seed, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ModelName, log.Accuracy, log.Nodes, log.Depth, log.Seed, log.TrainedAt, log.DataPoints)
	return err
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, accuracy, nodes, depth, seed, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.Accuracy, &log.Nodes, &log.Depth, &log.Seed, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
