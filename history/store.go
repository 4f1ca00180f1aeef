package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRecordNotFound is returned when a record ID does not exist for the
// given user.
var ErrRecordNotFound = errors.New("prediction record not found")

// DefaultListLimit caps how many records ListForUser returns when the
// caller does not ask for a specific limit.
const DefaultListLimit = 50

// Store persists prediction records in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitializeSchema ensures the predictions table exists.
func InitializeSchema(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		disease TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		description TEXT,
		treatment TEXT,
		image_ref TEXT,
		created_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create predictions table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_predictions_user ON predictions (user_id, created_at DESC);`); err != nil {
		return fmt.Errorf("failed to create predictions index: %w", err)
	}
	return nil
}

func (s *Store) Save(rec PredictionRecord) error {
	_, err := s.db.Exec(`INSERT INTO predictions
		(id, user_id, name, disease, confidence, description, treatment, image_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Name, rec.Disease, rec.Confidence,
		rec.Description, rec.Treatment, rec.ImageRef, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save prediction record: %w", err)
	}
	return nil
}

// ListForUser returns the user's records, newest first. A limit of 0 uses
// DefaultListLimit.
func (s *Store) ListForUser(userID string, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Query(`SELECT id, user_id, name, disease, confidence, description, treatment, image_ref, created_at
		FROM predictions WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PredictionRecord
	for rows.Next() {
		var rec PredictionRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.Disease, &rec.Confidence,
			&rec.Description, &rec.Treatment, &rec.ImageRef, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes one record owned by the user.
func (s *Store) Delete(userID, recordID string) error {
	res, err := s.db.Exec(`DELETE FROM predictions WHERE id = ? AND user_id = ?`, recordID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteAllForUser wipes the user's scan history.
func (s *Store) DeleteAllForUser(userID string) error {
	_, err := s.db.Exec(`DELETE FROM predictions WHERE user_id = ?`, userID)
	return err
}
