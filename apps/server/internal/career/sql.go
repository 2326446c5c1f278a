package career

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"asylum-lite/apps/server/internal/store"
	"asylum-lite/asylum"
)

type SQLService struct {
	db *store.DB
}

var careerSchema = []string{
	`
CREATE TABLE IF NOT EXISTS career_records (
    account_id {{int}} PRIMARY KEY,
    games INTEGER NOT NULL DEFAULT 0,
    doctor_games INTEGER NOT NULL DEFAULT 0,
    doctor_wins INTEGER NOT NULL DEFAULT 0,
    patient_games INTEGER NOT NULL DEFAULT 0,
    patient_wins INTEGER NOT NULL DEFAULT 0,
    titles TEXT NOT NULL DEFAULT '[]',
    updated_at_ms {{int}} NOT NULL
)`,
}

func NewSQLService(db *store.DB) (*SQLService, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()
	if err := db.EnsureSchema(ctx, careerSchema...); err != nil {
		return nil, fmt.Errorf("ensure career schema: %w", err)
	}
	return &SQLService{db: db}, nil
}

// Close is a no-op; main owns the shared handle.
func (s *SQLService) Close() error { return nil }

func (s *SQLService) GetRecord(ctx context.Context, accountID uint64) (*Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, store.OpTimeout)
	defer cancel()

	r, err := s.read(ctx, s.db.DB, accountID, false)
	if errors.Is(err, sql.ErrNoRows) {
		return emptyRecord(accountID), nil
	}
	return r, err
}

func (s *SQLService) RecordResult(ctx context.Context, accountID uint64, role asylum.Role, won bool) (*Record, error) {
	if accountID == 0 {
		return nil, fmt.Errorf("invalid account id")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, store.OpTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO career_records (account_id, updated_at_ms)
VALUES (?, ?)
ON CONFLICT (account_id) DO NOTHING`), accountID, store.NowMs()); err != nil {
		return nil, err
	}
	r, err := s.read(ctx, tx, accountID, true)
	if err != nil {
		return nil, err
	}
	apply(r, role, won)

	titlesRaw, err := json.Marshal(r.Titles)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, s.db.Rebind(`
UPDATE career_records
SET games = ?, doctor_games = ?, doctor_wins = ?, patient_games = ?, patient_wins = ?,
    titles = ?, updated_at_ms = ?
WHERE account_id = ?`),
		r.Games, r.DoctorGames, r.DoctorWins, r.PatientGames, r.PatientWins,
		string(titlesRaw), r.UpdatedAt.UnixMilli(), accountID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLService) read(ctx context.Context, q queryer, accountID uint64, forUpdate bool) (*Record, error) {
	query := `
SELECT games, doctor_games, doctor_wins, patient_games, patient_wins, titles, updated_at_ms
FROM career_records
WHERE account_id = ?`
	if forUpdate && s.db.Dialect == store.Postgres {
		query += "\nFOR UPDATE"
	}

	r := &Record{AccountID: accountID}
	var titlesRaw string
	var updatedAtMs int64
	err := q.QueryRowContext(ctx, s.db.Rebind(query), accountID).Scan(
		&r.Games,
		&r.DoctorGames,
		&r.DoctorWins,
		&r.PatientGames,
		&r.PatientWins,
		&titlesRaw,
		&updatedAtMs,
	)
	if err != nil {
		return nil, err
	}
	if titlesRaw != "" {
		_ = json.Unmarshal([]byte(titlesRaw), &r.Titles)
	}
	r.Titles = mergeUniqueStrings(r.Titles, nil)
	r.UpdatedAt = time.UnixMilli(updatedAtMs).UTC()
	return r, nil
}
