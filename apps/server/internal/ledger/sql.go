package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"asylum-lite/apps/server/internal/store"
)

// SQLService stores the ledger in sqlite or postgres.
type SQLService struct {
	db          *store.DB
	recentLimit int
	savedLimit  int
}

var ledgerSchema = []string{
	`
CREATE TABLE IF NOT EXISTS ledger_event_stream (
    id {{pk}},
    source TEXT NOT NULL,
    session_id TEXT NOT NULL,
    seq {{int}} NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL DEFAULT '',
    server_ts_ms {{int}},
    created_at_ms {{int}} NOT NULL,
    UNIQUE (source, session_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_event_stream_session ON ledger_event_stream(source, session_id, seq)`,
	`
CREATE TABLE IF NOT EXISTS session_history (
    id {{pk}},
    account_id {{int}} NOT NULL,
    source TEXT NOT NULL,
    session_id TEXT NOT NULL,
    played_at_ms {{int}} NOT NULL,
    summary_json TEXT NOT NULL DEFAULT '{}',
    is_saved INTEGER NOT NULL DEFAULT 0,
    saved_at_ms {{int}},
    created_at_ms {{int}} NOT NULL,
    updated_at_ms {{int}} NOT NULL,
    UNIQUE (account_id, source, session_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_session_history_recent ON session_history(account_id, source, played_at_ms)`,
}

func NewSQLService(db *store.DB, recentLimit, savedLimit int) (*SQLService, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database")
	}
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	if savedLimit <= 0 {
		savedLimit = defaultSavedLimit
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()
	if err := db.EnsureSchema(ctx, ledgerSchema...); err != nil {
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return &SQLService{db: db, recentLimit: recentLimit, savedLimit: savedLimit}, nil
}

// Close is a no-op; main owns the shared handle.
func (s *SQLService) Close() error { return nil }

func (s *SQLService) AppendLiveEvent(sessionID string, e EventItem) {
	if strings.TrimSpace(sessionID) == "" || e.EnvelopeB64 == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.insertEvent(ctx, s.db.DB, SourceLive, sessionID, e, false); err != nil {
		log.WithField("session", sessionID).Warnf("[Ledger] append live event failed: seq=%d err=%v", e.Seq, err)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLService) insertEvent(ctx context.Context, ex execer, source Source, sessionID string, e EventItem, overwrite bool) error {
	if e.EventType == "" {
		e.EventType = "unknown"
	}
	conflict := `DO NOTHING`
	if overwrite {
		conflict = `DO UPDATE
SET event_type = excluded.event_type,
    envelope_b64 = excluded.envelope_b64,
    server_ts_ms = excluded.server_ts_ms`
	}
	_, err := ex.ExecContext(ctx, s.db.Rebind(`
INSERT INTO ledger_event_stream (
    source, session_id, seq, event_type, envelope_b64, server_ts_ms, created_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, session_id, seq) `+conflict), string(source), sessionID, int64(e.Seq), e.EventType, e.EnvelopeB64, nullableInt64Ptr(e.ServerTsMs), store.NowMs())
	return err
}

func (s *SQLService) UpsertLiveHistory(accountID uint64, sessionID string, playedAt time.Time, summary map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warnf("[Ledger] begin live history tx failed: account=%d session=%s err=%v", accountID, sessionID, err)
		return
	}
	defer tx.Rollback()
	if err := s.upsertHistoryTx(ctx, tx, accountID, SourceLive, sessionID, playedAt, summary); err != nil {
		log.Warnf("[Ledger] upsert live history failed: account=%d session=%s err=%v", accountID, sessionID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Warnf("[Ledger] commit live history failed: account=%d session=%s err=%v", accountID, sessionID, err)
	}
}

func (s *SQLService) upsertHistoryTx(
	ctx context.Context,
	tx *sql.Tx,
	accountID uint64,
	source Source,
	sessionID string,
	playedAt time.Time,
	summary map[string]any,
) error {
	if accountID == 0 || strings.TrimSpace(sessionID) == "" {
		return ErrNotFound
	}
	if playedAt.IsZero() {
		playedAt = time.Now()
	}
	if summary == nil {
		summary = map[string]any{}
	}
	summaryRaw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	nowMs := store.NowMs()
	_, err = tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO session_history (
    account_id, source, session_id, played_at_ms, summary_json, is_saved, created_at_ms, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT (account_id, source, session_id) DO UPDATE
SET played_at_ms = excluded.played_at_ms,
    summary_json = excluded.summary_json,
    updated_at_ms = excluded.updated_at_ms`),
		accountID, string(source), sessionID, playedAt.UTC().UnixMilli(), string(summaryRaw), nowMs, nowMs)
	if err != nil {
		return err
	}
	return s.trimTx(ctx, tx, accountID, source)
}

// trimTx 只保留最近 recentLimit 条未收藏记录
func (s *SQLService) trimTx(ctx context.Context, tx *sql.Tx, accountID uint64, source Source) error {
	offset := `LIMIT -1 OFFSET ?`
	if s.db.Dialect == store.Postgres {
		offset = `OFFSET ?`
	}
	_, err := tx.ExecContext(ctx, s.db.Rebind(`
DELETE FROM session_history
WHERE id IN (
    SELECT id
    FROM session_history
    WHERE account_id = ?
      AND source = ?
      AND is_saved = 0
    ORDER BY played_at_ms DESC, id DESC
    `+offset+`
)`), accountID, string(source), s.recentLimit)
	return err
}

func (s *SQLService) UpsertReplaySession(
	ctx context.Context,
	accountID uint64,
	sessionID string,
	events []EventItem,
	summary map[string]any,
) error {
	if accountID == 0 || strings.TrimSpace(sessionID) == "" {
		return ErrNotFound
	}
	if len(events) == 0 {
		return fmt.Errorf("events is required")
	}
	if summary == nil {
		summary = map[string]any{}
	}
	if _, ok := summary["event_count"]; !ok {
		summary["event_count"] = len(events)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		if err := s.insertEvent(ctx, tx, SourceReplay, sessionID, e, true); err != nil {
			return err
		}
	}
	if err := s.upsertHistoryTx(ctx, tx, accountID, SourceReplay, sessionID, time.Now(), summary); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLService) ListRecent(ctx context.Context, accountID uint64, source Source, limit int) ([]HistoryItem, error) {
	if accountID == 0 {
		return []HistoryItem{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT session_id, played_at_ms, is_saved, saved_at_ms, summary_json, updated_at_ms
FROM session_history
WHERE account_id = ?
  AND source = ?
ORDER BY played_at_ms DESC, id DESC
LIMIT ?`), accountID, string(source), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, limit)
	for rows.Next() {
		var (
			item                  HistoryItem
			playedAtMs, updatedMs int64
			isSaved               int64
			savedAtMs             sql.NullInt64
			summaryRaw            string
		)
		if err := rows.Scan(&item.SessionID, &playedAtMs, &isSaved, &savedAtMs, &summaryRaw, &updatedMs); err != nil {
			return nil, err
		}
		item.Source = source
		item.PlayedAt = time.UnixMilli(playedAtMs).UTC()
		item.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		item.IsSaved = isSaved == 1
		if savedAtMs.Valid {
			t := time.UnixMilli(savedAtMs.Int64).UTC()
			item.SavedAt = &t
		}
		item.Summary = map[string]any{}
		if summaryRaw != "" {
			_ = json.Unmarshal([]byte(summaryRaw), &item.Summary)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetSessionEvents returns the stream only to accounts that took part in it.
func (s *SQLService) GetSessionEvents(ctx context.Context, accountID uint64, source Source, sessionID string) ([]EventItem, error) {
	if accountID == 0 || strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	var one int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT 1
FROM session_history
WHERE account_id = ?
  AND source = ?
  AND session_id = ?`), accountID, string(source), sessionID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM ledger_event_stream
WHERE source = ?
  AND session_id = ?
ORDER BY seq ASC`), string(source), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]EventItem, 0, 64)
	for rows.Next() {
		var (
			e   EventItem
			seq int64
			ts  sql.NullInt64
		)
		if err := rows.Scan(&seq, &e.EventType, &e.EnvelopeB64, &ts); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		if ts.Valid {
			v := ts.Int64
			e.ServerTsMs = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

func (s *SQLService) SetSaved(ctx context.Context, accountID uint64, source Source, sessionID string, saved bool) error {
	if accountID == 0 || strings.TrimSpace(sessionID) == "" {
		return ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, s.db.Rebind(`
SELECT is_saved
FROM session_history
WHERE account_id = ?
  AND source = ?
  AND session_id = ?`), accountID, string(source), sessionID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if (current == 1) == saved {
		return tx.Commit()
	}

	nowMs := store.NowMs()
	if saved {
		var savedCount int
		if err := tx.QueryRowContext(ctx, s.db.Rebind(`
SELECT COUNT(1)
FROM session_history
WHERE account_id = ?
  AND source = ?
  AND is_saved = 1`), accountID, string(source)).Scan(&savedCount); err != nil {
			return err
		}
		if savedCount >= s.savedLimit {
			return ErrSavedLimitReach
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
UPDATE session_history
SET is_saved = 1, saved_at_ms = ?, updated_at_ms = ?
WHERE account_id = ? AND source = ? AND session_id = ?`), nowMs, nowMs, accountID, string(source), sessionID); err != nil {
			return err
		}
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
UPDATE session_history
SET is_saved = 0, saved_at_ms = NULL, updated_at_ms = ?
WHERE account_id = ? AND source = ? AND session_id = ?`), nowMs, accountID, string(source), sessionID); err != nil {
		return err
	}
	if err := s.trimTx(ctx, tx, accountID, source); err != nil {
		return err
	}
	return tx.Commit()
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
