package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"asylum-lite/apps/server/internal/store"
)

// SQLManager persists accounts and sessions in sqlite or postgres.
type SQLManager struct {
	db         *store.DB
	sessionTTL time.Duration
}

var authSchema = []string{
	`
CREATE TABLE IF NOT EXISTS accounts (
    id {{pk}},
    username TEXT NOT NULL,
    password_hash TEXT,
    guest INTEGER NOT NULL DEFAULT 0,
    created_at_ms {{int}} NOT NULL,
    last_login_at_ms {{int}}
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_username_ci ON accounts(lower(username))`,
	`
CREATE TABLE IF NOT EXISTS auth_sessions (
    token TEXT PRIMARY KEY,
    account_id {{int}} NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    issued_at_ms {{int}} NOT NULL,
    expires_at_ms {{int}} NOT NULL,
    revoked_at_ms {{int}},
    last_seen_at_ms {{int}} NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_sessions_account ON auth_sessions(account_id, expires_at_ms)`,
}

func NewSQLManager(db *store.DB, sessionTTL time.Duration) (*SQLManager, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()
	if err := db.EnsureSchema(ctx, authSchema...); err != nil {
		return nil, fmt.Errorf("ensure auth schema: %w", err)
	}
	return &SQLManager{db: db, sessionTTL: sessionTTL}, nil
}

// Close is a no-op; the handle is shared with the ledger and closed by main.
func (m *SQLManager) Close() error { return nil }

func (m *SQLManager) Register(username, password string) (accountID uint64, sessionToken string, err error) {
	normalized, hash, err := prepareCredentials(username, password)
	if err != nil {
		return 0, "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()
	accountID, sessionToken, err = m.createAccount(ctx, normalized, string(hash), false)
	if store.IsUniqueViolation(err) {
		return 0, "", ErrUsernameTaken
	}
	return accountID, sessionToken, err
}

func (m *SQLManager) createAccount(ctx context.Context, username, hash string, guest bool) (uint64, string, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	nowMs := store.NowMs()
	var hashArg any
	if hash != "" {
		hashArg = hash
	}
	guestFlag := 0
	if guest {
		guestFlag = 1
	}
	id, err := m.db.InsertID(ctx, tx, `
INSERT INTO accounts (username, password_hash, guest, created_at_ms, last_login_at_ms)
VALUES (?, ?, ?, ?, ?)`, username, hashArg, guestFlag, nowMs, nowMs)
	if err != nil {
		return 0, "", err
	}
	token, err := m.issueSessionTx(ctx, tx, uint64(id), nowMs)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return uint64(id), token, nil
}

func (m *SQLManager) Login(username, password string) (accountID uint64, sessionToken string, err error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()

	var hash sql.NullString
	err = m.db.QueryRowContext(ctx, m.db.Rebind(`
SELECT id, password_hash
FROM accounts
WHERE lower(username) = ? AND guest = 0`), normalized).Scan(&accountID, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrInvalidCredentials
		}
		return 0, "", err
	}
	if !hash.Valid || !passwordMatches([]byte(hash.String), password) {
		return 0, "", ErrInvalidCredentials
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()
	nowMs := store.NowMs()
	if _, err := tx.ExecContext(ctx, m.db.Rebind(`UPDATE accounts SET last_login_at_ms = ? WHERE id = ?`), nowMs, accountID); err != nil {
		return 0, "", err
	}
	sessionToken, err = m.issueSessionTx(ctx, tx, accountID, nowMs)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return accountID, sessionToken, nil
}

func (m *SQLManager) ResolveSession(token string) (accountID uint64, username string, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", false
	}
	defer tx.Rollback()

	nowMs := store.NowMs()
	res, err := tx.ExecContext(ctx, m.db.Rebind(`
UPDATE auth_sessions
SET last_seen_at_ms = ?,
    expires_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
  AND expires_at_ms > ?`), nowMs, nowMs+m.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return 0, "", false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, "", false
	}
	err = tx.QueryRowContext(ctx, m.db.Rebind(`
SELECT s.account_id, a.username
FROM auth_sessions AS s
JOIN accounts AS a ON a.id = s.account_id
WHERE s.token = ?`), token).Scan(&accountID, &username)
	if err != nil {
		return 0, "", false
	}
	if err := tx.Commit(); err != nil {
		return 0, "", false
	}
	return accountID, username, true
}

func (m *SQLManager) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()
	_, _ = m.db.ExecContext(ctx, m.db.Rebind(`
UPDATE auth_sessions
SET revoked_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL`), store.NowMs(), token)
}

func (m *SQLManager) ResolveOrCreateAccount(token string) (uint64, string, bool) {
	if accountID, _, ok := m.ResolveSession(token); ok {
		return accountID, strings.TrimSpace(token), true
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.OpTimeout)
	defer cancel()
	for i := 0; i < 5; i++ {
		accountID, sessionToken, err := m.createAccount(ctx, guestUsername(), "", true)
		if store.IsUniqueViolation(err) {
			continue
		}
		if err != nil {
			return 0, "", false
		}
		return accountID, sessionToken, false
	}
	return 0, "", false
}

func (m *SQLManager) issueSessionTx(ctx context.Context, tx *sql.Tx, accountID uint64, nowMs int64) (string, error) {
	expiresAtMs := nowMs + m.sessionTTL.Milliseconds()
	for i := 0; i < 5; i++ {
		token := mustToken()
		_, err := tx.ExecContext(ctx, m.db.Rebind(`
INSERT INTO auth_sessions (token, account_id, issued_at_ms, expires_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)`), token, accountID, nowMs, expiresAtMs, nowMs)
		if store.IsUniqueViolation(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}
	return "", fmt.Errorf("failed to generate unique session token")
}
