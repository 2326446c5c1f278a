package auth

import (
	"sync"
	"time"
)

// Manager keeps accounts and sessions in memory for single-binary runs.
type Manager struct {
	mu sync.Mutex

	nextAccountID uint64
	sessionTTL    time.Duration
	sessions      map[string]sessionRecord // token -> account
	accounts      map[uint64]*account
	byUsername    map[string]uint64
}

type sessionRecord struct {
	AccountID uint64
	ExpiresAt time.Time
}

type account struct {
	ID           uint64
	Username     string
	PasswordHash []byte
	Guest        bool
	LastLogin    time.Time
}

func NewManager(sessionTTL ...time.Duration) *Manager {
	ttl := DefaultSessionTTL
	if len(sessionTTL) > 0 && sessionTTL[0] > 0 {
		ttl = sessionTTL[0]
	}
	return &Manager{
		nextAccountID: 100000,
		sessionTTL:    ttl,
		sessions:      make(map[string]sessionRecord),
		accounts:      make(map[uint64]*account),
		byUsername:    make(map[string]uint64),
	}
}

func (m *Manager) Close() error { return nil }

func (m *Manager) addAccountLocked(username string, hash []byte, guest bool, now time.Time) *account {
	m.nextAccountID++
	acc := &account{
		ID:           m.nextAccountID,
		Username:     username,
		PasswordHash: hash,
		Guest:        guest,
		LastLogin:    now,
	}
	m.accounts[acc.ID] = acc
	m.byUsername[username] = acc.ID
	return acc
}

func (m *Manager) issueSessionLocked(accountID uint64, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{AccountID: accountID, ExpiresAt: now.Add(m.sessionTTL)}
	return token
}

// resolveSessionLocked 校验并续期 token
func (m *Manager) resolveSessionLocked(token string, now time.Time) (*account, bool) {
	if token == "" {
		return nil, false
	}
	rec, exists := m.sessions[token]
	if !exists {
		return nil, false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return nil, false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec
	acc, ok := m.accounts[rec.AccountID]
	return acc, ok
}

func (m *Manager) Register(username, password string) (uint64, string, error) {
	normalized, hash, err := prepareCredentials(username, password)
	if err != nil {
		return 0, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byUsername[normalized]; exists {
		return 0, "", ErrUsernameTaken
	}
	now := time.Now()
	acc := m.addAccountLocked(normalized, hash, false, now)
	return acc.ID, m.issueSessionLocked(acc.ID, now), nil
}

func (m *Manager) Login(username, password string) (uint64, string, error) {
	normalized := normalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()
	id, exists := m.byUsername[normalized]
	if !exists {
		return 0, "", ErrInvalidCredentials
	}
	acc := m.accounts[id]
	if acc.Guest || !passwordMatches(acc.PasswordHash, password) {
		return 0, "", ErrInvalidCredentials
	}
	now := time.Now()
	acc.LastLogin = now
	return acc.ID, m.issueSessionLocked(acc.ID, now), nil
}

func (m *Manager) ResolveSession(token string) (uint64, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.resolveSessionLocked(token, time.Now())
	if !ok {
		return 0, "", false
	}
	return acc.ID, acc.Username, true
}

func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) ResolveOrCreateAccount(token string) (uint64, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if acc, ok := m.resolveSessionLocked(token, now); ok {
		return acc.ID, token, true
	}
	name := guestUsername()
	for m.byUsername[name] != 0 {
		name = guestUsername()
	}
	acc := m.addAccountLocked(name, nil, true, now)
	return acc.ID, m.issueSessionLocked(acc.ID, now), false
}
