package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Service is the account/session contract consumed by the gateway, lobby and HTTP handlers.
type Service interface {
	Register(username, password string) (accountID uint64, sessionToken string, err error)
	Login(username, password string) (accountID uint64, sessionToken string, err error)
	ResolveSession(token string) (accountID uint64, username string, ok bool)
	Logout(token string)
	Close() error

	// ResolveOrCreateAccount lets players join a room without registering:
	// a valid token is reused, anything else yields a fresh guest account.
	ResolveOrCreateAccount(token string) (accountID uint64, sessionToken string, reused bool)
}

const (
	DefaultSessionTTL = 30 * 24 * time.Hour
	tokenBytes        = 32
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// prepareCredentials validates and hashes a registration request.
func prepareCredentials(username, password string) (normalized string, hash []byte, err error) {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return "", nil, ErrInvalidUsername
	}
	// bcrypt 只看前 72 字节
	if len(password) < 6 || len(password) > 72 {
		return "", nil, ErrInvalidPassword
	}
	hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	return normalizeUsername(username), hash, nil
}

func passwordMatches(hash []byte, password string) bool {
	if len(hash) == 0 || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func guestUsername() string {
	return "guest_" + strings.ToLower(mustToken()[:10])
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
