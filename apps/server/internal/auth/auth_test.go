package auth

import (
	"errors"
	"testing"
	"time"

	"asylum-lite/apps/server/internal/store"
)

// backends runs fn against every Service implementation.
func backends(t *testing.T, fn func(t *testing.T, svc Service)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewManager())
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := store.OpenSQLite(":memory:")
		if err != nil {
			t.Fatalf("OpenSQLite err: %v", err)
		}
		defer db.Close()
		svc, err := NewService(db, time.Hour)
		if err != nil {
			t.Fatalf("NewService err: %v", err)
		}
		fn(t, svc)
	})
}

func TestRegisterAndLogin(t *testing.T) {
	backends(t, func(t *testing.T, m Service) {
		accountID, token, err := m.Register("alice_01", "secret12")
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
		if accountID == 0 || token == "" {
			t.Fatalf("expected account id and token, got %d %q", accountID, token)
		}

		resolvedID, username, ok := m.ResolveSession(token)
		if !ok {
			t.Fatalf("expected valid session")
		}
		if resolvedID != accountID || username != "alice_01" {
			t.Fatalf("unexpected session owner %d %s", resolvedID, username)
		}

		loginID, loginToken, err := m.Login("Alice_01", "secret12")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if loginID != accountID || loginToken == "" || loginToken == token {
			t.Fatalf("expected a fresh session for the same account")
		}
	})
}

func TestRegisterValidation(t *testing.T) {
	backends(t, func(t *testing.T, m Service) {
		if _, _, err := m.Register("a", "secret12"); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("expected ErrInvalidUsername, got %v", err)
		}
		if _, _, err := m.Register("alice_01", "123"); !errors.Is(err, ErrInvalidPassword) {
			t.Fatalf("expected ErrInvalidPassword, got %v", err)
		}
		if _, _, err := m.Register("alice_01", "secret12"); err != nil {
			t.Fatalf("register failed: %v", err)
		}
		if _, _, err := m.Register("ALICE_01", "secret12"); !errors.Is(err, ErrUsernameTaken) {
			t.Fatalf("expected ErrUsernameTaken, got %v", err)
		}
	})
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	backends(t, func(t *testing.T, m Service) {
		if _, _, err := m.Register("alice_01", "secret12"); err != nil {
			t.Fatalf("register failed: %v", err)
		}
		if _, _, err := m.Login("alice_01", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, _, err := m.Login("nobody", "secret12"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
		}
	})
}

func TestLogoutInvalidatesSession(t *testing.T) {
	backends(t, func(t *testing.T, m Service) {
		_, token, err := m.Register("alice_01", "secret12")
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
		m.Logout(token)
		if _, _, ok := m.ResolveSession(token); ok {
			t.Fatalf("expected logged out token to be invalid")
		}
	})
}

func TestGuestAccounts(t *testing.T) {
	backends(t, func(t *testing.T, m Service) {
		id1, token, reused := m.ResolveOrCreateAccount("")
		if id1 == 0 || token == "" || reused {
			t.Fatalf("expected a new guest, got %d %q %v", id1, token, reused)
		}
		id2, token2, reused := m.ResolveOrCreateAccount(token)
		if !reused || id2 != id1 || token2 != token {
			t.Fatalf("expected the guest session to be reused")
		}
		id3, _, reused := m.ResolveOrCreateAccount("invalid-token")
		if reused || id3 == id1 {
			t.Fatalf("unknown token should create a different guest")
		}
		_, username, ok := m.ResolveSession(token)
		if !ok || len(username) < 6 || username[:6] != "guest_" {
			t.Fatalf("unexpected guest username %q", username)
		}
	})
}

func TestMemorySessionExpiry(t *testing.T) {
	m := NewManager(time.Millisecond)
	_, token, err := m.Register("alice_01", "secret12")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, ok := m.ResolveSession(token); ok {
		t.Fatalf("expected expired session")
	}
}
