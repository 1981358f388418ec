package auth

import (
	"errors"
	"testing"
	"time"
)

func testManagers(t *testing.T) map[string]Service {
	t.Helper()
	sqliteManager, err := NewSQLiteManager(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open sqlite manager: %v", err)
	}
	t.Cleanup(func() { _ = sqliteManager.Close() })
	return map[string]Service{
		"memory": NewManager(),
		"sqlite": sqliteManager,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	for name, m := range testManagers(t) {
		t.Run(name, func(t *testing.T) {
			accountID, token, err := m.Register("gandalf", "mellon1")
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			if accountID == 0 || token == "" {
				t.Fatalf("expected non-zero account and token, got %d %q", accountID, token)
			}

			resolvedID, username, ok := m.ResolveSession(token)
			if !ok {
				t.Fatalf("expected fresh session to resolve")
			}
			if resolvedID != accountID || username != "gandalf" {
				t.Fatalf("resolved %d %q, want %d gandalf", resolvedID, username, accountID)
			}

			loginID, loginToken, err := m.Login("Gandalf", "mellon1")
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if loginID != accountID {
				t.Fatalf("login resolved account %d, want %d", loginID, accountID)
			}
			if loginToken == token {
				t.Fatalf("login should issue a fresh token")
			}
		})
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	for name, m := range testManagers(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := m.Register("x", "longenough"); !errors.Is(err, ErrInvalidUsername) {
				t.Fatalf("short username: got %v, want ErrInvalidUsername", err)
			}
			if _, _, err := m.Register("frodo", "short"); !errors.Is(err, ErrInvalidPassword) {
				t.Fatalf("short password: got %v, want ErrInvalidPassword", err)
			}
			if _, _, err := m.Register("frodo", "longenough"); err != nil {
				t.Fatalf("first register: %v", err)
			}
			if _, _, err := m.Register("FRODO", "longenough"); !errors.Is(err, ErrUsernameTaken) {
				t.Fatalf("duplicate username: got %v, want ErrUsernameTaken", err)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	for name, m := range testManagers(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := m.Register("samwise", "potatoes"); err != nil {
				t.Fatalf("register: %v", err)
			}
			if _, _, err := m.Login("samwise", "tomatoes"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
			}
			if _, _, err := m.Login("nobody", "potatoes"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("unknown user: got %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	for name, m := range testManagers(t) {
		t.Run(name, func(t *testing.T) {
			_, token, err := m.Register("meriadoc", "secondbreakfast")
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			m.Logout(token)
			if _, _, ok := m.ResolveSession(token); ok {
				t.Fatalf("expected logged-out token to be rejected")
			}
		})
	}
}

func TestResolveSessionRejectsGarbage(t *testing.T) {
	for name, m := range testManagers(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, ok := m.ResolveSession(""); ok {
				t.Fatalf("empty token should not resolve")
			}
			if _, _, ok := m.ResolveSession("not-a-token"); ok {
				t.Fatalf("unknown token should not resolve")
			}
		})
	}
}
