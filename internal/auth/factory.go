package auth

import (
	"fmt"
	"os"
	"strings"
)

const (
	AuthModeMemory = "memory"
	AuthModeLocal  = "local"
)

func authModeFromEnv(fallback string) string {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if raw == "" {
		raw = strings.ToLower(strings.TrimSpace(fallback))
	}
	switch raw {
	case "", AuthModeLocal, "sqlite":
		return AuthModeLocal
	case AuthModeMemory, "mem":
		return AuthModeMemory
	default:
		return raw
	}
}

// NewServiceFromEnv builds the session manager for the configured
// storage mode. AUTH_MODE overrides the fallback.
func NewServiceFromEnv(fallback string) (Service, string, error) {
	mode := authModeFromEnv(fallback)

	switch mode {
	case AuthModeLocal:
		manager, err := NewSQLiteManagerFromEnv()
		if err != nil {
			return nil, mode, err
		}
		return manager, mode, nil
	case AuthModeMemory:
		return NewManager(), mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid AUTH_MODE %q (supported: %s, %s)", mode, AuthModeMemory, AuthModeLocal)
	}
}
