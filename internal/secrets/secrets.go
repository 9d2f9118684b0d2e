package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Resolve reads a secret from key, preferring a key_FILE path when set
// (Docker/Kubernetes mounted secrets). Falls back to defaultValue when
// neither is set.
func Resolve(key, defaultValue string) (string, error) {
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret file for %s: %w", key, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return defaultValue, nil
}

// Required resolves a secret that must be non-empty
func Required(key string) (string, error) {
	value, err := Resolve(key, "")
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("secret %s is required but not set", key)
	}
	return value, nil
}

// Optional resolves a secret, returning defaultValue on any error
func Optional(key, defaultValue string) string {
	value, err := Resolve(key, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
