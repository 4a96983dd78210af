// Package security provides secure credential handling for switch-console.
package security

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name used for keyring entries.
	KeyringService = "switch-console"

	keyDeviceFmt = "device:%s:%s"
)

// Credential fields stored per device.
const (
	FieldUsername       = "username"
	FieldPassword       = "password"
	FieldEnablePassword = "enable-password"
)

// KeyringStore provides OS keyring integration for device credential storage.
// It uses the system keyring (macOS Keychain, Linux Secret Service, Windows
// Credential Manager).
type KeyringStore struct {
	enabled bool
	mu      sync.RWMutex
}

// NewKeyringStore creates a new keyring store.
// If the system keyring is not available, the store will be disabled.
func NewKeyringStore() *KeyringStore {
	ks := &KeyringStore{
		enabled: true,
	}

	// Test if keyring is available by trying a dummy operation
	testKey := "__switch_console_test__"
	err := keyring.Set(KeyringService, testKey, "test")
	if err != nil {
		slog.Debug("keyring not available",
			slog.String("error", err.Error()),
		)
		ks.enabled = false
		return ks
	}

	// Clean up test entry
	_ = keyring.Delete(KeyringService, testKey)

	slog.Debug("keyring storage enabled")
	return ks
}

// IsEnabled returns true if the keyring is available and enabled.
func (ks *KeyringStore) IsEnabled() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.enabled
}

// SetEnabled allows enabling/disabling keyring usage.
func (ks *KeyringStore) SetEnabled(enabled bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.enabled = enabled
}

// StoreCredential stores one credential field for a device.
func (ks *KeyringStore) StoreCredential(device, field, value string) error {
	if !ks.IsEnabled() {
		return fmt.Errorf("keyring not available")
	}

	key := fmt.Sprintf(keyDeviceFmt, device, field)
	if err := keyring.Set(KeyringService, key, value); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	slog.Debug("stored credential in keyring",
		slog.String("device", device),
		slog.String("field", field),
	)
	return nil
}

// GetCredential retrieves one credential field for a device. A missing entry
// returns an empty string, not an error.
func (ks *KeyringStore) GetCredential(device, field string) (string, error) {
	if !ks.IsEnabled() {
		return "", fmt.Errorf("keyring not available")
	}

	key := fmt.Sprintf(keyDeviceFmt, device, field)
	value, err := keyring.Get(KeyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("get credential: %w", err)
	}
	return value, nil
}

// DeleteCredential removes one credential field for a device.
func (ks *KeyringStore) DeleteCredential(device, field string) error {
	if !ks.IsEnabled() {
		return fmt.Errorf("keyring not available")
	}

	key := fmt.Sprintf(keyDeviceFmt, device, field)
	if err := keyring.Delete(KeyringService, key); err != nil {
		if err == keyring.ErrNotFound {
			return nil
		}
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
