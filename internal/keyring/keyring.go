package keyring

import (
	"errors"
	"fmt"
	"sync"

	"kairo-keeper/internal/config"

	"github.com/99designs/keyring"
)

const (
	serviceName = "kairo"
	tokenKey    = "token"
)

// ErrNoToken is returned by GetToken/DeleteToken when nothing is stored.
var ErrNoToken = errors.New("no token stored")

var (
	ring     keyring.Keyring
	ringOnce sync.Once
	ringErr  error
)

// initKeyring opens the OS keyring once
func initKeyring() (keyring.Keyring, error) {
	ringOnce.Do(func() {
		ring, ringErr = keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,      // macOS Keychain
				keyring.SecretServiceBackend, // Linux Secret Service (GNOME Keyring, KWallet)
				keyring.WinCredBackend,       // Windows Credential Manager
				keyring.PassBackend,          // Pass (password-store.org)
			},
		})
	})
	return ring, ringErr
}

// UseKeyring replaces the OS keyring, e.g. with keyring.NewArrayKeyring in tests.
func UseKeyring(kr keyring.Keyring) {
	ringOnce.Do(func() {})
	ring, ringErr = kr, nil
}

// SetToken stores the tunnel authentication token
func SetToken(token string) error {
	kr, err := initKeyring()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	return kr.Set(keyring.Item{
		Key:         tokenKey,
		Data:        []byte(token),
		Label:       "kairo tunnel token",
		Description: "Authentication token passed to the tunnel client",
	})
}

// GetToken retrieves the stored token, ErrNoToken when there is none
func GetToken() (string, error) {
	kr, err := initKeyring()
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}

	item, err := kr.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve token: %w", err)
	}
	return string(item.Data), nil
}

// DeleteToken removes the stored token
func DeleteToken() error {
	kr, err := initKeyring()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	// not every backend reports a missing key on Remove
	if _, err := kr.Get(tokenKey); errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNoToken
	}
	err = kr.Remove(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNoToken
	}
	return err
}

// HasToken checks if a token is stored
func HasToken() bool {
	_, err := GetToken()
	return err == nil
}

/**
 * Resolve the tunnel token
 * @param {string} explicit - Value of a --token flag, may be empty
 * @returns {string} Token
 * @returns {error} ErrNoToken when no source provides one
 * @description
 * - Order: explicit value, token from config/KAIRO_TOKEN, keyring entry
 */
func ResolveToken(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if token := config.App().Token; token != "" {
		return token, nil
	}
	token, err := GetToken()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return "", fmt.Errorf("%w: use --token, KAIRO_TOKEN or `kairo auth login`", ErrNoToken)
		}
		return "", err
	}
	return token, nil
}
