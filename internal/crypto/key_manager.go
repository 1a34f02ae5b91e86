package crypto

import (
	"encoding/base64"
	"errors"
	"sync"
)

var (
	ErrInvalidMasterKey     = errors.New("invalid master key: must be base64 of 32 bytes")
	ErrDataKeyMissing       = errors.New("user has no data key")
	ErrDataKeyDecryptFailed = errors.New("failed to decrypt data key")
)

// KeyManager wraps per-user data keys under a process-wide master key.
// Unwrapped data keys are cached for the life of the process.
type KeyManager struct {
	masterKey []byte

	mu       sync.RWMutex
	dataKeys map[string][]byte
}

// NewKeyManager parses a base64 master key. An empty key returns (nil, nil):
// callers treat a nil *KeyManager as "encryption disabled".
func NewKeyManager(masterKeyB64 string) (*KeyManager, error) {
	if masterKeyB64 == "" {
		return nil, nil
	}
	masterKey, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil || len(masterKey) != keySize {
		return nil, ErrInvalidMasterKey
	}
	return &KeyManager{masterKey: masterKey, dataKeys: make(map[string][]byte)}, nil
}

// Enabled reports whether km can seal data. It is safe on a nil receiver.
func (km *KeyManager) Enabled() bool {
	return km != nil
}

// NewWrappedDataKey generates a data key for userID and returns it sealed by the master key.
func (km *KeyManager) NewWrappedDataKey(userID string) (string, error) {
	dataKey, err := GenerateKey()
	if err != nil {
		return "", err
	}
	wrapped, err := Seal(dataKey, km.masterKey, []byte(userID))
	if err != nil {
		return "", err
	}
	km.cache(userID, dataKey)
	return wrapped, nil
}

func (km *KeyManager) cache(userID string, dataKey []byte) {
	km.mu.Lock()
	km.dataKeys[userID] = dataKey
	km.mu.Unlock()
}

func (km *KeyManager) dataKey(userID, wrapped string) ([]byte, error) {
	km.mu.RLock()
	dk, ok := km.dataKeys[userID]
	km.mu.RUnlock()
	if ok {
		return dk, nil
	}
	if wrapped == "" {
		return nil, ErrDataKeyMissing
	}

	dk, err := Open(wrapped, km.masterKey, []byte(userID))
	if err != nil {
		return nil, ErrDataKeyDecryptFailed
	}
	km.cache(userID, dk)
	return dk, nil
}

// EncryptFor seals plaintext under the user's data key.
func (km *KeyManager) EncryptFor(userID, wrappedDK, plaintext string) (string, error) {
	dk, err := km.dataKey(userID, wrappedDK)
	if err != nil {
		return "", err
	}
	return Seal([]byte(plaintext), dk, []byte(userID))
}

// DecryptFor opens a value sealed by EncryptFor.
func (km *KeyManager) DecryptFor(userID, wrappedDK, sealed string) (string, error) {
	dk, err := km.dataKey(userID, wrappedDK)
	if err != nil {
		return "", err
	}
	plaintext, err := Open(sealed, dk, []byte(userID))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
