package aead

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sessionKeySalt is the fixed protocol salt used to derive the per-session
// AEAD key from the master key. Wire-format constant: both peers must agree
// on this exact string.
const sessionKeySalt = "IranVPN-v1.0"

// sessionKeyInfo is the literal HKDF info string for session-key derivation.
const sessionKeyInfo = "session_key"

// DeriveSessionKey derives the 32-byte session key from a 32-byte master key
// using HKDF-SHA256, salt=sessionKeySalt, info="session_key".
func DeriveSessionKey(masterKey []byte) ([]byte, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("aead: derive session key: empty master key")
	}
	r := hkdf.New(sha256.New, masterKey, []byte(sessionKeySalt), []byte(sessionKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("aead: derive session key: %w", err)
	}
	return key, nil
}
