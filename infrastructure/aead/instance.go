// Package aead implements the tunnel's AEAD record layer: key derivation,
// per-record nonce construction, encryption/decryption, replay-window
// enforcement and counter bookkeeping. One Instance exists per direction per
// session — a session holds a send Instance and a recv Instance, each keyed
// from the same master key but used independently.
package aead

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"tunnelcore/domain/protocol"
)

// maxCounter bounds the send counter at 2^63, per the spec invariant that it
// never exceeds that value; reaching it terminates the session.
const maxCounter = uint64(1) << 63

// Instance is one direction's AEAD state: a derived session key, a
// ChaCha20-Poly1305 cipher built from it, a monotonic send counter, and a
// receive-side replay window. All fields are mutated from a single task, so
// the mutex here only guards Rekey racing with concurrent Encrypt/Decrypt
// calls from a background control-plane handler.
type Instance struct {
	mu sync.Mutex

	masterKey  []byte
	sessionKey []byte
	cipher     cipher.AEAD

	sendCounter uint64
	recvWindow  ReplayWindow

	packetsEncrypted uint64
	packetsDecrypted uint64
	replayBlocked    uint64
}

// NewInstance derives the session key from masterKey and builds the AEAD
// cipher. masterKey must be protocol.KeySize bytes.
func NewInstance(masterKey []byte) (*Instance, error) {
	if len(masterKey) != protocol.KeySize {
		return nil, fmt.Errorf("aead: master key must be %d bytes, got %d", protocol.KeySize, len(masterKey))
	}
	inst := &Instance{}
	if err := inst.installKey(masterKey); err != nil {
		return nil, err
	}
	return inst, nil
}

func (a *Instance) installKey(masterKey []byte) error {
	sessionKey, err := DeriveSessionKey(masterKey)
	if err != nil {
		return err
	}
	aeadCipher, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return fmt.Errorf("aead: build cipher: %w", err)
	}
	a.masterKey = append([]byte(nil), masterKey...)
	a.sessionKey = sessionKey
	a.cipher = aeadCipher
	return nil
}

// Encrypt seals plaintext under the current send counter and returns
// counter(8B) || ciphertext || tag(16B). The send counter is incremented on
// success. Returns ErrCounterOverflow (which must be treated as session
// termination) once the budget is exhausted.
func (a *Instance) Encrypt(plaintext []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sendCounter >= maxCounter {
		return nil, ErrCounterOverflow
	}
	counter := a.sendCounter

	var nonce [protocol.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[0:8], counter)
	// the last 4 nonce bytes stay zero; the record carries only the counter

	sealed := a.cipher.Seal(nil, nonce[:], plaintext, nil)

	record := make([]byte, 8+len(sealed))
	binary.BigEndian.PutUint64(record[0:8], counter)
	copy(record[8:], sealed)

	a.sendCounter++
	a.packetsEncrypted++
	return record, nil
}

// Decrypt parses a record, enforces the replay window, verifies the AEAD
// tag, and returns the plaintext. The window is checked before MAC
// verification (so forged records cannot probe it) and updated only after
// the MAC succeeds.
func (a *Instance) Decrypt(record []byte) ([]byte, error) {
	if len(record) < 8+protocol.TagSize {
		return nil, fmt.Errorf("%w: record too short (%d bytes)", ErrDecryptionFailed, len(record))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	counter := binary.BigEndian.Uint64(record[0:8])
	sealed := record[8:]

	if err := a.recvWindow.Check(counter); err != nil {
		a.replayBlocked++
		return nil, err
	}

	var nonce [protocol.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[0:8], counter)
	// the last 4 nonce bytes stay zero, exactly as Encrypt builds them

	plaintext, err := a.cipher.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	a.recvWindow.Accept(counter)
	a.packetsDecrypted++
	return plaintext, nil
}

// Rekey replaces the master key, re-derives the session key, and resets the
// send counter to 0. The receive window is preserved, so records accepted
// before the rekey are still rejected as replays afterwards, and so are
// post-rekey counters that fall on a slot the window already marked.
func (a *Instance) Rekey(masterKey []byte) error {
	if len(masterKey) != protocol.KeySize {
		return fmt.Errorf("aead: master key must be %d bytes, got %d", protocol.KeySize, len(masterKey))
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.installKey(masterKey); err != nil {
		return err
	}
	a.sendCounter = 0
	return nil
}

// Stats is a snapshot of this instance's packet counters.
type Stats struct {
	PacketsEncrypted uint64
	PacketsDecrypted uint64
	ReplayBlocked    uint64
	SendCounter      uint64
}

func (a *Instance) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		PacketsEncrypted: a.packetsEncrypted,
		PacketsDecrypted: a.packetsDecrypted,
		ReplayBlocked:    a.replayBlocked,
		SendCounter:      a.sendCounter,
	}
}

// Zeroize overwrites the key material held by this instance. Best-effort:
// the Go runtime may have copied the slices before this call.
func (a *Instance) Zeroize() {
	a.mu.Lock()
	defer a.mu.Unlock()
	zeroBytes(a.masterKey)
	zeroBytes(a.sessionKey)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
