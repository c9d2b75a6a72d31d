package aead

import "errors"

var (
	// ErrEncryptionFailed wraps any internal failure during Encrypt, including
	// send-counter overflow.
	ErrEncryptionFailed = errors.New("aead: encryption failed")
	// ErrDecryptionFailed wraps a too-short record or a MAC mismatch.
	ErrDecryptionFailed = errors.New("aead: decryption failed")
	// ErrReplayDetected is returned by Decrypt when the replay guard rejects
	// the record's counter (too old or a duplicate within the window).
	ErrReplayDetected = errors.New("aead: replay detected")
	// ErrCounterOverflow is returned by Encrypt when the send counter would
	// exceed the 63-bit budget; the session must be terminated.
	ErrCounterOverflow = errors.New("aead: send counter overflow")
)
