// Package directory provides a reference application.UserDirectory backed by
// an in-memory user table with Argon2id-hashed passwords. It exists to give
// the handshake something concrete to authenticate against in tests and
// small deployments; production deployments are expected to supply their own
// UserDirectory backed by a real identity store.
package directory

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"tunnelcore/application"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// HashPassword returns an Argon2id hash of password encoded as
// "salt_b64$hash_b64", suitable for storing alongside a user record.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("directory: generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(hash), nil
}

func verifyPassword(password, encoded string) bool {
	parts := strings.SplitN(encoded, "$", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

type record struct {
	user         application.User
	passwordHash string
}

// Directory is an in-memory application.UserDirectory keyed by username.
type Directory struct {
	mu    sync.RWMutex
	users map[string]record
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{users: make(map[string]record)}
}

// AddUser registers a user with an Argon2id-hashed password.
func (d *Directory) AddUser(username, password string, maxSessions int) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[username] = record{
		user: application.User{
			ID:          username,
			Active:      true,
			MaxSessions: maxSessions,
		},
		passwordHash: hash,
	}
	return nil
}

// SetActive enables or disables a registered user.
func (d *Directory) SetActive(username string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.users[username]
	if !ok {
		return
	}
	r.user.Active = active
	d.users[username] = r
}

// Verify implements application.UserDirectory.
func (d *Directory) Verify(_ context.Context, username, password string) (application.User, bool) {
	d.mu.RLock()
	r, ok := d.users[username]
	d.mu.RUnlock()
	if !ok || !r.user.Active {
		return application.User{}, false
	}
	if !verifyPassword(password, r.passwordHash) {
		return application.User{}, false
	}
	return r.user, true
}
