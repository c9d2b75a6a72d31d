package directory

import (
	"context"
	"testing"
)

func TestDirectory_VerifyCorrectPassword(t *testing.T) {
	t.Parallel()
	d := New()
	if err := d.AddUser("alice", "secret", 3); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	user, ok := d.Verify(context.Background(), "alice", "secret")
	if !ok {
		t.Fatal("expected successful verification")
	}
	if user.ID != "alice" || user.MaxSessions != 3 || !user.Active {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestDirectory_VerifyWrongPasswordFails(t *testing.T) {
	t.Parallel()
	d := New()
	d.AddUser("alice", "secret", 3)
	if _, ok := d.Verify(context.Background(), "alice", "wrong"); ok {
		t.Fatal("expected verification to fail for wrong password")
	}
}

func TestDirectory_VerifyUnknownUserFails(t *testing.T) {
	t.Parallel()
	d := New()
	if _, ok := d.Verify(context.Background(), "ghost", "anything"); ok {
		t.Fatal("expected verification to fail for unknown user")
	}
}

func TestDirectory_DisabledUserFails(t *testing.T) {
	t.Parallel()
	d := New()
	d.AddUser("alice", "secret", 3)
	d.SetActive("alice", false)
	if _, ok := d.Verify(context.Background(), "alice", "secret"); ok {
		t.Fatal("expected verification to fail for disabled user")
	}
}

func TestHashPassword_ProducesDistinctSaltsPerCall(t *testing.T) {
	t.Parallel()
	h1, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct hashes from distinct salts for the same password")
	}
}
