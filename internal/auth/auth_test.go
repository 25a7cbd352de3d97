package auth

import (
	"path/filepath"
	"testing"

	"github.com/trilheiros/trilheiros/internal/db"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database)
}

func TestSignUpSignsIn(t *testing.T) {
	m := testManager(t)

	if err := m.SignUp("u1", "hunter2"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	owner, ok := m.CurrentOwner()
	if !ok || owner != "u1" {
		t.Errorf("current owner = %q, %v; want u1 signed in", owner, ok)
	}

	if err := m.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, ok := m.CurrentOwner(); ok {
		t.Error("owner still signed in after sign-out")
	}
}

func TestSignInVerifiesSecret(t *testing.T) {
	m := testManager(t)
	if err := m.SignUp("u1", "hunter2"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := m.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	if err := m.SignIn("u1", "wrong"); err == nil {
		t.Error("wrong secret should be rejected")
	}
	if _, ok := m.CurrentOwner(); ok {
		t.Error("failed sign-in must not open a session")
	}

	if err := m.SignIn("u1", "hunter2"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if owner, ok := m.CurrentOwner(); !ok || owner != "u1" {
		t.Errorf("current owner = %q, %v", owner, ok)
	}
}

func TestSignInUnknownOwner(t *testing.T) {
	m := testManager(t)
	if err := m.SignIn("ghost", "secret"); err == nil {
		t.Error("unknown owner should be rejected")
	}
}

func TestDuplicateSignUp(t *testing.T) {
	m := testManager(t)
	if err := m.SignUp("u1", "one"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := m.SignUp("u1", "two"); err == nil {
		t.Error("duplicate owner should be rejected")
	}
}
