// Package auth is the local identity provider. The sync core only ever
// consumes the opaque owner ID of the signed-in session.
package auth

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/trilheiros/trilheiros/internal/db"
	"github.com/trilheiros/trilheiros/pkg/models"
)

// Manager stores owners and the signed-in session in the local database.
// Secrets are kept only as bcrypt hashes.
type Manager struct {
	db *db.DB
}

func New(database *db.DB) *Manager {
	return &Manager{db: database}
}

// SignUp registers a new owner and signs them in.
func (m *Manager) SignUp(ownerID, secret string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := m.db.CreateOwner(ownerID, string(hash), models.NowMillis()); err != nil {
		return fmt.Errorf("failed to create owner: %v", err)
	}
	return m.db.SetSessionOwner(ownerID)
}

// SignIn verifies the secret and opens a session for the owner.
func (m *Manager) SignIn(ownerID, secret string) error {
	hash, err := m.db.OwnerSecretHash(ownerID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("unknown owner %q", ownerID)
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return fmt.Errorf("invalid credentials for %q", ownerID)
	}
	return m.db.SetSessionOwner(ownerID)
}

// SignOut clears the session.
func (m *Manager) SignOut() error {
	return m.db.SetSessionOwner("")
}

// CurrentOwner returns the signed-in owner ID, if any.
func (m *Manager) CurrentOwner() (string, bool) {
	ownerID, err := m.db.SessionOwner()
	if err != nil || ownerID == "" {
		return "", false
	}
	return ownerID, true
}
