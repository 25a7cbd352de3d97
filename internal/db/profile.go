package db

import (
	"database/sql"
	"fmt"
)

// Profile holds the remote store connection settings, persisted once at
// setup time and reused by every command.
type Profile struct {
	Name      string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Insecure  bool
}

// SaveProfile creates or replaces a named connection profile.
func (db *DB) SaveProfile(p *Profile) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.Exec(`
		INSERT OR REPLACE INTO profiles (name, endpoint, bucket, access_key, secret_key, insecure)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Endpoint, p.Bucket, p.AccessKey, p.SecretKey, p.Insecure)
	return err
}

// GetProfile retrieves a connection profile by name.
func (db *DB) GetProfile(name string) (*Profile, error) {
	var p Profile
	err := db.QueryRow(`
		SELECT name, endpoint, bucket, access_key, secret_key, insecure
		FROM profiles WHERE name = ?
	`, name).Scan(&p.Name, &p.Endpoint, &p.Bucket, &p.AccessKey, &p.SecretKey, &p.Insecure)
	if err != nil {
		return nil, fmt.Errorf("profile not found: %v", err)
	}
	return &p, nil
}

// CreateOwner stores a new owner with a hashed secret.
func (db *DB) CreateOwner(ownerID, secretHash string, createdAt int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.Exec(`
		INSERT INTO owners (owner_id, secret_hash, created_at)
		VALUES (?, ?, ?)
	`, ownerID, secretHash, createdAt)
	return err
}

// OwnerSecretHash returns the stored secret hash for the owner, or
// sql.ErrNoRows if the owner does not exist.
func (db *DB) OwnerSecretHash(ownerID string) (string, error) {
	var hash string
	err := db.QueryRow(`SELECT secret_hash FROM owners WHERE owner_id = ?`, ownerID).Scan(&hash)
	return hash, err
}

// SetSessionOwner records which owner is signed in. An empty owner clears
// the session.
func (db *DB) SetSessionOwner(ownerID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if ownerID == "" {
		_, err := db.Exec(`DELETE FROM session WHERE id = 1`)
		return err
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO session (id, owner_id) VALUES (1, ?)`, ownerID)
	return err
}

// SessionOwner returns the signed-in owner ID, or "" when nobody is.
func (db *DB) SessionOwner() (string, error) {
	var ownerID string
	err := db.QueryRow(`SELECT owner_id FROM session WHERE id = 1`).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}
