package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/trilheiros/trilheiros/pkg/models"
)

// DB is the local durable store. All mutations go through a single writer
// lock so concurrent operations on the same item cannot interleave.
type DB struct {
	*sql.DB

	mu sync.Mutex // serializes mutations

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

// New opens (or creates) the local database at the given path.
func New(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db := &DB{DB: sqlDB, watchers: make(map[int]chan struct{})}
	if err := db.initialize(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// initialize creates the necessary tables if they don't exist
func (db *DB) initialize() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			local_id INTEGER PRIMARY KEY AUTOINCREMENT,
			remote_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			sync_state TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);
		CREATE INDEX IF NOT EXISTS idx_items_remote ON items(remote_id);
		CREATE INDEX IF NOT EXISTS idx_items_state ON items(owner_id, sync_state);
		CREATE TABLE IF NOT EXISTS owners (
			owner_id TEXT PRIMARY KEY,
			secret_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			owner_id TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS profiles (
			name TEXT PRIMARY KEY,
			endpoint TEXT,
			bucket TEXT,
			access_key TEXT,
			secret_key TEXT,
			insecure INTEGER NOT NULL DEFAULT 0
		);
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA temp_store=MEMORY;
	`)
	return err
}

const itemColumns = "local_id, remote_id, description, owner_id, updated_at, sync_state"

func scanItem(row interface{ Scan(...any) error }) (models.Item, error) {
	var it models.Item
	err := row.Scan(&it.LocalID, &it.RemoteID, &it.Description, &it.OwnerID, &it.UpdatedAt, &it.SyncState)
	return it, err
}

// ListAll returns every item belonging to the owner.
func (db *DB) ListAll(ownerID string) ([]models.Item, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = ?
		ORDER BY local_id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListUnsynced returns the owner's items still awaiting remote work.
func (db *DB) ListUnsynced(ownerID string) ([]models.Item, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = ? AND sync_state != ?
		ORDER BY updated_at
	`, ownerID, models.StateSynced)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (db *DB) findOne(query string, args ...any) (*models.Item, error) {
	it, err := scanItem(db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// FindByLocalID looks up an item by its local primary key.
func (db *DB) FindByLocalID(localID int64) (*models.Item, error) {
	return db.findOne(`SELECT `+itemColumns+` FROM items WHERE local_id = ?`, localID)
}

// FindByRemoteID looks up the item mapped to a remote document key.
func (db *DB) FindByRemoteID(remoteID string) (*models.Item, error) {
	if remoteID == "" {
		return nil, nil
	}
	return db.findOne(`SELECT `+itemColumns+` FROM items WHERE remote_id = ? LIMIT 1`, remoteID)
}

// FindByDescription looks up an owner's item by its text. Used as the
// duplicate check when the remote identity of an incoming item is unknown.
func (db *DB) FindByDescription(ownerID, description string) (*models.Item, error) {
	return db.findOne(`
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = ? AND description = ?
		LIMIT 1
	`, ownerID, description)
}

// Upsert inserts the item when LocalID is zero, otherwise replaces the row.
// It returns the stored item with its assigned local ID.
func (db *DB) Upsert(item models.Item) (models.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if item.LocalID == 0 {
		res, err := db.Exec(`
			INSERT INTO items (remote_id, description, owner_id, updated_at, sync_state)
			VALUES (?, ?, ?, ?, ?)
		`, item.RemoteID, item.Description, item.OwnerID, item.UpdatedAt, item.SyncState)
		if err != nil {
			return item, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return item, err
		}
		item.LocalID = id
	} else {
		_, err := db.Exec(`
			INSERT OR REPLACE INTO items (local_id, remote_id, description, owner_id, updated_at, sync_state)
			VALUES (?, ?, ?, ?, ?, ?)
		`, item.LocalID, item.RemoteID, item.Description, item.OwnerID, item.UpdatedAt, item.SyncState)
		if err != nil {
			return item, err
		}
	}

	db.notifyWatchers()
	return item, nil
}

// Delete removes the item's row. Deleting a missing row is not an error.
func (db *DB) Delete(item models.Item) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.Exec(`DELETE FROM items WHERE local_id = ?`, item.LocalID)
	if err != nil {
		return err
	}
	db.notifyWatchers()
	return nil
}

// Stats returns per-state counts for the owner's items.
func (db *DB) Stats(ownerID string) (*models.Stats, error) {
	var stats models.Stats
	err := db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN sync_state = ? THEN 1 END),
			COUNT(CASE WHEN sync_state = ? THEN 1 END),
			COUNT(CASE WHEN sync_state = ? THEN 1 END)
		FROM items
		WHERE owner_id = ?
	`, models.StateSynced, models.StatePendingSync, models.StatePendingDeletion, ownerID).Scan(
		&stats.TotalItems,
		&stats.SyncedItems,
		&stats.PendingSync,
		&stats.PendingDelete,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %v", err)
	}
	return &stats, nil
}

// Watch emits the owner's full item set immediately and again after every
// committed mutation, until ctx is cancelled.
func (db *DB) Watch(ctx context.Context, ownerID string) (<-chan []models.Item, error) {
	// Fail fast if the store is unusable before spawning anything.
	if _, err := db.ListAll(ownerID); err != nil {
		return nil, err
	}

	out := make(chan []models.Item, 1)
	notify := make(chan struct{}, 1)
	id := db.addWatcher(notify)

	go func() {
		defer db.removeWatcher(id)
		defer close(out)
		for {
			items, err := db.ListAll(ownerID)
			if err != nil {
				return
			}
			select {
			case out <- items:
			case <-ctx.Done():
				return
			}
			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (db *DB) addWatcher(ch chan struct{}) int {
	db.watchMu.Lock()
	defer db.watchMu.Unlock()
	id := db.nextID
	db.nextID++
	db.watchers[id] = ch
	return id
}

func (db *DB) removeWatcher(id int) {
	db.watchMu.Lock()
	defer db.watchMu.Unlock()
	delete(db.watchers, id)
}

func (db *DB) notifyWatchers() {
	db.watchMu.Lock()
	defer db.watchMu.Unlock()
	for _, ch := range db.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
