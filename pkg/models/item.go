package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncState tracks how a local record relates to its remote document.
type SyncState string

const (
	// StateSynced means the record matches the remote document it maps to.
	StateSynced SyncState = "synced"
	// StatePendingSync means the record has local changes not yet written remotely.
	StatePendingSync SyncState = "pending_sync"
	// StatePendingDeletion means the record was deleted locally and the remote
	// document still has to be removed. The row is retained until then.
	StatePendingDeletion SyncState = "pending_deletion"
)

// TempIDPrefix marks locally generated placeholder remote IDs. Real document
// keys are derived as "<owner>_<hash>_<timestamp>" and never carry it.
const TempIDPrefix = "local-"

// Item is a single checklist entry owned by one user.
type Item struct {
	LocalID     int64
	RemoteID    string
	Description string
	OwnerID     string
	UpdatedAt   int64 // milliseconds since epoch
	SyncState   SyncState
}

// HasRealRemoteID reports whether the item maps to an actual remote document.
func (it Item) HasRealRemoteID() bool {
	return it.RemoteID != "" && !IsTempRemoteID(it.RemoteID)
}

// NewTempRemoteID returns a placeholder remote ID for an item created offline.
func NewTempRemoteID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempRemoteID reports whether id is a locally generated placeholder.
func IsTempRemoteID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NowMillis returns the current time in the resolution updated_at uses.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
