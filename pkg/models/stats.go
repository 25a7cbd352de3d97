package models

// Stats summarizes an owner's items by sync state.
type Stats struct {
	TotalItems    int64
	SyncedItems   int64
	PendingSync   int64
	PendingDelete int64
}
