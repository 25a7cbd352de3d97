// Package reconciler converges the local store and the remote collection.
// It owns identity mapping, conflict resolution by recency, and propagation
// of edits and deletes made while offline.
package reconciler

import (
	"context"
	"errors"
	"log"

	"github.com/trilheiros/trilheiros/internal/db"
	"github.com/trilheiros/trilheiros/internal/remote"
	"github.com/trilheiros/trilheiros/pkg/models"
)

// Engine is the write path for every item mutation. Remote failures never
// escape it: they degrade the item to a pending state instead. Local store
// failures propagate to the caller.
type Engine struct {
	local  *db.DB
	remote remote.Store
	online func() bool
	retry  RetryPolicy

	// OnItem, when set, is called after each item of a batch pass. The CLI
	// uses it to advance its progress bar.
	OnItem func(item models.Item, err error)
}

// New creates an engine. online may be nil, in which case the engine always
// attempts remote operations and lets Unreachable fall out of the transport.
// policy may be nil for single-attempt behavior.
func New(local *db.DB, store remote.Store, online func() bool, policy RetryPolicy) *Engine {
	if policy == nil {
		policy = NoRetry{}
	}
	return &Engine{local: local, remote: store, online: online, retry: policy}
}

func (e *Engine) reachable() bool {
	return e.online == nil || e.online()
}

// Save stores a new item, writing through to the remote store when reachable.
// If an item with the same remote ID, or the same owner and description,
// already exists locally this is a no-op: duplicate snapshot emissions and
// double-submits must not insert twice.
func (e *Engine) Save(ctx context.Context, item models.Item) error {
	if item.HasRealRemoteID() {
		existing, err := e.local.FindByRemoteID(item.RemoteID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	} else {
		existing, err := e.local.FindByDescription(item.OwnerID, item.Description)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}

	if item.UpdatedAt == 0 {
		item.UpdatedAt = models.NowMillis()
	}
	return e.writeThrough(ctx, item)
}

// Update bumps the item's timestamp and writes it through.
func (e *Engine) Update(ctx context.Context, item models.Item) error {
	item.UpdatedAt = models.NowMillis()
	return e.writeThrough(ctx, item)
}

// writeThrough pushes the item remotely when possible and records the
// resulting state locally. A failed remote write keeps the item as
// pending_sync with a placeholder remote ID; the record is never dropped.
func (e *Engine) writeThrough(ctx context.Context, item models.Item) error {
	if e.reachable() {
		remoteID, err := e.putRemote(ctx, item)
		if err == nil {
			item.RemoteID = remoteID
			item.SyncState = models.StateSynced
			_, err = e.local.Upsert(item)
			return err
		}
		if errors.Is(err, remote.ErrRemoteRejected) {
			log.Printf("remote rejected %q, keeping as pending: %v", item.Description, err)
		} else {
			log.Printf("remote write for %q failed, keeping as pending: %v", item.Description, err)
		}
	}

	if item.RemoteID == "" {
		item.RemoteID = models.NewTempRemoteID()
	}
	item.SyncState = models.StatePendingSync
	_, err := e.local.Upsert(item)
	return err
}

// Delete removes the item. Items that never reached the remote store are
// purged locally right away. A failed or unreachable remote delete retains
// the row as pending_deletion so the intent survives until a later pass.
func (e *Engine) Delete(ctx context.Context, item models.Item) error {
	if !item.HasRealRemoteID() {
		return e.local.Delete(item)
	}

	if e.reachable() {
		err := e.deleteRemote(ctx, item.OwnerID, item.RemoteID)
		if err == nil || remote.IsNotFound(err) {
			return e.local.Delete(item)
		}
		log.Printf("remote delete for %q failed, keeping as pending deletion: %v", item.Description, err)
	}

	item.SyncState = models.StatePendingDeletion
	item.UpdatedAt = models.NowMillis()
	_, err := e.local.Upsert(item)
	return err
}

// ReconcileUnsynced pushes every pending item, sequentially and best-effort:
// a failure is logged and the pass moves on to the next item.
func (e *Engine) ReconcileUnsynced(ctx context.Context, ownerID string) error {
	items, err := e.local.ListUnsynced(ownerID)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := e.reconcileItem(ctx, item)
		if err != nil {
			log.Printf("reconcile of %q failed: %v", item.Description, err)
		}
		if e.OnItem != nil {
			e.OnItem(item, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) reconcileItem(ctx context.Context, item models.Item) error {
	if item.SyncState == models.StatePendingDeletion {
		// Placeholder IDs were never created remotely; nothing to delete there.
		if item.HasRealRemoteID() {
			err := e.deleteRemote(ctx, item.OwnerID, item.RemoteID)
			if err != nil && !remote.IsNotFound(err) {
				return err
			}
		}
		return e.local.Delete(item)
	}

	remoteID, err := e.putRemote(ctx, item)
	if err != nil {
		return err
	}
	item.RemoteID = remoteID
	item.SyncState = models.StateSynced
	_, err = e.local.Upsert(item)
	return err
}

// ReconcileFromRemote applies one remote snapshot. Unknown documents are
// inserted as synced; known ones are overwritten only when the remote copy
// is strictly newer, so re-applying the same snapshot writes nothing.
func (e *Engine) ReconcileFromRemote(ctx context.Context, snapshot []models.Item) error {
	for _, ri := range snapshot {
		if err := e.applyRemote(ri); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) applyRemote(ri models.Item) error {
	local, err := e.local.FindByRemoteID(ri.RemoteID)
	if err != nil {
		return err
	}

	if local == nil {
		// A pending local copy with the same text is the same logical item,
		// most likely our own offline create coming back; adopt the key
		// instead of inserting a duplicate.
		byDesc, err := e.local.FindByDescription(ri.OwnerID, ri.Description)
		if err != nil {
			return err
		}
		if byDesc != nil {
			updated := *byDesc
			updated.RemoteID = ri.RemoteID
			if ri.UpdatedAt >= byDesc.UpdatedAt && byDesc.SyncState != models.StatePendingDeletion {
				updated.Description = ri.Description
				updated.UpdatedAt = ri.UpdatedAt
				updated.SyncState = models.StateSynced
			}
			_, err = e.local.Upsert(updated)
			return err
		}

		_, err = e.local.Upsert(models.Item{
			RemoteID:    ri.RemoteID,
			Description: ri.Description,
			OwnerID:     ri.OwnerID,
			UpdatedAt:   ri.UpdatedAt,
			SyncState:   models.StateSynced,
		})
		return err
	}

	// Remote wins only when strictly newer; ties keep the local copy and
	// avoid a redundant write.
	if ri.UpdatedAt > local.UpdatedAt {
		local.Description = ri.Description
		local.UpdatedAt = ri.UpdatedAt
		local.SyncState = models.StateSynced
		_, err = e.local.Upsert(*local)
		return err
	}
	return nil
}

func (e *Engine) putRemote(ctx context.Context, item models.Item) (string, error) {
	var id string
	err := e.retry.Do(ctx, func() error {
		var err error
		id, err = e.remote.Put(ctx, item)
		return err
	})
	return id, err
}

func (e *Engine) deleteRemote(ctx context.Context, ownerID, remoteID string) error {
	return e.retry.Do(ctx, func() error {
		return e.remote.Delete(ctx, ownerID, remoteID)
	})
}
