// Package remote adapts a cloud document collection for the sync engine.
// Each item is one JSON document; the document key is the remote ID.
package remote

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/trilheiros/trilheiros/pkg/models"
)

// Remote operation failures the reconciliation engine branches on.
var (
	// ErrUnreachable means no network path to the remote store. Recoverable;
	// the engine degrades the item to a pending state and retries later.
	ErrUnreachable = errors.New("remote unreachable")
	// ErrRemoteRejected means the remote store refused the write. Also
	// degrades to pending rather than losing the write.
	ErrRemoteRejected = errors.New("remote rejected")
	// ErrNotFound means the document does not exist remotely.
	ErrNotFound = errors.New("not found")
)

// Store is the remote document collection contract. Implementations never
// retry internally; retry policy lives in the reconciliation engine.
type Store interface {
	// Subscribe pushes the owner's full remote item set on every server-side
	// change, starting with the current set. The channel closes when ctx ends.
	Subscribe(ctx context.Context, ownerID string) (<-chan []models.Item, error)
	// Get fetches one document. Fails with ErrNotFound if absent.
	Get(ctx context.Context, ownerID, remoteID string) (models.Item, error)
	// Put creates or overwrites the item's document and returns its key.
	// Items without a real remote ID get a freshly derived key.
	Put(ctx context.Context, item models.Item) (string, error)
	// Delete removes the document.
	Delete(ctx context.Context, ownerID, remoteID string) error
}

// DocumentID derives the key for a new document, following the
// owner_hash_timestamp scheme so keys are stable for a given write.
func DocumentID(ownerID, description string, updatedAt int64) string {
	h := fnv.New32a()
	h.Write([]byte(description))
	return fmt.Sprintf("%s_%08x_%d", ownerID, h.Sum32(), updatedAt)
}
