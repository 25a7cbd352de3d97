package coordinator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/trilheiros/trilheiros/internal/db"
	"github.com/trilheiros/trilheiros/internal/reconciler"
	"github.com/trilheiros/trilheiros/internal/remote"
	"github.com/trilheiros/trilheiros/pkg/models"
)

// echoStore accepts every write; enough to drive the engine in these tests.
type echoStore struct{}

func (echoStore) Put(ctx context.Context, item models.Item) (string, error) {
	if item.HasRealRemoteID() {
		return item.RemoteID, nil
	}
	return remote.DocumentID(item.OwnerID, item.Description, item.UpdatedAt), nil
}

func (echoStore) Get(ctx context.Context, ownerID, remoteID string) (models.Item, error) {
	return models.Item{}, remote.ErrNotFound
}

func (echoStore) Delete(ctx context.Context, ownerID, remoteID string) error { return nil }

func (echoStore) Subscribe(ctx context.Context, ownerID string) (<-chan []models.Item, error) {
	ch := make(chan []models.Item)
	close(ch)
	return ch, nil
}

func testCoordinator(t *testing.T) (*Coordinator, *db.DB) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	engine := reconciler.New(database, echoStore{}, nil, nil)
	return New(database, engine, "u1"), database
}

func TestCreateShowsUpInSnapshot(t *testing.T) {
	coord, _ := testCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go coord.Run(ctx)
	snapshots, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	if err := coord.Create(ctx, "Rope"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case items := <-snapshots:
			if len(items) == 1 && items[0].Description == "Rope" {
				return
			}
		case <-deadline:
			t.Fatal("item never appeared in the observable collection")
		}
	}
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	coord, _ := testCoordinator(t)
	if err := coord.Create(context.Background(), ""); err == nil {
		t.Error("empty description should be rejected")
	}
}

func TestUpdateAndDeleteForward(t *testing.T) {
	coord, database := testCoordinator(t)
	ctx := context.Background()

	if err := coord.Create(ctx, "Rope"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	items, err := database.ListAll("u1")
	if err != nil || len(items) != 1 {
		t.Fatalf("seed items = %v, %v", items, err)
	}

	if err := coord.Update(ctx, items[0].LocalID, "Long rope"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := database.FindByLocalID(items[0].LocalID)
	if got == nil || got.Description != "Long rope" {
		t.Errorf("after update: %+v", got)
	}

	if err := coord.Delete(ctx, items[0].LocalID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, _ = database.ListAll("u1")
	if len(items) != 0 {
		t.Errorf("expected empty store after delete, got %d", len(items))
	}
}

func TestOperationsOnOtherOwnersItems(t *testing.T) {
	coord, database := testCoordinator(t)
	ctx := context.Background()

	other, err := database.Upsert(models.Item{
		Description: "Not yours", OwnerID: "u2", UpdatedAt: 1, SyncState: models.StateSynced,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := coord.Update(ctx, other.LocalID, "hijack"); err == nil {
		t.Error("updating another owner's item should fail")
	}
	if err := coord.Delete(ctx, other.LocalID); err == nil {
		t.Error("deleting another owner's item should fail")
	}
}

func TestDedupeByLocalID(t *testing.T) {
	in := []models.Item{
		{LocalID: 1, Description: "a"},
		{LocalID: 2, Description: "b"},
		{LocalID: 1, Description: "a again"},
	}
	out := dedupeByLocalID(in)
	if len(out) != 2 {
		t.Fatalf("len = %d; want 2", len(out))
	}
	if out[0].LocalID != 1 || out[1].LocalID != 2 {
		t.Errorf("order not preserved: %+v", out)
	}
}
