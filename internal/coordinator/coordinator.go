// Package coordinator is the thin state holder between presentation code and
// the reconciliation engine. It owns no sync policy: it mirrors the local
// store's live query and forwards user intents.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/trilheiros/trilheiros/internal/db"
	"github.com/trilheiros/trilheiros/internal/reconciler"
	"github.com/trilheiros/trilheiros/pkg/models"
)

// Identity supplies the signed-in owner, or reports that nobody is.
type Identity interface {
	CurrentOwner() (string, bool)
}

// Coordinator exposes one observable item collection for a single owner.
// It never talks to the remote store.
type Coordinator struct {
	local   *db.DB
	engine  *reconciler.Engine
	ownerID string

	mu     sync.Mutex
	items  []models.Item
	subs   map[int]chan []models.Item
	nextID int
}

// New creates a coordinator for the given owner.
func New(local *db.DB, engine *reconciler.Engine, ownerID string) *Coordinator {
	return &Coordinator{
		local:   local,
		engine:  engine,
		ownerID: ownerID,
		subs:    make(map[int]chan []models.Item),
	}
}

// Run consumes the local live query until ctx ends, keeping the current
// snapshot and fanning it out to subscribers. Blocks; run it in its own
// goroutine.
func (c *Coordinator) Run(ctx context.Context) error {
	ch, err := c.local.Watch(ctx, c.ownerID)
	if err != nil {
		return err
	}
	for snapshot := range ch {
		c.publish(dedupeByLocalID(snapshot))
	}
	return nil
}

// dedupeByLocalID drops repeated local IDs. The store should never produce
// them, but the displayed collection must be unique regardless.
func dedupeByLocalID(items []models.Item) []models.Item {
	seen := make(map[int64]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.LocalID] {
			continue
		}
		seen[it.LocalID] = true
		out = append(out, it)
	}
	return out
}

func (c *Coordinator) publish(items []models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	for _, ch := range c.subs {
		// Keep only the latest snapshot per subscriber.
		select {
		case ch <- items:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- items:
			default:
			}
		}
	}
}

// Items returns the current snapshot.
func (c *Coordinator) Items() []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Subscribe returns a channel receiving each new snapshot and a cancel
// function that unregisters it.
func (c *Coordinator) Subscribe() (<-chan []models.Item, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan []models.Item, 1)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Create adds a new item for the owner.
func (c *Coordinator) Create(ctx context.Context, description string) error {
	if description == "" {
		return fmt.Errorf("description must not be empty")
	}
	return c.engine.Save(ctx, models.Item{
		Description: description,
		OwnerID:     c.ownerID,
	})
}

// Update changes the text of an existing item.
func (c *Coordinator) Update(ctx context.Context, localID int64, description string) error {
	item, err := c.local.FindByLocalID(localID)
	if err != nil {
		return err
	}
	if item == nil || item.OwnerID != c.ownerID {
		return fmt.Errorf("item %d not found", localID)
	}
	item.Description = description
	return c.engine.Update(ctx, *item)
}

// Delete removes an existing item.
func (c *Coordinator) Delete(ctx context.Context, localID int64) error {
	item, err := c.local.FindByLocalID(localID)
	if err != nil {
		return err
	}
	if item == nil || item.OwnerID != c.ownerID {
		return fmt.Errorf("item %d not found", localID)
	}
	return c.engine.Delete(ctx, *item)
}
