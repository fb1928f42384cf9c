// Package store keeps the console's services, workflows and runs: three
// in-memory repositories plus a persistent snapshot of their contents.
package store

import (
	"context"

	"github.com/me/wesconsole/pkg/model"
)

// Snapshot is the full persisted state of the console.
type Snapshot struct {
	Services  []*model.Service  `json:"services"`
	Workflows []*model.Workflow `json:"workflows"`
	Runs      []*model.Run      `json:"runs"`
}

// Store defines the persistence layer for console state.
type Store interface {
	// Save replaces the persisted state with snap.
	Save(ctx context.Context, snap *Snapshot) error
	// Load returns the persisted state; an empty store yields an empty snapshot.
	Load(ctx context.Context) (*Snapshot, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
