// Package checkpoint persists named snapshots of a TransE model.
//
// A checkpoint is one JSON document holding every entity and relation vector
// plus the hyperparameters they were trained with. Checkpoints are
// independent: loading one replaces the whole model. Bytes go to a Store,
// either a directory of files or an embedded badger database.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/kgembed/pkg/types"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint has the requested name.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrInvalidName is returned when a checkpoint name contains path traversal or invalid characters.
	ErrInvalidName = errors.New("invalid checkpoint name: contains path traversal or invalid characters")
)

// Store holds serialized checkpoints by name.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	// Get returns ErrCheckpointNotFound when name is absent.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete succeeds when name is already absent.
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context) ([]string, error)
	Close() error
}

// Checkpoint is the serialized form of a model snapshot.
type Checkpoint struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id,omitempty"`
	Epoch     int       `json:"epoch"`
	Partial   bool      `json:"partial,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Entities      map[types.EntityID]types.Vector   `json:"entities"`
	Relations     map[types.RelationID]types.Vector `json:"relations"`
	Config        types.Hyperparameters             `json:"config"`
	EntityOrder   []types.EntityID                  `json:"entity_order,omitempty"`
	RelationOrder []types.RelationID                `json:"relation_order,omitempty"`
}

// State returns the model state held by the checkpoint.
func (c *Checkpoint) State() *types.ModelState {
	return &types.ModelState{
		Entities:      c.Entities,
		Relations:     c.Relations,
		Config:        c.Config,
		EntityOrder:   c.EntityOrder,
		RelationOrder: c.RelationOrder,
	}
}

// Info describes a stored checkpoint without its vectors.
type Info struct {
	Name         string                `json:"name"`
	RunID        string                `json:"run_id,omitempty"`
	Epoch        int                   `json:"epoch"`
	Partial      bool                  `json:"partial,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	Config       types.Hyperparameters `json:"config"`
	NumEntities  int                   `json:"num_entities"`
	NumRelations int                   `json:"num_relations"`
	Size         int                   `json:"size"`
}

// header decodes a checkpoint's metadata and discards the vectors.
type header struct {
	Name      string                     `json:"name"`
	RunID     string                     `json:"run_id"`
	Epoch     int                        `json:"epoch"`
	Partial   bool                       `json:"partial"`
	CreatedAt time.Time                  `json:"created_at"`
	Config    types.Hyperparameters      `json:"config"`
	Entities  map[string]json.RawMessage `json:"entities"`
	Relations map[string]json.RawMessage `json:"relations"`
}

// Manager saves and loads model checkpoints.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	runID string
	now   func() time.Time
}

// NewManager creates a manager backed by store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetRunID tags subsequently saved checkpoints with a training run id.
func (m *Manager) SetRunID(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = runID
}

// Save serializes state under name, replacing any checkpoint with that name.
func (m *Manager) Save(ctx context.Context, name string, state *types.ModelState) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if state == nil {
		return errors.New("nil model state")
	}

	m.mu.RLock()
	runID := m.runID
	m.mu.RUnlock()

	epoch, partial := ParseName(name)
	cp := Checkpoint{
		Name:          name,
		RunID:         runID,
		Epoch:         epoch,
		Partial:       partial,
		CreatedAt:     m.now().UTC(),
		Entities:      state.Entities,
		Relations:     state.Relations,
		Config:        state.Config,
		EntityOrder:   state.EntityOrder,
		RelationOrder: state.RelationOrder,
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := m.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("failed to store checkpoint %s: %w", name, err)
	}

	m.logger.Info("Saved checkpoint",
		"checkpoint", name,
		"entities", len(state.Entities),
		"relations", len(state.Relations),
		"bytes", len(data))
	return nil
}

// Load returns the model state saved under name.
func (m *Manager) Load(ctx context.Context, name string) (*types.ModelState, error) {
	cp, err := m.LoadCheckpoint(ctx, name)
	if err != nil {
		return nil, err
	}
	return cp.State(), nil
}

// LoadCheckpoint returns the full checkpoint saved under name.
func (m *Manager) LoadCheckpoint(ctx context.Context, name string) (*Checkpoint, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := m.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", name, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", name, err)
	}
	if cp.Entities == nil {
		cp.Entities = make(map[types.EntityID]types.Vector)
	}
	if cp.Relations == nil {
		cp.Relations = make(map[types.RelationID]types.Vector)
	}
	return &cp, nil
}

// Exists reports whether a checkpoint is stored under name.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	_, err := m.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check checkpoint existence: %w", err)
	}
	return true, nil
}

// Delete removes the checkpoint stored under name.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", name, err)
	}
	return nil
}

// List describes every stored checkpoint, oldest first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	names, err := m.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	infos := make([]Info, 0, len(names))
	for _, name := range names {
		data, err := m.store.Get(ctx, name)
		if err != nil {
			m.logger.Warn("Skipping unreadable checkpoint", "checkpoint", name, "error", err)
			continue
		}
		var h header
		if err := json.Unmarshal(data, &h); err != nil {
			m.logger.Warn("Skipping corrupt checkpoint", "checkpoint", name, "error", err)
			continue
		}
		infos = append(infos, Info{
			Name:         name,
			RunID:        h.RunID,
			Epoch:        h.Epoch,
			Partial:      h.Partial,
			CreatedAt:    h.CreatedAt,
			Config:       h.Config,
			NumEntities:  len(h.Entities),
			NumRelations: len(h.Relations),
			Size:         len(data),
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return strings.Compare(infos[i].Name, infos[j].Name) < 0
	})
	return infos, nil
}

// Latest returns the most recently written checkpoint.
func (m *Manager) Latest(ctx context.Context) (*Info, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrCheckpointNotFound
	}
	latest := infos[len(infos)-1]
	return &latest, nil
}

// CleanOld removes checkpoints written more than maxAge ago and returns how
// many were removed.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for _, info := range infos {
		if !info.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.Delete(ctx, info.Name); err != nil {
			m.logger.Warn("Failed to remove old checkpoint", "checkpoint", info.Name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
