//go:build !cgo

package corpus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/kgembed/pkg/types"
)

// ErrCGORequired is returned when the Ladybug source is used without CGO support
var ErrCGORequired = errors.New("ladybug corpus requires CGO; build with CGO_ENABLED=1")

// LadybugSource is a stub when CGO is disabled. All methods return ErrCGORequired.
type LadybugSource struct{}

// NewLadybugSource returns an error when CGO is disabled
func NewLadybugSource(path string, logger *slog.Logger) (*LadybugSource, error) {
	return nil, ErrCGORequired
}

func (s *LadybugSource) AddEntity(ctx context.Context, id types.EntityID, name string) error {
	return ErrCGORequired
}

func (s *LadybugSource) AddTriplet(ctx context.Context, t types.Triplet) error {
	return ErrCGORequired
}

func (s *LadybugSource) Count(ctx context.Context) (int, error) { return 0, ErrCGORequired }

func (s *LadybugSource) Batch(ctx context.Context, offset, limit int) ([]types.Triplet, error) {
	return nil, ErrCGORequired
}

func (s *LadybugSource) EntityIDs(ctx context.Context) ([]types.EntityID, error) {
	return nil, ErrCGORequired
}

func (s *LadybugSource) RelationIDs(ctx context.Context) ([]types.RelationID, error) {
	return nil, ErrCGORequired
}

func (s *LadybugSource) EntityName(ctx context.Context, id types.EntityID) (string, error) {
	return "", ErrCGORequired
}

func (s *LadybugSource) Close() error { return nil }
