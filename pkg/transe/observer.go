package transe

import (
	"context"
	"time"
)

// BatchResult is reported after every batch.
type BatchResult struct {
	RunID       string
	Epoch       int
	Batch       int
	Triplets    int
	BatchLoss   float64
	RunningLoss float64
}

// EpochResult is reported after every completed epoch.
type EpochResult struct {
	RunID       string        `json:"run_id"`
	Epoch       int           `json:"epoch"`
	AverageLoss float64       `json:"average_loss"`
	Triplets    int           `json:"triplets"`
	Batches     int           `json:"batches"`
	Updates     int           `json:"updates"`
	Duration    time.Duration `json:"duration"`
	Checkpoint  string        `json:"checkpoint,omitempty"`
}

// Observer receives training progress. Calls happen on the training goroutine
// and must return quickly.
type Observer interface {
	BatchDone(ctx context.Context, r BatchResult)
	EpochDone(ctx context.Context, r EpochResult)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnBatch func(ctx context.Context, r BatchResult)
	OnEpoch func(ctx context.Context, r EpochResult)
}

func (o ObserverFuncs) BatchDone(ctx context.Context, r BatchResult) {
	if o.OnBatch != nil {
		o.OnBatch(ctx, r)
	}
}

func (o ObserverFuncs) EpochDone(ctx context.Context, r EpochResult) {
	if o.OnEpoch != nil {
		o.OnEpoch(ctx, r)
	}
}
