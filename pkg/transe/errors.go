package transe

import (
	"errors"
	"fmt"
)

var (
	// ErrUninitializedModel is returned when training or prediction touches an
	// id that has no embedding, or when Train runs before Initialize.
	ErrUninitializedModel = errors.New("model not initialized")

	// ErrAlreadyTraining is returned when Train is called while a run is in progress.
	ErrAlreadyTraining = errors.New("training already in progress")
)

// TrainingError records where in a run a failure happened.
type TrainingError struct {
	// Epoch is 1-based.
	Epoch int
	// Batch is 0-based within the epoch; -1 when the failure is not tied to a batch.
	Batch int
	Err   error
}

// Error implements the error interface.
func (e *TrainingError) Error() string {
	if e.Batch < 0 {
		return fmt.Sprintf("training epoch %d: %v", e.Epoch, e.Err)
	}
	return fmt.Sprintf("training epoch %d batch %d: %v", e.Epoch, e.Batch, e.Err)
}

// Unwrap returns the underlying error.
func (e *TrainingError) Unwrap() error {
	return e.Err
}

func newTrainingError(epoch, batch int, err error) *TrainingError {
	return &TrainingError{Epoch: epoch, Batch: batch, Err: err}
}
