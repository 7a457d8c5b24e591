package learner

import (
	"context"
	"fmt"
)

// Trainer runs the per-epoch work of a training loop.
type Trainer interface {
	// TrainEpoch runs one pass over the training data and returns the
	// smoothed training loss.
	TrainEpoch(ctx context.Context) (float64, error)
	// Validate returns the validation metrics in recorder order.
	Validate(ctx context.Context) ([]float64, error)
}

// Fit drives begin, one epoch-end per epoch, then end. The first error
// aborts the loop; OnTrainEnd still runs if training had begun.
func Fit(ctx context.Context, t Trainer, epochs int, cbs ...Callback) (err error) {
	for _, cb := range cbs {
		if err := cb.OnTrainBegin(ctx); err != nil {
			return fmt.Errorf("failed to begin training: %w", err)
		}
	}

	defer func() {
		for _, cb := range cbs {
			if endErr := cb.OnTrainEnd(ctx); endErr != nil && err == nil {
				err = fmt.Errorf("failed to end training: %w", endErr)
			}
		}
	}()

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		loss, err := t.TrainEpoch(ctx)
		if err != nil {
			return fmt.Errorf("failed to train epoch %d: %w", epoch, err)
		}
		metrics, err := t.Validate(ctx)
		if err != nil {
			return fmt.Errorf("failed to validate epoch %d: %w", epoch, err)
		}

		state := EpochEnd{Epoch: epoch, SmoothLoss: loss, Metrics: metrics}
		for _, cb := range cbs {
			if err := cb.OnEpochEnd(ctx, state); err != nil {
				return fmt.Errorf("callback failed at epoch %d: %w", epoch, err)
			}
		}
	}
	return nil
}
