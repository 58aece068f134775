package rlv

import "fmt"

// warmupLogInterval is the number of warmup steps between log lines
const warmupLogInterval = 100

// WarmupState is the state of the inverse model warmup
type WarmupState int

const (
	WarmupPending WarmupState = iota
	WarmupRunning
	WarmupDone
)

// String implements the fmt.Stringer interface
func (w WarmupState) String() string {
	switch w {
	case WarmupRunning:
		return "running"
	case WarmupDone:
		return "done"
	}
	return "pending"
}

// WarmupState returns the state of the inverse model warmup
func (t *Trainer) WarmupState() WarmupState {
	return t.warmupState
}

// Warmup trains the inverse model alone on the action-free buffer for
// exactly steps steps, returning the loss of each step. Once warmup has
// finished, later calls do nothing and return nil losses.
func (t *Trainer) Warmup(steps int) ([]float64, error) {
	if t.warmupState == WarmupDone {
		return nil, nil
	}
	t.warmupState = WarmupRunning

	losses := make([]float64, 0, steps)
	for step := 0; step < steps; step++ {
		b, err := t.actionFree.Sample(t.batchSize)
		if err != nil {
			t.warmupState = WarmupPending
			return losses, fmt.Errorf("warmup: could not sample "+
				"action-free buffer: %w", err)
		}

		loss, err := t.inverse.TrainStep(b.Observations, b.NextObservations,
			b.Actions)
		if err != nil {
			t.warmupState = WarmupPending
			return losses, fmt.Errorf("warmup: %v", err)
		}
		losses = append(losses, loss)

		if step%warmupLogInterval == 0 {
			t.logger.Printf("warmup step=%d loss=%.6f", step, loss)
		}
	}

	t.warmupState = WarmupDone
	return losses, nil
}
