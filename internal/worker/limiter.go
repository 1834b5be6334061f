package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// OpClass identifies one class of external-provider work. Each class gets its
// own admission gate so a burst of one kind never starves the others.
type OpClass string

const (
	OpStyleTransfer    OpClass = "style_transfer"
	OpVideoGeneration  OpClass = "video_generation"
	OpExport           OpClass = "export"
	OpPromptGeneration OpClass = "prompt_generation"
)

// Limits are the per-class capacities, read once at process start.
type Limits struct {
	StyleTransfers    int
	VideoGenerations  int
	Exports           int
	PromptGenerations int
}

// Limiter bounds in-flight provider calls per operation class. It never
// fails on its own; it only delays admission until capacity frees up.
type Limiter struct {
	gates map[OpClass]*semaphore.Weighted
}

func NewLimiter(limits Limits) *Limiter {
	return &Limiter{
		gates: map[OpClass]*semaphore.Weighted{
			OpStyleTransfer:    semaphore.NewWeighted(int64(limits.StyleTransfers)),
			OpVideoGeneration:  semaphore.NewWeighted(int64(limits.VideoGenerations)),
			OpExport:           semaphore.NewWeighted(int64(limits.Exports)),
			OpPromptGeneration: semaphore.NewWeighted(int64(limits.PromptGenerations)),
		},
	}
}

// Do runs fn under the class gate. The gate is released on every exit path,
// including panics, so a crashing task can never leak capacity.
func (l *Limiter) Do(ctx context.Context, class OpClass, fn func() error) error {
	gate, ok := l.gates[class]
	if !ok {
		return fmt.Errorf("unknown operation class %q", class)
	}

	if err := gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("admission cancelled for %s: %w", class, err)
	}
	defer gate.Release(1)

	inFlightTasks.WithLabelValues(string(class)).Inc()
	defer inFlightTasks.WithLabelValues(string(class)).Dec()

	return fn()
}
