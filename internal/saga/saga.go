// Package saga runs a short sequence of writes that must succeed together
// against a store without cross-record transactions.
//
// Each Step has a Do and an optional Undo. Steps run in order; when one
// fails, the Undo of every step that already succeeded runs in reverse order.
// Undo is best effort: its failure is logged and reported alongside the
// original error, it never hides it.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"
)

// Step is one write and the write that reverses it.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// StepError reports which step failed and whether the rollback was clean.
type StepError struct {
	Step    string
	Err     error
	UndoErr error // nil when every undo succeeded
}

func (e *StepError) Error() string {
	if e.UndoErr != nil {
		return fmt.Sprintf("saga: step %s failed: %v (rollback failed: %v)", e.Step, e.Err, e.UndoErr)
	}
	return fmt.Sprintf("saga: step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RolledBack reports whether every completed step was undone.
func (e *StepError) RolledBack() bool {
	return e.UndoErr == nil
}

// Run executes steps in order. It returns nil when all succeed, otherwise a
// *StepError after compensating.
//
// Undo runs with a context detached from ctx's cancellation, so a client
// hanging up mid-request does not also abort the cleanup.
func Run(ctx context.Context, logger *slog.Logger, name string, steps ...Step) error {
	runID := xid.New().String()
	log := logger.With(slog.String("saga", name), slog.String("run", runID))

	for i, step := range steps {
		err := step.Do(ctx)
		if err == nil {
			continue
		}

		log.Warn("saga step failed, compensating",
			slog.String("step", step.Name),
			slog.String("error", err.Error()),
		)

		undoCtx := context.WithoutCancel(ctx)
		var undoErrs []error
		for j := i - 1; j >= 0; j-- {
			done := steps[j]
			if done.Undo == nil {
				continue
			}
			if uerr := done.Undo(undoCtx); uerr != nil {
				log.Error("saga undo failed",
					slog.String("step", done.Name),
					slog.String("error", uerr.Error()),
				)
				undoErrs = append(undoErrs, fmt.Errorf("undo %s: %w", done.Name, uerr))
			}
		}

		return &StepError{
			Step:    step.Name,
			Err:     err,
			UndoErr: errors.Join(undoErrs...),
		}
	}
	return nil
}
