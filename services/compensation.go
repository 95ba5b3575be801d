package services

import (
	"context"
	"log/slog"

	"itsm-knowledge-base/metrics"
)

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

// undoStack collects the inverse of every committed step of one article
// operation so a later failure can put storage back the way it was.
type undoStack struct {
	op        string
	articleID string
	steps     []undoStep
}

func newUndoStack(op, articleID string) *undoStack {
	return &undoStack{op: op, articleID: articleID}
}

func (u *undoStack) push(name string, fn func(ctx context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

// unwind runs the steps newest first. It keeps going past failures and uses a
// context detached from the request so a canceled caller still gets undone.
func (u *undoStack) unwind(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		metrics.Compensations.WithLabelValues(u.op).Inc()
		if err := step.fn(ctx); err != nil {
			slog.Error("Compensation step failed",
				"operation", u.op,
				"article_id", u.articleID,
				"step", step.name,
				"cause", cause,
				"error", err,
			)
			continue
		}
		slog.Warn("Compensation step applied",
			"operation", u.op,
			"article_id", u.articleID,
			"step", step.name,
			"cause", cause,
		)
	}
	u.steps = nil
}
