// Package conditions decides, at each breakpoint hit, whether execution
// should actually halt, and owns the condition assignment protocol.
package conditions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/glthr/delve-session/internal/breakpoint"
)

// Frame is a read-only view of the debuggee at a suspension point. Live
// processes and (later) core files provide their own implementations.
type Frame interface {
	Location() breakpoint.Location
}

// Value is the result of evaluating a condition.
type Value interface {
	Truthy() bool
}

// Evaluator evaluates expression text against a frame. Any error, whether
// from parsing or from evaluation, is a failure.
type Evaluator interface {
	Evaluate(ctx context.Context, frame Frame, expr string) (Value, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, frame Frame, expr string) (Value, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, frame Frame, expr string) (Value, error) {
	return f(ctx, frame, expr)
}

// Engine holds non-owning references to the session's breakpoint table and
// the evaluator.
type Engine struct {
	table *breakpoint.Table
	eval  Evaluator
}

// New returns an engine over table. A nil eval makes every conditional
// breakpoint stop.
func New(table *breakpoint.Table, eval Evaluator) *Engine {
	return &Engine{table: table, eval: eval}
}

// SetCondition overwrites the condition of breakpoint id with cond exactly
// as given. Nothing is validated here. On success it returns the feedback
// line for the user; on error the table is untouched.
func (e *Engine) SetCondition(id int, cond breakpoint.Condition) (string, error) {
	if e.table.Len() == 0 {
		return "", breakpoint.ErrNoBreakpoints
	}
	bp, ok := e.table.Get(id)
	if !ok {
		return "", &breakpoint.UnknownBreakpointError{ID: id}
	}
	bp.Condition = cond
	log.Debug().Int("id", id).Stringer("condition", cond).Msg("condition set")

	if text, ok := cond.Text(); ok {
		return fmt.Sprintf("Breakpoint %d condition: %s", id, text), nil
	}
	return fmt.Sprintf("Breakpoint %d condition removed", id), nil
}

// ShouldStop applies the evaluation policy to a hit on bp. It always
// answers: an unevaluable condition behaves as if it were absent.
func (e *Engine) ShouldStop(ctx context.Context, bp *breakpoint.Breakpoint, frame Frame) bool {
	bp.HitCount++
	expr, ok := bp.Condition.Text()
	if !ok {
		return true
	}
	if e.eval == nil {
		log.Debug().Int("id", bp.ID).Msg("no evaluator, stopping")
		return true
	}
	v, err := e.eval.Evaluate(ctx, frame, expr)
	if err != nil {
		log.Debug().Err(err).Int("id", bp.ID).Str("condition", expr).
			Msg("condition not evaluable, stopping")
		return true
	}
	if v == nil {
		return true
	}
	return v.Truthy()
}
