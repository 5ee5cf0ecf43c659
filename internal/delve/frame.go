// Frames and condition evaluation against a stopped Delve target.
package delve

import (
	"context"
	"reflect"

	"github.com/go-delve/delve/service/api"
	"github.com/pkg/errors"

	"github.com/glthr/delve-session/internal/breakpoint"
	"github.com/glthr/delve-session/internal/conditions"
)

// Frame is the topmost frame of the goroutine that hit a breakpoint in a
// live process.
type Frame struct {
	Scope api.EvalScope
	Loc   breakpoint.Location
}

func (f Frame) Location() breakpoint.Location {
	return f.Loc
}

// frameFromThread builds the evaluation frame for a thread stopped at a
// breakpoint.
func frameFromThread(th *api.Thread) Frame {
	fn := ""
	if th.Function != nil {
		fn = th.Function.Name()
	}
	return Frame{
		Scope: api.EvalScope{GoroutineID: th.GoroutineID, Frame: 0},
		Loc:   breakpoint.Location{File: th.File, Line: th.Line, Function: fn},
	}
}

// conditionLoadConfig loads just enough of a value to decide its truth.
var conditionLoadConfig = api.LoadConfig{FollowPointers: false, MaxVariableRecurse: 0, MaxStringLen: 64, MaxArrayValues: 1, MaxStructFields: -1}

// Evaluator evaluates conditions with Delve's expression evaluator.
type Evaluator struct {
	Client Client
}

var _ conditions.Evaluator = Evaluator{}

func (e Evaluator) Evaluate(ctx context.Context, frame conditions.Frame, expr string) (conditions.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := frame.(Frame)
	if !ok {
		return nil, errors.Errorf("cannot evaluate in frame of type %T", frame)
	}
	v, err := e.Client.EvalVariable(f.Scope, expr, conditionLoadConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %q", expr)
	}
	if v == nil {
		return nil, errors.Errorf("evaluate %q: no value", expr)
	}
	if v.Unreadable != "" {
		return nil, errors.Errorf("evaluate %q: unreadable: %s", expr, v.Unreadable)
	}
	return Value{v}, nil
}

// Value is a Delve variable used as a condition result. false and nil are
// falsy; every other value is truthy.
type Value struct {
	V *api.Variable
}

func (v Value) Truthy() bool {
	switch v.V.Kind {
	case reflect.Bool:
		return v.V.Value == "true"
	case reflect.Invalid:
		return false
	case reflect.Ptr:
		return len(v.V.Children) > 0 && v.V.Children[0].Addr != 0
	case reflect.Interface:
		return len(v.V.Children) > 0 && v.V.Children[0].Kind != reflect.Invalid
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Slice:
		return v.V.Value != "nil" && v.V.Base != 0
	}
	return true
}
