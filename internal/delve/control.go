// Execution control: breakpoints and the continue loop that consults the
// condition engine at every hit.
package delve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-delve/delve/service/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/glthr/delve-session/internal/breakpoint"
	"github.com/glthr/delve-session/internal/conditions"
)

// Controller drives a Delve target on behalf of a session. Breakpoints are
// created on the server without a condition; conditions live in the table
// and are decided by the engine.
type Controller struct {
	client Client
	table  *breakpoint.Table
	engine *conditions.Engine
	// haltWait bounds the wait for the stop that follows a Halt.
	haltWait time.Duration
}

// NewController returns a controller over client. table and engine are owned
// by the session.
func NewController(client Client, table *breakpoint.Table, engine *conditions.Engine) *Controller {
	return &Controller{client: client, table: table, engine: engine, haltWait: 5 * time.Second}
}

// Client returns the underlying Delve client.
func (c *Controller) Client() Client {
	return c.client
}

func scopeFromState(state *api.DebuggerState) api.EvalScope {
	if state != nil && state.SelectedGoroutine != nil {
		return api.EvalScope{GoroutineID: state.SelectedGoroutine.ID, Frame: 0}
	}
	return api.EvalScope{GoroutineID: -1, Frame: 0}
}

// SplitCondition separates "<locspec> if <cond>" into its parts.
func SplitCondition(spec string) (string, breakpoint.Condition) {
	spec = strings.TrimSpace(spec)
	if idx := strings.Index(spec, " if "); idx >= 0 {
		return strings.TrimSpace(spec[:idx]), breakpoint.When(strings.TrimSpace(spec[idx+4:]))
	}
	return spec, breakpoint.NoCondition()
}

// Break sets a breakpoint at every address locspec resolves to. An "if
// <cond>" suffix becomes the breakpoint's condition, unvalidated.
func (c *Controller) Break(ctx context.Context, spec string) ([]*breakpoint.Breakpoint, error) {
	locspec, cond := SplitCondition(spec)
	if locspec == "" {
		return nil, errors.New("usage: break <locspec> [if <condition>]")
	}
	return c.create(ctx, 0, locspec, cond, true)
}

func (c *Controller) create(ctx context.Context, id int, locspec string, cond breakpoint.Condition, enabled bool) ([]*breakpoint.Breakpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, err := c.client.GetState()
	if err != nil {
		return nil, errors.Wrap(err, "get state")
	}
	locs, _, err := c.client.FindLocation(scopeFromState(state), locspec, false, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "find location %s", locspec)
	}
	if len(locs) == 0 {
		return nil, errors.Errorf("no location found for %q", locspec)
	}
	var out []*breakpoint.Breakpoint
	for _, loc := range locs {
		addr := loc.PC
		if addr == 0 && len(loc.PCs) > 0 {
			addr = loc.PCs[0]
		}
		if addr == 0 {
			continue
		}
		created, err := c.client.CreateBreakpoint(&api.Breakpoint{ID: id, Addr: addr, File: loc.File, Line: loc.Line, Disabled: !enabled})
		if err != nil {
			return out, errors.Wrapf(err, "create breakpoint at %s", locspec)
		}
		// Only the first address may reuse a requested ID.
		id = 0
		fn := ""
		if loc.Function != nil {
			fn = loc.Function.Name()
		}
		bp := &breakpoint.Breakpoint{
			ID:        created.ID,
			Location:  breakpoint.Location{File: created.File, Line: created.Line, Function: fn},
			Condition: cond,
			Enabled:   enabled,
		}
		if err := c.table.Insert(bp); err != nil {
			return out, err
		}
		out = append(out, bp)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no address found for %q", locspec)
	}
	return out, nil
}

// Clear deletes breakpoint id on the server and from the table.
func (c *Controller) Clear(id int) error {
	if _, ok := c.table.Get(id); !ok {
		return &breakpoint.UnknownBreakpointError{ID: id}
	}
	if _, err := c.client.ClearBreakpoint(id); err != nil {
		return errors.Wrapf(err, "clear breakpoint %d", id)
	}
	c.table.Remove(id)
	return nil
}

// Restore recreates the breakpoints of a saved table, keeping their IDs and
// conditions where the server allows it. Breakpoints that no longer resolve
// are reported and skipped.
func (c *Controller) Restore(ctx context.Context, saved *breakpoint.Table) []error {
	var errs []error
	for _, bp := range saved.List() {
		locspec := fmt.Sprintf("%s:%d", bp.Location.File, bp.Location.Line)
		if _, err := c.create(ctx, bp.ID, locspec, bp.Condition, bp.Enabled); err != nil {
			errs = append(errs, errors.Wrapf(err, "restore breakpoint %d", bp.ID))
		}
	}
	return errs
}

// hits returns the table breakpoints that threads in state are stopped at,
// current thread first, with their frames. ok is false when some thread is
// stopped at a breakpoint the table does not know; that stop is always kept.
func (c *Controller) hits(state *api.DebuggerState) (bps []*breakpoint.Breakpoint, frames []Frame, ok bool) {
	threads := state.Threads
	if state.CurrentThread != nil {
		threads = append([]*api.Thread{state.CurrentThread}, threads...)
	}
	seen := map[int]bool{}
	ok = true
	for _, th := range threads {
		if th == nil || th.Breakpoint == nil || seen[th.ID] {
			continue
		}
		seen[th.ID] = true
		if th.Breakpoint.ID <= 0 {
			continue
		}
		bp, found := c.table.Get(th.Breakpoint.ID)
		if !found {
			ok = false
			continue
		}
		bps = append(bps, bp)
		frames = append(frames, frameFromThread(th))
	}
	return bps, frames, ok
}

// Continue resumes the target until it stops at a breakpoint whose
// condition says stop, stops for another reason, or exits. Cancelling ctx
// halts the target; the halted state is returned with ctx's error.
func (c *Controller) Continue(ctx context.Context) (*api.DebuggerState, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch := c.client.Continue()
		var state *api.DebuggerState
		select {
		case state = <-ch:
		case <-ctx.Done():
			return c.halt(ch), ctx.Err()
		}
		if state == nil {
			return nil, errors.New("delve returned no state")
		}
		if state.Exited || IsExitError(state.Err) {
			return state, nil
		}
		if state.Err != nil {
			return state, state.Err
		}
		bps, frames, ok := c.hits(state)
		if !ok || len(bps) == 0 {
			return state, nil
		}
		stop := false
		for i, bp := range bps {
			if !bp.Enabled {
				continue
			}
			if c.engine.ShouldStop(ctx, bp, frames[i]) {
				stop = true
			}
		}
		if stop {
			return state, nil
		}
		log.Debug().Int("hits", len(bps)).Msg("no condition holds, resuming")
	}
}

// halt stops a running target and collects the state of the interrupted
// continue from ch.
func (c *Controller) halt(ch <-chan *api.DebuggerState) *api.DebuggerState {
	halted, err := c.client.Halt()
	if err != nil {
		log.Warn().Err(err).Msg("halt")
	}
	select {
	case state, ok := <-ch:
		if ok && state != nil {
			return state
		}
	case <-time.After(c.haltWait):
		log.Warn().Dur("wait", c.haltWait).Msg("no stop after halt")
	}
	return halted
}

// Kill detaches from the target and kills it with the server.
func (c *Controller) Kill() error {
	return errors.Wrap(c.client.Detach(true), "detach")
}
