// Package commands implements the line-oriented command surface of a debug
// session: breakpoints, conditions, continue, restart and argument settings.
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-delve/delve/service/api"
	"github.com/pkg/errors"

	"github.com/glthr/delve-session/internal/breakpoint"
	"github.com/glthr/delve-session/internal/conditions"
	"github.com/glthr/delve-session/internal/session"
)

// Prompt is printed before each command is read.
const Prompt = "(delve-session) "

// Output is the user-visible text channel.
type Output interface {
	Print(msg string)
	Printf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Flush() error
}

// Target is the execution-control side of the session.
type Target interface {
	Break(ctx context.Context, spec string) ([]*breakpoint.Breakpoint, error)
	Clear(id int) error
	Continue(ctx context.Context) (*api.DebuggerState, error)
}

// Restarter relaunches the debuggee. Restart only returns when it failed.
type Restarter interface {
	Restart(args []string) error
}

// Session owns the breakpoint table and the session configuration; the
// engine, target and restarter hold references into them.
type Session struct {
	Config    *session.Config
	Table     *breakpoint.Table
	Engine    *conditions.Engine
	Target    Target
	Restarter Restarter
	Out       Output
	// PromptOut receives the prompt. Nil disables it.
	PromptOut io.Writer
	// Interrupts interrupts a running continue. A signal that arrives
	// while no continue is running is dropped.
	Interrupts <-chan os.Signal
}

// Run reads commands from in until quit or end of input.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Out.Flush(); err != nil {
			return errors.Wrap(err, "flush output")
		}
		if s.PromptOut != nil {
			fmt.Fprint(s.PromptOut, Prompt)
		}
		if !scanner.Scan() {
			return errors.Wrap(scanner.Err(), "read command")
		}
		if quit := s.Execute(ctx, scanner.Text()); quit {
			return nil
		}
	}
}
