// Command dispatch.
package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/glthr/delve-session/internal/breakpoint"
	"github.com/glthr/delve-session/internal/delve"
	"github.com/glthr/delve-session/internal/restart"
)

// Execute runs one command line and reports whether the session should end.
// Errors are printed; they never end the session.
func (s *Session) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]
	log.Debug().Str("command", cmd).Strs("args", args).Msg("execute")

	var err error
	switch cmd {
	case "quit", "q", "exit":
		return true
	case "break", "b":
		err = s.cmdBreak(ctx, rest(line, 1))
	case "breakpoints", "bp":
		s.cmdBreakpoints()
	case "info":
		if len(args) > 0 && (args[0] == "breakpoints" || args[0] == "b") {
			s.cmdBreakpoints()
		} else {
			err = errors.New(`"info" must be followed by "breakpoints"`)
		}
	case "clear", "delete":
		err = s.cmdClear(args)
	case "condition", "cond":
		err = s.cmdCondition(line, args)
	case "continue", "cont", "c":
		err = s.cmdContinue(ctx)
	case "restart":
		err = s.cmdRestart(args)
	case "set":
		err = s.cmdSet(args)
	case "show":
		err = s.cmdShow(args)
	case "help", "h":
		s.Out.Print(helpText)
	default:
		err = errors.Errorf("Unknown command: %q. Try \"help\".", fields[0])
	}
	if err != nil {
		s.Out.Error(err.Error())
	}
	return false
}

const helpText = `Commands:
  break <locspec> [if <cond>]  Set a breakpoint, optionally conditional.
  breakpoints                  List breakpoints (also "info breakpoints").
  clear <id>                   Delete a breakpoint.
  condition <id> [expr]        Set the condition of a breakpoint; no expr removes it.
  continue                     Resume until a breakpoint whose condition holds.
  restart [args...]            Relaunch the program, with args if given.
  set args <args...>           Set the arguments used by restart.
  show args                    Show the arguments used by restart.
  quit                         End the session.`

// rest returns line after its first n words, spacing preserved.
func rest(line string, n int) string {
	s := strings.TrimLeft(line, " \t")
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(s, " \t")
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeft(s[idx:], " \t")
	}
	return strings.TrimRight(s, " \t")
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.Errorf("%q is not a number", arg)
	}
	return id, nil
}

func (s *Session) requireTarget() error {
	if s.Target == nil {
		return errors.New("The program is not being run.")
	}
	return nil
}

func (s *Session) cmdBreak(ctx context.Context, spec string) error {
	if err := s.requireTarget(); err != nil {
		return err
	}
	bps, err := s.Target.Break(ctx, spec)
	for _, bp := range bps {
		msg := "Breakpoint " + strconv.Itoa(bp.ID) + " at " + bp.Location.String()
		if text, ok := bp.Condition.Text(); ok {
			msg += " if " + text
		}
		s.Out.Print(msg)
	}
	return err
}

func (s *Session) cmdBreakpoints() {
	bps := s.Table.List()
	if len(bps) == 0 {
		s.Out.Print("No breakpoints.")
		return
	}
	for _, bp := range bps {
		msg := strconv.Itoa(bp.ID) + ": " + bp.Location.String()
		if text, ok := bp.Condition.Text(); ok {
			msg += " if " + text
		}
		if !bp.Enabled {
			msg += " (disabled)"
		}
		if bp.HitCount > 0 {
			msg += " hits=" + strconv.FormatUint(bp.HitCount, 10)
		}
		s.Out.Print(msg)
	}
}

func (s *Session) cmdClear(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: clear <id>")
	}
	if err := s.requireTarget(); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := s.Target.Clear(id); err != nil {
		return err
	}
	s.Out.Printf("Deleted breakpoint %d", id)
	return nil
}

// cmdCondition handles "condition <id> [expr...]". The expression is taken
// from the raw line so its spacing survives.
func (s *Session) cmdCondition(line string, args []string) error {
	if len(args) < 1 {
		return errors.New(`"condition" must be followed by a breakpoint number`)
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	cond := breakpoint.NoCondition()
	if expr := rest(line, 2); expr != "" {
		cond = breakpoint.When(expr)
	}
	msg, err := s.Engine.SetCondition(id, cond)
	if err != nil {
		return err
	}
	s.Out.Print(msg)
	return nil
}

func (s *Session) cmdContinue(ctx context.Context) error {
	if err := s.requireTarget(); err != nil {
		return err
	}
	cctx, cancel := s.interruptible(ctx)
	defer cancel()
	state, err := s.Target.Continue(cctx)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		if state != nil && state.CurrentThread != nil {
			s.Out.Printf("Interrupted at %s:%d", state.CurrentThread.File, state.CurrentThread.Line)
		} else {
			s.Out.Print("Interrupted.")
		}
		return nil
	}
	if err != nil {
		return err
	}
	if delve.IsExitError(state.Err) {
		s.Out.Print(state.Err.Error())
		return nil
	}
	if state.Exited {
		s.Out.Printf("Process exited with status %d", state.ExitStatus)
		return nil
	}
	if th := state.CurrentThread; th != nil {
		if th.Breakpoint != nil && th.Breakpoint.ID > 0 {
			s.Out.Printf("Stopped at breakpoint %d at %s:%d", th.Breakpoint.ID, th.File, th.Line)
		} else {
			s.Out.Printf("Stopped at %s:%d", th.File, th.Line)
		}
		return nil
	}
	s.Out.Print("stopped")
	return nil
}

// interruptible derives a context that Interrupts cancels.
func (s *Session) interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)
	if s.Interrupts == nil {
		return cctx, cancel
	}
	for drained := false; !drained; {
		select {
		case <-s.Interrupts:
		default:
			drained = true
		}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-s.Interrupts:
			cancel()
		case <-done:
		}
	}()
	return cctx, func() {
		close(done)
		cancel()
	}
}

func (s *Session) cmdRestart(args []string) error {
	if s.Restarter == nil {
		return errors.New("restart is not available in this session")
	}
	err := s.Restarter.Restart(args)
	var fatal *restart.FatalError
	if errors.As(err, &fatal) {
		// Already on the error channel.
		return nil
	}
	return err
}

func (s *Session) cmdSet(args []string) error {
	if len(args) == 0 || args[0] != "args" {
		return errors.New(`Unknown set command; try "set args <args...>"`)
	}
	s.Config.SetArgs(args[1:])
	return nil
}

func (s *Session) cmdShow(args []string) error {
	if len(args) == 0 || args[0] != "args" {
		return errors.New(`Unknown show command; try "show args"`)
	}
	s.Out.Printf("Argument list to give program being debugged when it is started is %q.", strings.Join(s.Config.ProgramArgs(), " "))
	return nil
}
