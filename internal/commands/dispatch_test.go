package commands

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glthr/delve-session/internal/breakpoint"
	"github.com/glthr/delve-session/internal/conditions"
	"github.com/glthr/delve-session/internal/console"
	"github.com/glthr/delve-session/internal/delve"
	"github.com/glthr/delve-session/internal/delve/delvetest"
	"github.com/glthr/delve-session/internal/restart"
	"github.com/glthr/delve-session/internal/session"
)

type harness struct {
	s       *Session
	program *delvetest.Program
	out     *console.Recorder
	execs   []restart.Command
}

// newHarness debugs a program where b is 5 at line 3 and 3 at line 4.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		program: delvetest.NewProgram([]int{1, 2, 3, 4, 5}, map[int]map[string]int{
			3: {"b": 5},
			4: {"b": 3},
		}),
		out: &console.Recorder{},
	}
	client := delve.NewLoggingClient(h.program, zerolog.Nop())
	tbl := breakpoint.NewTable()
	eng := conditions.New(tbl, delve.Evaluator{Client: client})
	cfg := &session.Config{
		ProgramPath:  "prog/main.go",
		InitialDir:   "/work",
		RunnerScript: "delve-session",
		Interpreter:  []string{"go", "run"},
		ToolName:     "delve-session",
		Args:         []string{"prog/main.go", "argv"},
	}
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/prog/main.go", []byte("package main\n"), 0644))
	h.s = &Session{
		Config: cfg,
		Table:  tbl,
		Engine: eng,
		Target: delve.NewController(client, tbl, eng),
		Restarter: &restart.Controller{
			Config: cfg,
			Fs:     fs,
			Chdir:  func(string) error { return nil },
			Executor: restart.ExecutorFunc(func(cmd restart.Command) error {
				h.execs = append(h.execs, cmd)
				return nil
			}),
			Out: h.out,
		},
		Out: h.out,
	}
	return h
}

func (h *harness) enter(lines ...string) {
	for _, l := range lines {
		h.s.Execute(context.Background(), l)
	}
}

func (h *harness) condition(t *testing.T, id int) (string, bool) {
	t.Helper()
	bp, ok := h.s.Table.Get(id)
	require.True(t, ok)
	return bp.Condition.Text()
}

func TestConditionAssignsExpression(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "cond 1 b == 5", "cont")
	text, ok := h.condition(t, 1)
	require.True(t, ok)
	assert.Equal(t, "b == 5", text)
	assert.Contains(t, h.out.Output(), "Breakpoint 1 condition: b == 5")
}

func TestConditionTrueStops(t *testing.T) {
	for _, cmd := range []string{"cond", "condition"} {
		t.Run(cmd, func(t *testing.T) {
			h := newHarness(t)
			h.enter("break 3", cmd+" 1 b == 5", "cont")
			assert.Equal(t, 3, h.program.Line())
			assert.Contains(t, h.out.Output(), "Stopped at breakpoint 1 at "+delvetest.File+":3")
		})
	}
}

func TestConditionFalseDoesNotStop(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "break 4", "cond 1 b == 3", "cont")
	assert.Equal(t, 4, h.program.Line())
}

func TestConditionWithIncorrectSyntaxIsKept(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "break 4", "cond 1 b ==", "cont")
	text, ok := h.condition(t, 1)
	require.True(t, ok)
	assert.Equal(t, "b ==", text)
	assert.Equal(t, 3, h.program.Line(), "an unevaluable condition stops like an unconditional breakpoint")
	assert.Empty(t, h.out.Errors)
}

func TestConditionRemoval(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3 if b == 3", "break 4", "cond 1", "cont")
	_, ok := h.condition(t, 1)
	assert.False(t, ok)
	assert.Equal(t, 3, h.program.Line())
	assert.Contains(t, h.out.Output(), "Breakpoint 1 condition removed")
}

func TestConditionWithoutBreakpoints(t *testing.T) {
	h := newHarness(t)
	h.enter("cond 1 true")
	assert.Contains(t, h.out.ErrorOutput(), "No breakpoints have been set.")
}

func TestConditionUnknownID(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "cond 8 b == 3", "cont")
	assert.Equal(t, 3, h.program.Line())
	assert.Contains(t, h.out.ErrorOutput(), "No breakpoint number 8.")
	_, ok := h.condition(t, 1)
	assert.False(t, ok)
}

func TestConditionBadID(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "cond x b == 3", "cond")
	assert.Contains(t, h.out.ErrorOutput(), `"x" is not a number`)
	assert.Contains(t, h.out.ErrorOutput(), "must be followed by a breakpoint number")
}

func TestConditionKeepsSpacing(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "cond 1   b  ==  5  ")
	text, _ := h.condition(t, 1)
	assert.Equal(t, "b  ==  5", text)
}

func TestContinueToExit(t *testing.T) {
	h := newHarness(t)
	h.enter("break 4 if b == 4", "cont")
	assert.Contains(t, h.out.Output(), "Process exited with status 0")
}

func TestInterruptStopsOnlyTheContinue(t *testing.T) {
	h := newHarness(t)
	interrupts := make(chan os.Signal, 1)
	h.s.Interrupts = interrupts
	h.program.Spin = true
	time.AfterFunc(50*time.Millisecond, func() { interrupts <- os.Interrupt })

	h.enter("break 4", "cont")
	assert.Equal(t, 1, h.program.Halts)
	assert.Contains(t, h.out.Output(), "Interrupted at "+delvetest.File)
	assert.Empty(t, h.out.Errors)

	h.program.Spin = false
	h.enter("cont")
	assert.Equal(t, 4, h.program.Line(), "session still usable")
}

func TestStaleInterruptIsDropped(t *testing.T) {
	h := newHarness(t)
	interrupts := make(chan os.Signal, 1)
	interrupts <- os.Interrupt
	h.s.Interrupts = interrupts

	h.enter("break 3", "cont")
	assert.Equal(t, 3, h.program.Line())
	assert.Equal(t, 0, h.program.Halts)
}

func TestBreakpointsListing(t *testing.T) {
	h := newHarness(t)
	h.enter("info breakpoints")
	assert.Contains(t, h.out.Output(), "No breakpoints.")

	h.enter("break 3 if b == 5", "break 4", "cont", "bp")
	out := h.out.Output()
	assert.Contains(t, out, "1: "+delvetest.File+":3 (main.main) if b == 5 hits=1")
	assert.Contains(t, out, "2: "+delvetest.File+":4 (main.main)")
}

func TestClearCommand(t *testing.T) {
	h := newHarness(t)
	h.enter("break 3", "clear 1", "clear 1", "clear")
	assert.Equal(t, 0, h.s.Table.Len())
	assert.Contains(t, h.out.Output(), "Deleted breakpoint 1")
	assert.Contains(t, h.out.ErrorOutput(), "No breakpoint number 1.")
	assert.Contains(t, h.out.ErrorOutput(), "usage: clear <id>")
}

func TestRestartWithArguments(t *testing.T) {
	h := newHarness(t)
	h.enter("restart 1 2 3")
	require.Len(t, h.execs, 1)
	assert.Equal(t, "delve-session prog/main.go 1 2 3", h.execs[0].String())
}

func TestRestartWithoutArguments(t *testing.T) {
	h := newHarness(t)
	h.enter("restart")
	require.Len(t, h.execs, 1)
	assert.Equal(t, "delve-session prog/main.go argv", h.execs[0].String())
	assert.Contains(t, h.out.Output(), "Re exec'ing:\n\tdelve-session prog/main.go argv")
}

func TestSetArgsThenRestart(t *testing.T) {
	h := newHarness(t)
	h.enter("set args 1 2 3", "show args", "restart")
	require.Len(t, h.execs, 1)
	assert.Equal(t, "delve-session prog/main.go 1 2 3", h.execs[0].String())
	assert.Contains(t, h.out.Output(), `is "1 2 3".`)
}

func TestRestartFatalLeavesSessionUsable(t *testing.T) {
	h := newHarness(t)
	h.s.Config.ProgramPath = "blabla"
	h.enter("break 3", "restart", "cont")
	assert.Empty(t, h.execs)
	assert.Equal(t, 1, strings.Count(h.out.ErrorOutput(), "Program blabla doesn't exist"))
	assert.Equal(t, 3, h.program.Line())
}

func TestUnknownCommands(t *testing.T) {
	h := newHarness(t)
	h.enter("frobnicate", "set width 80", "show width", "info frame", "")
	errs := h.out.ErrorOutput()
	assert.Contains(t, errs, `Unknown command: "frobnicate"`)
	assert.Contains(t, errs, "Unknown set command")
	assert.Contains(t, errs, "Unknown show command")
	assert.Contains(t, errs, `"info" must be followed by "breakpoints"`)
}

func TestNoTarget(t *testing.T) {
	h := newHarness(t)
	h.s.Target = nil
	h.enter("break 3", "cont")
	assert.Equal(t, 2, strings.Count(h.out.ErrorOutput(), "The program is not being run."))
}

func TestRunStopsAtQuit(t *testing.T) {
	h := newHarness(t)
	var prompt strings.Builder
	h.s.PromptOut = &prompt
	err := h.s.Run(context.Background(), strings.NewReader("break 3\nquit\nbreak 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.s.Table.Len())
	assert.Equal(t, strings.Repeat(Prompt, 2), prompt.String())
}

func TestRunEndOfInput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.Run(context.Background(), strings.NewReader("help\n")))
	assert.Contains(t, h.out.Output(), "condition <id> [expr]")
}

func TestRest(t *testing.T) {
	assert.Equal(t, "b == 5", rest("cond 1 b == 5", 2))
	assert.Equal(t, "", rest("cond 1", 2))
	assert.Equal(t, "3 if b == 3", rest("  break\t3 if b == 3 ", 1))
}
