// Package session records the launch identity of the debuggee once at
// startup and holds the relaunch arguments.
package session

import (
	"os"

	"github.com/pkg/errors"
)

// DefaultToolName is used in messages that name this debugger.
const DefaultToolName = "delve-session"

// DefaultInterpreter runs a program that is not itself executable.
var DefaultInterpreter = []string{"go", "run"}

// Config is owned by the debug session. Every field except Args is set at
// startup and only read afterwards.
type Config struct {
	// ProgramPath is the debuggee as given on the command line.
	ProgramPath string
	// FallbackProgramName is the process's own invocation name, used when
	// ProgramPath is unset.
	FallbackProgramName string
	// InitialDir is the working directory at startup.
	InitialDir string
	// RunnerScript is the executable that launched the debugger as a
	// standalone tool. Empty when the debugger is used as a library.
	RunnerScript string
	// RunnerFlags are the runner's own flags as first given, repeated on
	// relaunch so the new session is configured like this one.
	RunnerFlags []string
	// Interpreter is prefixed to programs that are not executable.
	Interpreter []string
	// ToolName names the debugger in warnings.
	ToolName string

	// Args is the argv handed to the runner on relaunch, program first.
	Args []string
}

// Option customizes a Config built by FromEnvironment.
type Option func(*Config)

// WithRunnerScript records the runner that launched the debugger.
func WithRunnerScript(path string) Option {
	return func(c *Config) {
		c.RunnerScript = path
	}
}

// WithRunnerFlags records the flags the runner was started with.
func WithRunnerFlags(flags []string) Option {
	return func(c *Config) {
		c.RunnerFlags = append([]string(nil), flags...)
	}
}

// WithInterpreter overrides DefaultInterpreter.
func WithInterpreter(words []string) Option {
	return func(c *Config) {
		if len(words) > 0 {
			c.Interpreter = append([]string(nil), words...)
		}
	}
}

// WithToolName overrides DefaultToolName.
func WithToolName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.ToolName = name
		}
	}
}

// FromEnvironment records the launch identity of the current process.
// program may be empty, in which case restarts fall back to os.Args[0].
func FromEnvironment(program string, args []string, opts ...Option) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "get working directory")
	}
	c := &Config{
		ProgramPath: program,
		InitialDir:  wd,
		Interpreter: append([]string(nil), DefaultInterpreter...),
		ToolName:    DefaultToolName,
	}
	if len(os.Args) > 0 {
		c.FallbackProgramName = os.Args[0]
	}
	if program != "" {
		c.Args = append([]string{program}, args...)
	} else {
		c.Args = append([]string(nil), args...)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetArgs replaces the program arguments used by the next restart. The
// program head of Args is kept; with no head, args becomes the whole argv.
func (c *Config) SetArgs(args []string) {
	if len(c.Args) == 0 {
		c.Args = append([]string(nil), args...)
		return
	}
	c.Args = append([]string{c.Args[0]}, args...)
}

// ArgsSnapshot returns a copy of Args. A restart takes it once and never
// re-reads Args afterwards.
func (c *Config) ArgsSnapshot() []string {
	return append([]string(nil), c.Args...)
}

// ProgramArgs returns the arguments after the program head of Args.
func (c *Config) ProgramArgs() []string {
	if len(c.Args) == 0 {
		return nil
	}
	return append([]string(nil), c.Args[1:]...)
}
