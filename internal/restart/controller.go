// Package restart tears down the current debugger process and relaunches the
// debuggee with the recorded session configuration.
package restart

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/glthr/delve-session/internal/session"
)

// Reporter is the user-visible text channel.
type Reporter interface {
	Print(msg string)
	Error(msg string)
	Flush() error
}

// FatalError aborts a restart. Nothing was exec'd and the session is as it
// was before the command.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return e.Msg
}

// Controller validates the session configuration, builds the relaunch
// command and execs it.
type Controller struct {
	Config *session.Config
	Fs     afero.Fs
	Chdir  func(dir string) error
	// Getwd reports the directory to return to when the restart does not
	// happen. Nil leaves the directory as Chdir set it.
	Getwd    func() (string, error)
	Executor Executor
	Out      Reporter
	// BeforeExec runs after validation and command lookup, right before the
	// final flush. A failure is reported as a warning.
	BeforeExec func() error
}

// New returns a controller that checks the real file system, changes the
// real working directory and replaces the process with syscall.Exec.
func New(cfg *session.Config, out Reporter) *Controller {
	return &Controller{
		Config:   cfg,
		Fs:       afero.NewOsFs(),
		Chdir:    os.Chdir,
		Getwd:    os.Getwd,
		Executor: SyscallExecutor{},
		Out:      out,
	}
}

func (c *Controller) fatal(format string, args ...any) error {
	err := &FatalError{Msg: fmt.Sprintf(format, args...)}
	c.Out.Error(err.Msg)
	log.Debug().Str("reason", err.Msg).Msg("restart aborted")
	return err
}

func (c *Controller) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Out.Print(msg)
	log.Debug().Str("warning", msg).Msg("restart")
}

// program returns the debuggee to relaunch.
func (c *Controller) program() (string, bool) {
	if c.Config.ProgramPath != "" {
		return c.Config.ProgramPath, true
	}
	if c.Config.FallbackProgramName != "" {
		return c.Config.FallbackProgramName, true
	}
	return "", false
}

// resolve finds the program on the file system. A relative path is looked up
// under the initial directory, where it was recorded, then as given.
func (c *Controller) resolve(program string) (string, bool) {
	candidates := []string{program}
	if !filepath.IsAbs(program) && c.Config.InitialDir != "" {
		candidates = []string{filepath.Join(c.Config.InitialDir, program), program}
	}
	for _, p := range candidates {
		if _, err := c.Fs.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (c *Controller) executable(path string) bool {
	fi, err := c.Fs.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0
}

// Restart relaunches the debuggee. Explicit args replace the configured
// arguments for this call only. On success it does not return; the returned
// error is a *FatalError when validation or command lookup failed, or the
// exec failure. In every failing case the working directory is restored.
func (c *Controller) Restart(args []string) (err error) {
	// Taken once; Config.Args is not read again below.
	argv := c.Config.ArgsSnapshot()

	program, ok := c.program()
	if !ok {
		return c.fatal("Don't know name of debugged program")
	}
	resolved, ok := c.resolve(program)
	if !ok {
		return c.fatal("Program %s doesn't exist", program)
	}

	if c.Getwd != nil {
		if prev, werr := c.Getwd(); werr == nil {
			defer func() {
				if err != nil {
					_ = c.Chdir(prev)
				}
			}()
		}
	}

	// word names the program in the command. If the initial directory is
	// gone, a relative word would resolve against the current directory, so
	// the path found on disk is used instead.
	word := program
	if err := c.Chdir(c.Config.InitialDir); err != nil {
		c.warn("Failed to change initial directory %s", c.Config.InitialDir)
		word = resolved
	}

	if len(args) > 0 {
		argv = append([]string{program}, args...)
	}
	if len(argv) > 0 && filepath.Clean(argv[0]) == filepath.Clean(program) {
		argv[0] = word
	}

	var cmd Command
	if c.Config.RunnerScript != "" {
		cmd = append(Command{c.Config.RunnerScript}, c.Config.RunnerFlags...)
		cmd = append(cmd, argv...)
	} else {
		c.warn("%s was not called from the outset...", c.Config.ToolName)
		progArgs := withoutProgram(argv, word)
		if !c.executable(resolved) {
			c.warn("Program %s doesn't seem to be executable...", program)
			c.warn("We'll add a call to the interpreter.")
			cmd = append(Command{}, c.Config.Interpreter...)
			cmd = append(cmd, word)
		} else {
			cmd = Command{word}
		}
		cmd = append(cmd, progArgs...)
	}

	// Nothing has been torn down yet; a command that cannot be found leaves
	// the session as it was.
	if r, ok := c.Executor.(Resolver); ok {
		if _, rerr := r.Resolve(cmd); rerr != nil {
			return c.fatal("Cannot re-exec %s: %v", cmd.String(), rerr)
		}
	}

	if c.BeforeExec != nil {
		if err := c.BeforeExec(); err != nil {
			c.warn("Failed to save session state: %v", err)
		}
	}

	c.Out.Print("Re exec'ing:\n\t" + cmd.String())
	if err := c.Out.Flush(); err != nil {
		log.Warn().Err(err).Msg("flush before exec")
	}
	log.Info().Stringer("command", cmd).Msg("re-exec")
	return c.Executor.Exec(cmd)
}

// withoutProgram drops the program head from argv when present.
func withoutProgram(argv []string, program string) []string {
	if len(argv) > 0 && filepath.Clean(argv[0]) == filepath.Clean(program) {
		return argv[1:]
	}
	return argv
}
