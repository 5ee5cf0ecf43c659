// Process replacement.
package restart

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// Executor replaces the current process image. Exec returns only on failure.
type Executor interface {
	Exec(cmd Command) error
}

// Resolver is implemented by executors that can tell, without side effects,
// whether cmd could be exec'd. Restart consults it before tearing anything
// down.
type Resolver interface {
	Resolve(cmd Command) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(cmd Command) error

func (f ExecutorFunc) Exec(cmd Command) error {
	return f(cmd)
}

// SyscallExecutor execs cmd through the PATH with the current environment.
type SyscallExecutor struct{}

// Resolve looks up the first word of cmd in the PATH.
func (SyscallExecutor) Resolve(cmd Command) (string, error) {
	argv := cmd.Argv()
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return "", errors.Wrapf(err, "look up %s", argv[0])
	}
	return path, nil
}

func (e SyscallExecutor) Exec(cmd Command) error {
	path, err := e.Resolve(cmd)
	if err != nil {
		return err
	}
	return errors.Wrapf(syscall.Exec(path, cmd.Argv(), os.Environ()), "exec %s", path)
}
