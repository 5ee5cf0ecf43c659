// Start and stop a headless Delve server for the debuggee.
package delve

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const listenPrefix = "API server listening at: "

// StartOptions describe how to launch the debuggee under Delve.
type StartOptions struct {
	// DlvPath overrides the dlv lookup.
	DlvPath string
	// Target is a compiled binary, a .go file or a package directory.
	Target string
	// Args are passed to the debuggee.
	Args []string
	// BuildFlags are passed to "dlv debug".
	BuildFlags string
	// StateDir receives the addr and pid files. Empty disables them.
	StateDir string
	// Timeout bounds the wait for the listen address.
	Timeout time.Duration
}

// Server is a running headless Delve.
type Server struct {
	Addr string
	Pid  int

	cmd      *exec.Cmd
	stateDir string
	stopped  bool
}

// FindDlv locates the dlv binary in PATH or GOPATH/bin.
func FindDlv() (string, error) {
	if path, err := exec.LookPath("dlv"); err == nil {
		return path, nil
	}
	out, err := exec.Command("go", "env", "GOPATH").Output()
	if err != nil {
		return "", errors.Wrap(err, "dlv not in PATH and could not get GOPATH")
	}
	gopath := strings.TrimSpace(string(out))
	if gopath == "" {
		return "", errors.New("dlv not in PATH and GOPATH is empty")
	}
	if idx := strings.IndexAny(gopath, ":;"); idx >= 0 {
		gopath = gopath[:idx]
	}
	path := filepath.Join(gopath, "bin", "dlv")
	if _, err := os.Stat(path); err != nil {
		return "", errors.Errorf("dlv not in PATH and not found at %s: run 'go install github.com/go-delve/delve/cmd/dlv@latest'", path)
	}
	return path, nil
}

// launchMode picks "exec" for compiled binaries and "debug" for sources.
func launchMode(target string) string {
	if strings.HasSuffix(target, ".go") {
		return "debug"
	}
	fi, err := os.Stat(target)
	if err != nil || fi.IsDir() {
		return "debug"
	}
	if fi.Mode().Perm()&0111 != 0 {
		return "exec"
	}
	return "debug"
}

// dlvArgs builds the dlv command line for opts, writing a debug build of
// sources to output.
func dlvArgs(opts StartOptions, output string) []string {
	args := []string{"--headless", "--api-version=2", "--listen=127.0.0.1:0"}
	switch launchMode(opts.Target) {
	case "exec":
		args = append(args, "exec", opts.Target)
	default:
		args = append(args, "debug", "--output", output)
		if opts.BuildFlags != "" {
			args = append(args, "--build-flags="+opts.BuildFlags)
		}
		args = append(args, opts.Target)
	}
	if len(opts.Args) > 0 {
		args = append(args, "--")
		args = append(args, opts.Args...)
	}
	return args
}

// Start launches dlv for opts.Target and waits until it listens.
func Start(ctx context.Context, opts StartOptions) (*Server, error) {
	dlvPath := opts.DlvPath
	if dlvPath == "" {
		p, err := FindDlv()
		if err != nil {
			return nil, err
		}
		dlvPath = p
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	debugBin := filepath.Join(os.TempDir(), "dlv-"+strconv.FormatInt(time.Now().UnixNano(), 10))

	// dlv's stdout goes to a file, not a pipe: the debuggee inherits it and a
	// pipe nobody drains would block or SIGPIPE it.
	tmpOut, err := os.CreateTemp("", "dlv-stdout-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp file for dlv stdout")
	}
	tmpPath := tmpOut.Name()
	defer os.Remove(tmpPath)

	cmd := exec.Command(dlvPath, dlvArgs(opts, debugBin)...)
	cmd.Stderr = os.Stderr
	cmd.Stdout = tmpOut
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	log.Debug().Str("dlv", dlvPath).Strs("args", cmd.Args[1:]).Msg("starting delve")
	if err := cmd.Start(); err != nil {
		tmpOut.Close()
		return nil, errors.Wrap(err, "start dlv")
	}
	tmpOut.Close()

	addr, err := waitListening(ctx, tmpPath, timeout)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	s := &Server{Addr: addr, Pid: cmd.Process.Pid, cmd: cmd, stateDir: opts.StateDir}
	if err := s.writeState(); err != nil {
		log.Warn().Err(err).Msg("could not write delve state files")
	}
	log.Info().Str("addr", addr).Int("pid", s.Pid).Msg("headless dlv started")
	return s, nil
}

// waitListening polls dlv's output file for the listen address.
func waitListening(ctx context.Context, path string, timeout time.Duration) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open dlv output file")
	}
	defer f.Close()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", errors.Wrap(err, "seek dlv output")
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, listenPrefix) {
				return strings.TrimSpace(line[len(listenPrefix):]), nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", errors.New("timed out waiting for dlv to start")
}

func (s *Server) writeState() error {
	if s.stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.stateDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.stateDir, "addr"), []byte(s.Addr+"\n"), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.stateDir, "pid"), []byte(strconv.Itoa(s.Pid)+"\n"), 0644)
}

// Stop terminates the server if it is still running and removes its state
// files.
func (s *Server) Stop() error {
	if s.stateDir != "" {
		os.Remove(filepath.Join(s.stateDir, "addr"))
		os.Remove(filepath.Join(s.stateDir, "pid"))
	}
	if s.stopped || s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	s.stopped = true
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Debug().Err(err).Msg("signal dlv (process may have already exited)")
	}
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = s.cmd.Process.Kill()
		<-done
	}
	return nil
}
