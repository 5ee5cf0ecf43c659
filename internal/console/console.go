// User-visible text channel: a message stream and a separate error stream.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console buffers user-visible output. Flush must be called before anything
// that discards the process, such as exec.
type Console struct {
	mu  sync.Mutex
	out *bufio.Writer
	err *bufio.Writer
}

// New returns a console writing messages to out and errors to errw.
func New(out, errw io.Writer) *Console {
	return &Console{out: bufio.NewWriter(out), err: bufio.NewWriter(errw)}
}

// Print writes one message line.
func (c *Console) Print(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	writeLine(c.out, msg)
}

// Printf formats and writes one message line.
func (c *Console) Printf(format string, args ...any) {
	c.Print(fmt.Sprintf(format, args...))
}

// Error writes one line to the error stream. The message stream is flushed
// first so interleaving on a shared terminal stays in order.
func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.out.Flush()
	writeLine(c.err, msg)
	_ = c.err.Flush()
}

// Errorf formats and writes one error line.
func (c *Console) Errorf(format string, args ...any) {
	c.Error(fmt.Sprintf(format, args...))
}

// Flush writes out everything buffered on both streams.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.out.Flush(); err != nil {
		return err
	}
	return c.err.Flush()
}

func writeLine(w *bufio.Writer, msg string) {
	_, _ = w.WriteString(strings.TrimRight(msg, "\n"))
	_ = w.WriteByte('\n')
}

// Recorder keeps messages and errors in separate queues, for tests and for
// callers that render output themselves.
type Recorder struct {
	Messages []string
	Errors   []string
	Flushes  int
}

func (r *Recorder) Print(msg string) { r.Messages = append(r.Messages, msg) }

func (r *Recorder) Printf(format string, args ...any) { r.Print(fmt.Sprintf(format, args...)) }

func (r *Recorder) Error(msg string) { r.Errors = append(r.Errors, msg) }

func (r *Recorder) Errorf(format string, args ...any) { r.Error(fmt.Sprintf(format, args...)) }

func (r *Recorder) Flush() error {
	r.Flushes++
	return nil
}

// Output returns all messages joined by newlines.
func (r *Recorder) Output() string {
	return strings.Join(r.Messages, "\n")
}

// ErrorOutput returns all errors joined by newlines.
func (r *Recorder) ErrorOutput() string {
	return strings.Join(r.Errors, "\n")
}
