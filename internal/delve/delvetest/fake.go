// Package delvetest provides an in-memory stand-in for a headless Delve
// server running a straight-line program.
package delvetest

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-delve/delve/service/api"
)

// File is the source file of the fake program.
const File = "/src/conditions/main.go"

// Program executes Lines in order and exits. Locals gives the variables
// visible at each line.
type Program struct {
	Lines  []int
	Locals map[int]map[string]int
	// Spin makes Continue run without stopping until Halt is called.
	Spin bool

	bps       map[int]*api.Breakpoint
	nextID    int
	pos       int
	stoppedAt int
	spinning  chan *api.DebuggerState
	Continues int
	Halts     int
	Evals     []string
	Cleared   []int
	Detached  bool
	Created   []*api.Breakpoint
}

// NewProgram returns a program that runs lines with the given locals.
func NewProgram(lines []int, locals map[int]map[string]int) *Program {
	return &Program{Lines: lines, Locals: locals, bps: map[int]*api.Breakpoint{}, nextID: 1}
}

func (p *Program) GetState() (*api.DebuggerState, error) {
	return &api.DebuggerState{}, nil
}

func (p *Program) FindLocation(_ api.EvalScope, loc string, _ bool, _ [][2]string) ([]api.Location, string, error) {
	spec := loc
	if idx := strings.LastIndex(loc, ":"); idx >= 0 {
		spec = loc[idx+1:]
	}
	line, err := strconv.Atoi(spec)
	if err != nil {
		return nil, "", fmt.Errorf("location %q not found", loc)
	}
	for _, l := range p.Lines {
		if l == line {
			return []api.Location{{
				PC:       uint64(0x1000 + line),
				File:     File,
				Line:     line,
				Function: &api.Function{Name_: "main.main"},
			}}, loc, nil
		}
	}
	return nil, "", fmt.Errorf("could not find %s:%d", File, line)
}

func (p *Program) CreateBreakpoint(bp *api.Breakpoint) (*api.Breakpoint, error) {
	for _, existing := range p.bps {
		if existing.Addr == bp.Addr {
			return nil, fmt.Errorf("Breakpoint exists at %s:%d at %x", existing.File, existing.Line, existing.Addr)
		}
	}
	created := *bp
	if created.ID <= 0 || p.bps[created.ID] != nil {
		created.ID = p.nextID
	}
	if created.ID >= p.nextID {
		p.nextID = created.ID + 1
	}
	p.bps[created.ID] = &created
	p.Created = append(p.Created, &created)
	return &created, nil
}

func (p *Program) ClearBreakpoint(id int) (*api.Breakpoint, error) {
	bp, ok := p.bps[id]
	if !ok {
		return nil, fmt.Errorf("Breakpoint %d does not exist", id)
	}
	delete(p.bps, id)
	p.Cleared = append(p.Cleared, id)
	return bp, nil
}

func (p *Program) breakpointAt(line int) *api.Breakpoint {
	for _, bp := range p.bps {
		if bp.Line == line && !bp.Disabled {
			return bp
		}
	}
	return nil
}

// Continue runs to the next line holding an enabled breakpoint, or exits.
func (p *Program) Continue() <-chan *api.DebuggerState {
	p.Continues++
	ch := make(chan *api.DebuggerState, 1)
	if p.Spin {
		p.spinning = ch
		return ch
	}
	for p.pos < len(p.Lines) {
		line := p.Lines[p.pos]
		p.pos++
		if bp := p.breakpointAt(line); bp != nil {
			th := &api.Thread{
				ID:          1,
				GoroutineID: 1,
				File:        File,
				Line:        line,
				Function:    &api.Function{Name_: "main.main"},
				Breakpoint:  bp,
			}
			p.stoppedAt = line
			ch <- &api.DebuggerState{CurrentThread: th, Threads: []*api.Thread{th}}
			return ch
		}
	}
	p.stoppedAt = 0
	ch <- &api.DebuggerState{Exited: true}
	return ch
}

// Halt stops a spinning Continue where the program is.
func (p *Program) Halt() (*api.DebuggerState, error) {
	p.Halts++
	state := &api.DebuggerState{CurrentThread: &api.Thread{ID: 1, GoroutineID: 1, File: File, Line: p.stoppedAt}}
	if p.spinning != nil {
		p.spinning <- state
		p.spinning = nil
	}
	return state, nil
}

// Line returns the line the program is stopped at, or 0 after exit.
func (p *Program) Line() int {
	return p.stoppedAt
}

// EvalVariable understands "<name> == <int>", "<name> != <int>", "true",
// "false" and "nil". Anything else is a syntax error.
func (p *Program) EvalVariable(_ api.EvalScope, expr string, _ api.LoadConfig) (*api.Variable, error) {
	p.Evals = append(p.Evals, expr)
	switch strings.TrimSpace(expr) {
	case "true", "false":
		return &api.Variable{Name: expr, Kind: reflect.Bool, Value: strings.TrimSpace(expr)}, nil
	case "nil":
		return &api.Variable{Name: expr, Kind: reflect.Ptr, Children: []api.Variable{{Addr: 0}}}, nil
	}
	parts := strings.Fields(expr)
	if len(parts) != 3 || (parts[1] != "==" && parts[1] != "!=") {
		return nil, fmt.Errorf("1:%d: expected operand, found 'EOF'", len(expr))
	}
	v, ok := p.Locals[p.stoppedAt][parts[0]]
	if !ok {
		return nil, fmt.Errorf("could not find symbol value for %s", parts[0])
	}
	want, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("could not find symbol value for %s", parts[2])
	}
	result := v == want
	if parts[1] == "!=" {
		result = !result
	}
	return &api.Variable{Name: expr, Kind: reflect.Bool, Value: strconv.FormatBool(result)}, nil
}

func (p *Program) Detach(kill bool) error {
	p.Detached = true
	return nil
}

func (p *Program) Disconnect(cont bool) error {
	return nil
}
