// JSON-RPC client for a headless Delve server, with call logging.
package delve

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-delve/delve/service/api"
	"github.com/go-delve/delve/service/rpc2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client is the part of the Delve API a session drives.
// *rpc2.RPCClient implements it.
type Client interface {
	GetState() (*api.DebuggerState, error)
	FindLocation(scope api.EvalScope, loc string, findInstructions bool, substitutePathRules [][2]string) ([]api.Location, string, error)
	CreateBreakpoint(bp *api.Breakpoint) (*api.Breakpoint, error)
	ClearBreakpoint(id int) (*api.Breakpoint, error)
	Continue() <-chan *api.DebuggerState
	Halt() (*api.DebuggerState, error)
	EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error)
	Detach(kill bool) error
	Disconnect(cont bool) error
}

var _ Client = (*rpc2.RPCClient)(nil)

// Dial connects to the headless server at addr.
func Dial(addr string, timeout time.Duration) (Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial delve at %s", addr)
	}
	logger := log.With().Str("component", "rpc").Str("addr", addr).Logger()
	logger.Debug().Msg("connected")
	return NewLoggingClient(rpc2.NewClientFromConn(conn), logger), nil
}

type loggingClient struct {
	Client
	log zerolog.Logger
}

// NewLoggingClient wraps c so every call is logged at debug level.
func NewLoggingClient(c Client, logger zerolog.Logger) Client {
	return &loggingClient{Client: c, log: logger}
}

func summarizeState(state *api.DebuggerState) string {
	if state == nil {
		return "nil"
	}
	if state.Exited {
		return fmt.Sprintf("exited status=%d", state.ExitStatus)
	}
	if state.Running {
		return "running"
	}
	if th := state.CurrentThread; th != nil {
		if th.Breakpoint != nil {
			return fmt.Sprintf("thread=%d %s:%d bp=%d", th.ID, th.File, th.Line, th.Breakpoint.ID)
		}
		return fmt.Sprintf("thread=%d %s:%d", th.ID, th.File, th.Line)
	}
	return "stopped"
}

func (c *loggingClient) GetState() (*api.DebuggerState, error) {
	c.log.Debug().Msg("GetState")
	state, err := c.Client.GetState()
	c.log.Debug().Str("state", summarizeState(state)).Err(err).Msg("GetState result")
	return state, err
}

func (c *loggingClient) FindLocation(scope api.EvalScope, loc string, findInstructions bool, substitutePathRules [][2]string) ([]api.Location, string, error) {
	c.log.Debug().Str("loc", loc).Bool("findInstructions", findInstructions).Msg("FindLocation")
	locs, s, err := c.Client.FindLocation(scope, loc, findInstructions, substitutePathRules)
	c.log.Debug().Int("locs", len(locs)).Err(err).Msg("FindLocation result")
	return locs, s, err
}

func (c *loggingClient) CreateBreakpoint(bp *api.Breakpoint) (*api.Breakpoint, error) {
	c.log.Debug().Str("file", bp.File).Int("line", bp.Line).Uint64("addr", bp.Addr).Msg("CreateBreakpoint")
	created, err := c.Client.CreateBreakpoint(bp)
	if created != nil {
		c.log.Debug().Int("id", created.ID).Str("file", created.File).Int("line", created.Line).Err(err).Msg("CreateBreakpoint result")
	} else {
		c.log.Debug().Err(err).Msg("CreateBreakpoint result")
	}
	return created, err
}

func (c *loggingClient) ClearBreakpoint(id int) (*api.Breakpoint, error) {
	c.log.Debug().Int("id", id).Msg("ClearBreakpoint")
	bp, err := c.Client.ClearBreakpoint(id)
	c.log.Debug().Err(err).Msg("ClearBreakpoint result")
	return bp, err
}

func (c *loggingClient) Continue() <-chan *api.DebuggerState {
	c.log.Debug().Msg("Continue")
	ch := c.Client.Continue()
	out := make(chan *api.DebuggerState, 1)
	go func() {
		state, ok := <-ch
		if ok && state != nil {
			c.log.Debug().Str("state", summarizeState(state)).AnErr("stateErr", state.Err).Msg("Continue result")
		}
		out <- state
	}()
	return out
}

func (c *loggingClient) Halt() (*api.DebuggerState, error) {
	c.log.Debug().Msg("Halt")
	state, err := c.Client.Halt()
	c.log.Debug().Str("state", summarizeState(state)).Err(err).Msg("Halt result")
	return state, err
}

func (c *loggingClient) EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error) {
	c.log.Debug().Str("expr", expr).Int64("goroutine", scope.GoroutineID).Msg("EvalVariable")
	v, err := c.Client.EvalVariable(scope, expr, cfg)
	if v != nil {
		c.log.Debug().Str("name", v.Name).Str("value", v.Value).Err(err).Msg("EvalVariable result")
	} else {
		c.log.Debug().Err(err).Msg("EvalVariable result")
	}
	return v, err
}

func (c *loggingClient) Detach(kill bool) error {
	c.log.Debug().Bool("kill", kill).Msg("Detach")
	err := c.Client.Detach(kill)
	c.log.Debug().Err(err).Msg("Detach result")
	return err
}

func (c *loggingClient) Disconnect(cont bool) error {
	c.log.Debug().Bool("cont", cont).Msg("Disconnect")
	err := c.Client.Disconnect(cont)
	c.log.Debug().Err(err).Msg("Disconnect result")
	return err
}

// IsExitError reports whether err is Delve's "Process N has exited with
// status M". Delve sometimes delivers an exit through state.Err instead of
// state.Exited.
func IsExitError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "has exited with status")
}
