// Package interactive provides the operator console of pvserver.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/server"
)

// Peer is the connection ID the console uses for its requests.
const Peer = "console"

// Simulation is the producer loop controlled by the sim command.
type Simulation interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	Len() int
}

// Console is an interactive client of a server. Monitors subscribe to the
// server's loopback transport.
type Console struct {
	srv  *server.Server
	loop *server.Loopback
	sim  Simulation
	rl   *readline.Instance
	out  io.Writer

	mu       sync.Mutex
	monitors map[string]func()
}

// New creates a console reading commands from the terminal. sim may be nil.
func New(srv *server.Server, loop *server.Loopback, sim Simulation) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pv> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(srv, loop, sim, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(srv *server.Server, loop *server.Loopback, sim Simulation, out io.Writer) *Console {
	return &Console{
		srv:      srv,
		loop:     loop,
		sim:      sim,
		out:      &lockedWriter{w: out},
		monitors: make(map[string]func()),
	}
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, EOF or ctx is done; it then cancels.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.closeMonitors()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether it asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "list", "ls":
		c.cmdList()
	case "exists":
		c.cmdExists(args)
	case "info", "i":
		c.cmdInfo(args)
	case "read", "r", "get":
		c.cmdRead(args)
	case "put", "write", "w":
		c.cmdPut(args)
	case "monitor", "m":
		c.cmdMonitor(args)
	case "unmonitor", "um":
		c.cmdUnmonitor(args)
	case "alias":
		c.cmdAlias(args)
	case "unalias":
		c.cmdUnalias(args)
	case "aliases":
		c.cmdAliases()
	case "sim":
		c.cmdSim(ctx, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
PV Server Commands:
  Inspection:
    list                   - List served PVs
    exists <name>          - Answer a name search
    info <name>            - Show every attribute of a PV
    read <name>            - Read the value and alarm state

  Client requests:
    put <name> <value...>  - Write a value (several values write an array)
    monitor <name> [mask]  - Subscribe to events (mask: value|archive|alarm|property|all)
    unmonitor <name>       - Cancel a monitor

  Names:
    alias <alias> <name>   - Serve a PV under another name
    unalias <alias>        - Remove an alias
    aliases                - List aliases

  Simulation:
    sim start|stop|status  - Control the producer loop

  Other:
    help                   - Show this help
    quit                   - Exit`)
}

func (c *Console) cmdList() {
	pvs := c.srv.PVs()
	if len(pvs) == 0 {
		fmt.Fprintln(c.out, "No PVs")
		return
	}
	for _, p := range pvs {
		a := p.Attributes()
		fmt.Fprintf(c.out, "  %-24s %-8s %3d  %s [%s]\n",
			p.Name(), p.Type(), p.Count(), formatValue(p.Type(), &a), a.Severity)
	}
}

func (c *Console) cmdExists(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: exists <name>")
		return
	}
	fmt.Fprintln(c.out, c.srv.Exists(args[0]))
}

func (c *Console) cmdInfo(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: info <name>")
		return
	}
	p, err := c.srv.Attach(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	a := p.Attributes()
	formatDetails(c.out, p, &a)
}

func (c *Console) cmdRead(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: read <name>")
		return
	}
	p, err := c.srv.Attach(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	snap, err := c.srv.Read(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Read failed: %v\n", err)
		return
	}
	a, err := pv.Decode(&snap, p.Type(), p.Encoding())
	if err != nil {
		fmt.Fprintf(c.out, "Decode failed: %v\n", err)
		return
	}
	formatLine(c.out, args[0], p.Type(), &a)
}

func (c *Console) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: put <name> <value...>")
		fmt.Fprintln(c.out, "  Example: put TEMP:SP 22.5")
		return
	}
	name := args[0]
	p, err := c.srv.Attach(name)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	v, err := ParseWriteValue(p, args[1:])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid value: %v\n", err)
		return
	}

	done := make(chan error, 1)
	status, err := c.srv.Write(Peer, name, v, nil, func(err error) { done <- err })
	switch {
	case err != nil:
		fmt.Fprintf(c.out, "Write failed: %v\n", err)
	case status == pv.WritePending:
		fmt.Fprintln(c.out, "Pending")
		go func() {
			if err := <-done; err != nil {
				fmt.Fprintf(c.out, "Deferred write to %s failed: %v\n", name, err)
				return
			}
			fmt.Fprintf(c.out, "Deferred write to %s completed\n", name)
		}()
	default:
		fmt.Fprintln(c.out, "OK")
	}
}

func (c *Console) cmdMonitor(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: monitor <name> [mask]")
		return
	}
	mask := DefaultMonitorMask
	if len(args) == 2 {
		m, err := ParseMask(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		mask = m
	}
	p, err := c.srv.Attach(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	name := p.Name()

	c.mu.Lock()
	if _, ok := c.monitors[name]; ok {
		c.mu.Unlock()
		fmt.Fprintf(c.out, "Already monitoring %s\n", name)
		return
	}
	typ, enc, out := p.Type(), p.Encoding(), c.out
	c.monitors[name] = c.loop.Subscribe(name, mask, func(u server.Update) {
		a, err := pv.Decode(&u.Snapshot, typ, enc)
		if err != nil {
			fmt.Fprintf(out, "%s: undecodable event: %v\n", u.PV, err)
			return
		}
		fmt.Fprintf(out, "[%s] ", u.Events)
		formatLine(out, u.PV, typ, &a)
	})
	c.mu.Unlock()

	if err := c.srv.InterestRegister(Peer, name); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Monitoring %s (%s)\n", name, mask)
}

func (c *Console) cmdUnmonitor(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: unmonitor <name>")
		return
	}
	name := c.srv.Registry().Resolve(args[0])

	c.mu.Lock()
	cancel, ok := c.monitors[name]
	delete(c.monitors, name)
	c.mu.Unlock()
	if !ok {
		fmt.Fprintf(c.out, "Not monitoring %s\n", args[0])
		return
	}
	cancel()
	if c.loop.Subscribers(name) == 0 {
		// The PV may already be gone; nothing to disable then.
		_ = c.srv.InterestDelete(Peer, name)
	}
	fmt.Fprintf(c.out, "Stopped monitoring %s\n", name)
}

func (c *Console) closeMonitors() {
	c.mu.Lock()
	monitors := c.monitors
	c.monitors = make(map[string]func())
	c.mu.Unlock()
	for _, cancel := range monitors {
		cancel()
	}
}

func (c *Console) cmdAlias(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: alias <alias> <name>")
		return
	}
	if err := c.srv.AddAlias(args[0], args[1]); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s -> %s\n", args[0], args[1])
}

func (c *Console) cmdUnalias(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: unalias <alias>")
		return
	}
	if !c.srv.RemoveAlias(args[0]) {
		fmt.Fprintf(c.out, "No alias %s\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "Removed alias %s\n", args[0])
}

func (c *Console) cmdAliases() {
	aliases := c.srv.Aliases()
	if len(aliases) == 0 {
		fmt.Fprintln(c.out, "No aliases")
		return
	}
	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	for _, alias := range names {
		fmt.Fprintf(c.out, "  %s -> %s\n", alias, aliases[alias])
	}
}

func (c *Console) cmdSim(ctx context.Context, args []string) {
	if c.sim == nil || c.sim.Len() == 0 {
		fmt.Fprintln(c.out, "No simulated PVs")
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: sim start|stop|status")
		return
	}
	switch args[0] {
	case "start":
		c.sim.Start(ctx)
		fmt.Fprintf(c.out, "Simulation running (%d PVs)\n", c.sim.Len())
	case "stop":
		c.sim.Stop()
		fmt.Fprintln(c.out, "Simulation stopped")
	case "status":
		state := "stopped"
		if c.sim.Running() {
			state = "running"
		}
		fmt.Fprintf(c.out, "Simulation %s (%d PVs)\n", state, c.sim.Len())
	default:
		fmt.Fprintln(c.out, "Usage: sim start|stop|status")
	}
}

// lockedWriter serializes monitor output from producer goroutines with
// command output.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
