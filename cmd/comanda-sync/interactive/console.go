// Package interactive provides the interactive command-line interface for
// the comanda-sync demo terminal.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/comanda-pos/comanda-go/pkg/realtime"
)

// Console handles interactive mode for comanda-sync.
type Console struct {
	client  *realtime.Client
	backend *Backend
	env     *Environment
	names   []string
	rl      *readline.Instance
}

// New creates a new interactive console over a started client and its
// simulated backend.
func New(client *realtime.Client, backend *Backend, env *Environment, names []string) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sync> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{
		client:  client,
		backend: backend,
		env:     env,
		names:   names,
		rl:      rl,
	}

	client.OnChannelStateChange(c.displayStateChange)

	return c, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "notify", "n":
			c.cmdNotify(args)

		case "drop":
			c.cmdDrop()

		case "timeout":
			c.cmdTimeout()

		case "offline":
			c.cmdOffline()

		case "online":
			c.cmdOnline()

		case "silent":
			c.cmdSilent(args)

		case "active":
			c.cmdActive(true)

		case "inactive":
			c.cmdActive(false)

		case "retry":
			c.cmdRetry(ctx)

		case "status", "s":
			c.cmdStatus()

		case "resources", "res":
			c.cmdResources()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Comanda Sync Commands:
  Backend simulation:
    notify <resource> [n]  - Push n change notifications (default 1)
    drop                   - Kill the live channel with a transport error
    timeout                - Kill the live channel with a timeout
    offline                - Make the backend unreachable
    online                 - Restore the backend and fire connectivity-restored
    silent on|off          - New channels never reach active (watchdog demo)

  Consumer environment:
    active                 - Consumer becomes visible again
    inactive               - Consumer goes inactive (backgrounded)

  Client:
    retry                  - Retry a failed initial load
    status                 - Show client and backend state
    resources              - Show per-resource backend vs applied versions

  General:
    help                   - Show this help
    quit                   - Exit`)
}

// cmdNotify pushes change notifications for a resource.
func (c *Console) cmdNotify(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: notify <resource> [count]")
		fmt.Fprintf(c.rl.Stdout(), "  Resources: %s\n", strings.Join(c.names, ", "))
		return
	}

	name := args[0]
	count := 1
	if len(args) >= 2 {
		if _, err := fmt.Sscanf(args[1], "%d", &count); err != nil || count < 1 {
			fmt.Fprintf(c.rl.Stdout(), "Invalid count: %s\n", args[1])
			return
		}
	}

	var version int
	for i := 0; i < count; i++ {
		v, err := c.backend.Change(name)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
			return
		}
		version = v
	}
	fmt.Fprintf(c.rl.Stdout(), "Pushed %d notification(s), %s now at version %d\n",
		count, name, version)
}

// cmdDrop kills the live channel with a transport error.
func (c *Console) cmdDrop() {
	if !c.backend.Drop() {
		fmt.Fprintln(c.rl.Stdout(), "No live channel to drop")
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Channel dropped (CHANNEL_ERROR)")
}

// cmdTimeout kills the live channel with a timeout.
func (c *Console) cmdTimeout() {
	if !c.backend.Timeout() {
		fmt.Fprintln(c.rl.Stdout(), "No live channel to time out")
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Channel timed out (TIMED_OUT)")
}

// cmdOffline makes the backend unreachable. Reconnect attempts will fail
// until the online command restores it.
func (c *Console) cmdOffline() {
	if c.backend.Unreachable() {
		fmt.Fprintln(c.rl.Stdout(), "Backend already offline")
		return
	}
	c.backend.SetUnreachable(true)
	c.backend.Drop()
	fmt.Fprintln(c.rl.Stdout(), "Backend offline; channel dropped, reconnects will fail")
}

// cmdOnline restores the backend and fires the connectivity-restored signal,
// which should trigger an immediate reconnect with fresh backoff.
func (c *Console) cmdOnline() {
	c.backend.SetUnreachable(false)
	c.env.ConnectivityRestored()
	fmt.Fprintln(c.rl.Stdout(), "Backend online; connectivity-restored signal fired")
}

// cmdSilent controls whether new channels ever reach active.
func (c *Console) cmdSilent(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: silent on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.backend.SetSilent(true)
		fmt.Fprintln(c.rl.Stdout(), "New channels will stall; watchdog will arm fallback polling")
	case "off":
		c.backend.SetSilent(false)
		fmt.Fprintln(c.rl.Stdout(), "New channels will join normally")
	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: silent on|off")
	}
}

// cmdActive flips consumer visibility.
func (c *Console) cmdActive(active bool) {
	if !c.env.SetActive(active) {
		fmt.Fprintln(c.rl.Stdout(), "No change")
		return
	}
	if active {
		fmt.Fprintln(c.rl.Stdout(), "Consumer active; deferred reconnects resume")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Consumer inactive; pending reconnects parked")
	}
}

// cmdRetry retries a failed initial load.
func (c *Console) cmdRetry(ctx context.Context) {
	if err := c.client.RetryInitialLoad(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Retry failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Initial load complete, channel opening")
}

// cmdStatus shows client and backend state.
func (c *Console) cmdStatus() {
	fetches, notifies := c.backend.Stats()

	fmt.Fprintln(c.rl.Stdout(), "\nSync Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Client ID:       %s\n", c.client.ID())
	fmt.Fprintf(c.rl.Stdout(), "  Channel:         %s\n", c.client.ChannelState())
	fmt.Fprintf(c.rl.Stdout(), "  Initial load:    %s\n", c.client.LoadState())
	if err := c.client.LoadErr(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "  Load error:      %v\n", err)
	}
	fmt.Fprintf(c.rl.Stdout(), "  Reconnects:      %d attempt(s)\n", c.client.ReconnectAttempts())
	fmt.Fprintf(c.rl.Stdout(), "  Fallback poll:   %v\n", c.client.PollerActive())
	fmt.Fprintf(c.rl.Stdout(), "  Consumer active: %v\n", c.env.IsConsumerActive())
	fmt.Fprintf(c.rl.Stdout(), "  Backend online:  %v\n", !c.backend.Unreachable())
	fmt.Fprintf(c.rl.Stdout(), "  Fetches served:  %d\n", fetches)
	fmt.Fprintf(c.rl.Stdout(), "  Notifications:   %d\n", notifies)
	fmt.Fprintln(c.rl.Stdout())
}

// cmdResources shows per-resource backend vs applied versions, flagging any
// resource whose local copy is behind.
func (c *Console) cmdResources() {
	names := append([]string{}, c.names...)
	sort.Strings(names)

	fmt.Fprintln(c.rl.Stdout(), "\nResources")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  %-12s %8s %8s  %s\n", "Resource", "Backend", "Applied", "State")
	for _, name := range names {
		backendVersion := c.backend.Version(name)
		appliedVersion := 0
		if snap, ok := c.backend.Applied(name); ok {
			appliedVersion = snap.Version
		}

		state := "current"
		if appliedVersion < backendVersion {
			state = "STALE"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %-12s %8d %8d  %s\n",
			name, backendVersion, appliedVersion, state)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// displayStateChange displays channel state transitions above the prompt.
func (c *Console) displayStateChange(oldState, newState realtime.ChannelState) {
	fmt.Fprintf(c.rl.Stdout(), "\n[%s] Channel %s -> %s\n",
		time.Now().Format("15:04:05"), oldState, newState)
	c.rl.Refresh()
}
