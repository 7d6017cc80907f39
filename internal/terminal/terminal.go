// Package terminal implements the local stdin/stdout console: a debug
// interface distinct from the admin websocket, meant for the operator
// running the daemon directly rather than a remote UI. Every command runs
// on the event-loop thread and blocks the console until it replies.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/neopult/neopult/internal/loop"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/registry"
)

// Client owns the stdin scanner goroutine and prints registry notifications
// as they arrive.
type Client struct {
	logger *logging.Logger
	reg    *registry.Registry
	lp     *loop.Loop

	in  io.Reader
	out io.Writer
}

// New builds a terminal client reading from in and writing replies and
// notifications to out.
func New(logger *logging.Logger, reg *registry.Registry, lp *loop.Loop, in io.Reader, out io.Writer) *Client {
	c := &Client{logger: logger, reg: reg, lp: lp, in: in, out: out}
	reg.Subscribe(registry.ObserverFunc(c.printNotification))
	return c
}

// Run reads commands line by line until in is exhausted or returns an
// error. Meant to run on its own goroutine; it never touches registry or
// window-manager state directly, only through commands posted to the loop.
func (c *Client) Run() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(c.out, c.execute(line))
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("error reading line from stdin: " + err.Error())
	}
}

// execute runs one command on the loop thread and blocks for its reply,
// mirroring the CliCommand/oneshot-reply pattern the console has always
// used to stay serialized with every other event source.
func (c *Client) execute(command string) string {
	reply := make(chan string, 1)

	c.lp.Post(func() {
		reply <- c.handle(command)
	})

	return <-reply
}

func (c *Client) handle(command string) string {
	switch {
	case command == "actions":
		return strings.Join(c.listActions(), "\n")
	case command == "statuses":
		return strings.Join(c.listStatuses(), "\n")
	case strings.HasPrefix(command, "call "):
		return c.callAction(strings.TrimPrefix(command, "call "))
	default:
		return "unknown command: " + command
	}
}

func (c *Client) listActions() []string {
	var out []string
	for _, p := range c.reg.PluginInstances() {
		for _, m := range p.Modules() {
			for _, a := range m.Actions() {
				id := registry.ActionIdentifier{PluginInstance: p.Name, Module: m.Name, Action: a.Name}
				out = append(out, id.String())
			}
		}
	}
	return out
}

func (c *Client) listStatuses() []string {
	var out []string
	for _, p := range c.reg.PluginInstances() {
		for _, m := range p.Modules() {
			id := registry.ModuleIdentifier{PluginInstance: p.Name, Module: m.Name}
			status := "<none>"
			if m.Status != nil {
				status = *m.Status
			}
			out = append(out, id.String()+": "+status)
		}
	}
	return out
}

func (c *Client) callAction(identifier string) string {
	parts := strings.Split(identifier, "::")
	if len(parts) != 3 {
		return "invalid action identifier: " + identifier
	}
	id := registry.ActionIdentifier{PluginInstance: parts[0], Module: parts[1], Action: parts[2]}

	action, err := c.reg.Action(id)
	if err != nil {
		return "error when calling action: " + err.Error()
	}
	if err := action.Callback(); err != nil {
		return fmt.Sprintf("error when calling action: %v", err)
	}
	return "action called successfully"
}

func (c *Client) printNotification(n registry.Notification) {
	switch v := n.(type) {
	case registry.ModuleStatusUpdate:
		id := registry.ModuleIdentifier{PluginInstance: v.PluginInstance, Module: v.Module}
		fmt.Fprintf(c.out, "new module status for %s: %s\n", id, formatOptional(v.NewStatus))
	case registry.ModuleMessageUpdate:
		id := registry.ModuleIdentifier{PluginInstance: v.PluginInstance, Module: v.Module}
		if v.NewMessage != nil {
			fmt.Fprintf(c.out, "new module message for %s: '%s'\n", id, *v.NewMessage)
		} else {
			fmt.Fprintf(c.out, "cleared message for module %s\n", id)
		}
	case registry.ModuleActiveActionsUpdate:
		id := registry.ModuleIdentifier{PluginInstance: v.PluginInstance, Module: v.Module}
		fmt.Fprintf(c.out, "new active actions for %s: %v\n", id, v.NewActiveActions)
	}
}

func formatOptional(s *string) string {
	if s == nil {
		return "<none>"
	}
	return *s
}
