package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
)

type Router struct {
	commands map[string]core.Command
}

var _ core.CmdRouter = (*Router)(nil)

func New(commands []core.Command) *Router {
	c := &Router{
		commands: make(map[string]core.Command),
	}

	for _, cmd := range commands {
		c.Register(cmd)
	}
	return c
}

// Register adds cmd, replacing any command with the same name.
func (c *Router) Register(cmd core.Command) {
	c.commands[cmd.Name()] = cmd
}

func (c *Router) Execute(ctx context.Context, userID uuid.UUID, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s (try /help)", name), true
	}

	result, err := cmd.Execute(ctx, userID, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	return result, true
}

// ListCommands returns the registered commands sorted by name.
func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name() < res[j].Name()
	})
	return res
}
