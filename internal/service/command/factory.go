package command

import (
	"github.com/twohreichel/pisovereign/internal/core"
)

func NewCommands(svc Memories) []core.Command {
	return []core.Command{
		NewRememberCommand(svc),
		NewRecallCommand(svc),
		NewForgetCommand(svc),
		NewMemoriesCommand(svc),
		NewStatsCommand(svc),
	}
}

// NewRouter wires the memory commands plus /help.
func NewRouter(svc Memories) *Router {
	r := New(NewCommands(svc))
	r.Register(NewHelpCommand(r))
	return r
}
