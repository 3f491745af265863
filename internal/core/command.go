package core

import (
	"context"

	"github.com/google/uuid"
)

type CmdRouter interface {
	Execute(ctx context.Context, userID uuid.UUID, input string) (string, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error)
}
