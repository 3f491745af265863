package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/log"
)

const recallCommand = "/recall "

// ReadLine is an interactive shell over the command router. Lines without a
// leading slash are looked up in memory.
type ReadLine struct {
	router core.CmdRouter
	userID uuid.UUID
	rl     *readline.Instance
}

func NewReadLine(router core.CmdRouter, userID uuid.UUID, cfg *config.AppConfig) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "memory> ",
		HistoryFile:     cfg.GetHistoryPath(),
		AutoComplete:    completer(router),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		router: router,
		userID: userID,
		rl:     rl,
	}, nil
}

func completer(router core.CmdRouter) readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0)
	for _, cmd := range router.ListCommands() {
		items = append(items, readline.PcItem("/"+cmd.Name()))
	}
	return readline.NewPrefixCompleter(items...)
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("memory shell started. Type /help for commands, 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		reply, quit := Handle(ctx, r.router, r.userID, line)
		if quit {
			return nil
		}
		if reply != "" {
			fmt.Fprint(r.rl.Stdout(), ensureNewline(reply))
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}

// Handle runs one shell line and reports whether the shell should exit.
func Handle(ctx context.Context, router core.CmdRouter, userID uuid.UUID, line string) (string, bool) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return "", false
	case "exit", "quit":
		return "", true
	}

	if !strings.HasPrefix(line, "/") {
		line = recallCommand + line
	}

	reply, handled := router.Execute(ctx, userID, line)
	if !handled {
		log.FromCtx(ctx).Debug().Str("line", line).Msg("line not handled")
		return "", false
	}
	return reply, false
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
