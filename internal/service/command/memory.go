package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/service/memory"
)

const (
	// RememberImportance is used for memories the user asked to keep explicitly.
	RememberImportance float32 = 0.8

	defaultListLimit = 10
)

// Memories is the part of the memory service the commands drive.
type Memories interface {
	Store(ctx context.Context, m core.Memory) (core.Memory, error)
	RetrieveContext(ctx context.Context, userID uuid.UUID, query string) ([]core.SimilarMemory, error)
	Get(ctx context.Context, id uuid.UUID) (*core.Memory, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query core.MemoryQuery) ([]core.Memory, error)
	Stats(ctx context.Context, userID uuid.UUID) (core.MemoryStats, error)
}

var _ Memories = (*memory.Service)(nil)

var errNoMemory = errors.New("no such memory")

// ResolveID accepts a full uuid or the short prefix shown in listings. A
// prefix must match exactly one of the user's memories.
func ResolveID(ctx context.Context, svc Memories, userID uuid.UUID, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		m, err := svc.Get(ctx, id)
		if err != nil {
			return uuid.Nil, err
		}
		if m == nil || m.UserID != userID {
			return uuid.Nil, fmt.Errorf("%w: %s", errNoMemory, ref)
		}
		return id, nil
	}

	all, err := svc.List(ctx, core.NewMemoryQuery().ForUser(userID))
	if err != nil {
		return uuid.Nil, err
	}

	var found []uuid.UUID
	for _, m := range all {
		if strings.HasPrefix(m.ID.String(), strings.ToLower(ref)) {
			found = append(found, m.ID)
		}
	}

	switch len(found) {
	case 0:
		return uuid.Nil, fmt.Errorf("%w: %s", errNoMemory, ref)
	case 1:
		return found[0], nil
	default:
		return uuid.Nil, fmt.Errorf("%q matches %d memories, use a longer id", ref, len(found))
	}
}

type RememberCommand struct {
	svc       Memories
	formatter *ResponseFormatter
}

func NewRememberCommand(svc Memories) *RememberCommand {
	return &RememberCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *RememberCommand) Name() string {
	return "remember"
}

func (c *RememberCommand) Description() string {
	return "Store something in long-term memory"
}

func (c *RememberCommand) Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error) {
	memType := core.MemoryTypeFact
	if len(args) > 0 {
		if t, ok := core.LookupMemoryType(strings.ToLower(args[0])); ok {
			memType = t
			args = args[1:]
		}
	}

	content := strings.Join(args, " ")
	if content == "" {
		return c.formatter.Combine(
			c.formatter.Title("Remember"),
			c.formatter.Usage("/remember [fact|preference|correction|tool_result|context] <text>"),
			c.formatter.Tip("the type defaults to fact"),
		), nil
	}

	m := core.NewMemory(userID, content, memory.Summarize(content), memType).
		WithImportance(RememberImportance)

	stored, err := c.svc.Store(ctx, m)
	if err != nil {
		return "", err
	}

	msg := "Remembered"
	if stored.ID != m.ID {
		msg = "Merged into an existing memory"
	}
	return c.formatter.Combine(
		c.formatter.Success(msg),
		c.formatter.MemoryLine(stored), "\n",
	), nil
}

type RecallCommand struct {
	svc       Memories
	formatter *ResponseFormatter
}

func NewRecallCommand(svc Memories) *RecallCommand {
	return &RecallCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *RecallCommand) Name() string {
	return "recall"
}

func (c *RecallCommand) Description() string {
	return "Show memories relevant to a question"
}

func (c *RecallCommand) Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error) {
	query := strings.Join(args, " ")
	if query == "" {
		return c.formatter.Usage("/recall <question>"), nil
	}

	found, err := c.svc.RetrieveContext(ctx, userID, query)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "No relevant memories found.\n", nil
	}
	return memory.FormatContextForPrompt(found), nil
}

type ForgetCommand struct {
	svc       Memories
	formatter *ResponseFormatter
}

func NewForgetCommand(svc Memories) *ForgetCommand {
	return &ForgetCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *ForgetCommand) Name() string {
	return "forget"
}

func (c *ForgetCommand) Description() string {
	return "Delete a memory by id"
}

func (c *ForgetCommand) Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error) {
	if len(args) != 1 {
		return c.formatter.Usage("/forget <id>"), nil
	}

	id, err := ResolveID(ctx, c.svc, userID, args[0])
	if err != nil {
		return "", err
	}
	if err := c.svc.Delete(ctx, id); err != nil {
		return "", err
	}
	return c.formatter.Success(fmt.Sprintf("Forgot %s", ShortID(id.String()))), nil
}

type MemoriesCommand struct {
	svc       Memories
	formatter *ResponseFormatter
}

func NewMemoriesCommand(svc Memories) *MemoriesCommand {
	return &MemoriesCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *MemoriesCommand) Name() string {
	return "memories"
}

func (c *MemoriesCommand) Description() string {
	return "List stored memories, most important first"
}

func (c *MemoriesCommand) Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error) {
	query := core.NewMemoryQuery().ForUser(userID).WithLimit(defaultListLimit)

	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil && n > 0 {
			query = query.WithLimit(n)
			continue
		}
		t, ok := core.LookupMemoryType(strings.ToLower(arg))
		if !ok {
			return c.formatter.Usage("/memories [type] [limit]"), nil
		}
		query = query.OfTypes(t)
	}

	list, err := c.svc.List(ctx, query)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "No memories stored yet.\n", nil
	}

	lines := make([]string, len(list))
	for i, m := range list {
		lines[i] = c.formatter.MemoryLine(m)
	}
	return c.formatter.Combine(
		c.formatter.Title(fmt.Sprintf("Memories (%d)", len(list))),
		c.formatter.List(lines),
	), nil
}

type StatsCommand struct {
	svc       Memories
	formatter *ResponseFormatter
}

func NewStatsCommand(svc Memories) *StatsCommand {
	return &StatsCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *StatsCommand) Name() string {
	return "stats"
}

func (c *StatsCommand) Description() string {
	return "Show memory statistics"
}

func (c *StatsCommand) Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error) {
	stats, err := c.svc.Stats(ctx, userID)
	if err != nil {
		return "", err
	}
	return FormatStats(c.formatter, stats), nil
}

// FormatStats renders totals followed by the non-empty per-type counts.
func FormatStats(f *ResponseFormatter, stats core.MemoryStats) string {
	sections := []string{
		f.Title("Memory Stats"),
		f.Label("Total", strconv.Itoa(stats.TotalCount)),
		f.Label("With embeddings", strconv.Itoa(stats.WithEmbeddings)),
		f.Label("Avg importance", fmt.Sprintf("%.2f", stats.AvgImportance)),
	}
	for _, t := range core.AllMemoryTypes() {
		if n := stats.CountOf(t); n > 0 {
			sections = append(sections, f.Label(t.Label(), strconv.Itoa(n)))
		}
	}
	return f.Combine(sections...)
}

type HelpCommand struct {
	router    core.CmdRouter
	formatter *ResponseFormatter
}

func NewHelpCommand(router core.CmdRouter) *HelpCommand {
	return &HelpCommand{router: router, formatter: NewResponseFormatter()}
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "List available commands"
}

func (c *HelpCommand) Execute(ctx context.Context, userID uuid.UUID, args []string) (string, error) {
	cmds := c.router.ListCommands()
	items := make([]string, len(cmds))
	for i, cmd := range cmds {
		items[i] = fmt.Sprintf("/%-10s %s", cmd.Name(), cmd.Description())
	}
	return c.formatter.Combine(
		c.formatter.Title("Commands"),
		c.formatter.List(items),
		c.formatter.Tip("a line without a leading / is treated as /recall"),
	), nil
}
