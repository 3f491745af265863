package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/service/command"
	"github.com/twohreichel/pisovereign/internal/service/memory"
	"github.com/twohreichel/pisovereign/internal/service/ui"
)

var (
	rememberType         string
	rememberImportance   float32
	rememberTags         []string
	rememberConversation string

	listType          string
	listLimit         int
	listMinImportance float32

	learnConversation string
)

// runMemory wraps a memory subcommand with logging to stderr and the wired stack.
func runMemory(fn func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context(), os.Stderr)
		defer flushLog()

		return withApp(ctx, func(ctx context.Context, app *App) error {
			id, err := app.UserID()
			if err != nil {
				return err
			}
			return fn(ctx, cmd, app, id, args)
		})
	}
}

var rememberCmd = &cobra.Command{
	Use:   "remember <text>",
	Short: "Store a memory",
	Long: `Store a memory. Near-duplicates of an existing memory are merged into it.

Examples:
  sovereign remember "Paris is the capital of France"
  sovereign remember "I prefer metric units" --type preference --importance 0.8 --tag units`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		memType, ok := core.LookupMemoryType(rememberType)
		if !ok {
			return fmt.Errorf("unknown --type %q", rememberType)
		}

		content := strings.Join(args, " ")
		m := core.NewMemory(userID, content, memory.Summarize(content), memType).
			WithImportance(rememberImportance).
			WithTags(cleanTags(rememberTags))

		if rememberConversation != "" {
			convID, err := uuid.Parse(rememberConversation)
			if err != nil {
				return fmt.Errorf("invalid --conversation: %w", err)
			}
			m = m.WithConversation(convID)
		}

		stored, err := app.Service.Store(ctx, m)
		if err != nil {
			return err
		}

		verb := "Remembered"
		if stored.ID != m.ID {
			verb = "Merged into"
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render(fmt.Sprintf("✓ %s %s", verb, stored.ID)))
		return nil
	}),
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Print memories relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		found, err := app.Service.RetrieveContext(ctx, userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No relevant memories found.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), memory.FormatContextForPrompt(found))
		return nil
	}),
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a memory by id or short id",
	Args:  cobra.ExactArgs(1),
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		id, err := command.ResolveID(ctx, app.Service, userID, args[0])
		if err != nil {
			return err
		}
		if err := app.Service.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render("✓ Forgot "+id.String()))
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, most important first",
	Args:  cobra.NoArgs,
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		query := core.NewMemoryQuery().ForUser(userID).WithLimit(listLimit)
		if listType != "" {
			t, ok := core.LookupMemoryType(listType)
			if !ok {
				return fmt.Errorf("unknown --type %q", listType)
			}
			query = query.OfTypes(t)
		}
		if cmd.Flags().Changed("min-importance") {
			query = query.WithMinImportance(listMinImportance)
		}

		list, err := app.Service.List(ctx, query)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No memories stored yet.")
			return nil
		}

		f := command.NewResponseFormatter()
		for _, m := range list {
			fmt.Fprintln(cmd.OutOrStdout(), f.MemoryLine(m))
		}
		return nil
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics",
	Args:  cobra.NoArgs,
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		stats, err := app.Service.Stats(ctx, userID)
		if err != nil {
			return err
		}
		panel := strings.TrimRight(command.FormatStats(command.NewResponseFormatter(), stats), "\n")
		fmt.Fprintln(cmd.OutOrStdout(), ui.StatsBoxStyle.Render(panel))
		return nil
	}),
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Apply importance decay to every memory now",
	Args:  cobra.NoArgs,
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, _ uuid.UUID, args []string) error {
		below, err := app.Service.ApplyDecay(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Decay applied; %d memories below the importance floor.\n", len(below))
		return nil
	}),
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete memories below the importance floor",
	Args:  cobra.NoArgs,
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, _ uuid.UUID, args []string) error {
		deleted, err := app.Service.CleanupLowImportance(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d memories.\n", deleted)
		return nil
	}),
}

var promptCmd = &cobra.Command{
	Use:   "prompt <query>",
	Short: "Print the system prompt an assistant would get for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		learner := memory.NewLearner(app.Service, memory.LearningConfigFrom(app.Memory))
		prompt, _, err := learner.BuildSystemPrompt(ctx, userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompt)
		return nil
	}),
}

var learnCmd = &cobra.Command{
	Use:   "learn <question> <answer>",
	Short: "Record a question and answer exchange as context",
	Args:  cobra.ExactArgs(2),
	RunE: runMemory(func(ctx context.Context, cmd *cobra.Command, app *App, userID uuid.UUID, args []string) error {
		learner := memory.NewLearner(app.Service, memory.LearningConfigFrom(app.Memory))
		if learnConversation == "" {
			learner.LearnFromInteraction(ctx, userID, args[0], args[1])
			return nil
		}

		convID, err := uuid.Parse(learnConversation)
		if err != nil {
			return fmt.Errorf("invalid --conversation: %w", err)
		}
		learner.LearnFromConversation(ctx, userID, convID, args[0], args[1])
		return nil
	}),
}

func cleanTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s := strings.TrimSpace(t); s != "" {
			tags = append(tags, s)
		}
	}
	return tags
}

func init() {
	rememberCmd.Flags().StringVarP(&rememberType, "type", "t", core.MemoryTypeFact.Token(), "fact, preference, correction, tool_result or context")
	rememberCmd.Flags().Float32VarP(&rememberImportance, "importance", "i", core.DefaultImportance, "importance between 0 and 1")
	rememberCmd.Flags().StringSliceVar(&rememberTags, "tag", nil, "tag to attach (repeatable or comma-separated)")
	rememberCmd.Flags().StringVar(&rememberConversation, "conversation", "", "conversation id the memory belongs to")

	listCmd.Flags().StringVarP(&listType, "type", "t", "", "only list this memory type")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of memories")
	listCmd.Flags().Float32Var(&listMinImportance, "min-importance", 0, "hide memories below this importance")

	learnCmd.Flags().StringVar(&learnConversation, "conversation", "", "conversation id the exchange belongs to")

	rootCmd.AddCommand(rememberCmd, recallCmd, forgetCmd, listCmd, statsCmd, decayCmd, cleanupCmd, promptCmd, learnCmd)
}
