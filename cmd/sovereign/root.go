package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/service/ui"
	"github.com/twohreichel/pisovereign/pkg/log"
)

var (
	debug  bool
	userID string
)

var rootCmd = &cobra.Command{
	Use:   core.AppBinary,
	Short: core.AppName + ": private long-term memory for your assistant",
	Long: `PiSovereign remembers facts, preferences and corrections per user, encrypts
them at rest and recalls the most relevant ones for a question.`,
	Version:       core.AppVersion,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id owning the memories (defaults to SOVEREIGN_USER_ID)")

	CustomizeHelp(rootCmd)
}

func setupLogger(ctx context.Context, out io.Writer) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, out, isDebug)
}

func CustomizeHelp(rootCmd *cobra.Command) {
	cobra.AddTemplateFunc("StyleTitle", func(s string) string { return ui.TitleStyle.Render(s) })
	cobra.AddTemplateFunc("StyleUsage", func(s string) string { return ui.UsageStyle.Render(s) })
	cobra.AddTemplateFunc("StyleFlag", func(s string) string { return ui.FlagStyle.Render(s) })
	cobra.AddTemplateFunc("StyleDesc", func(s string) string { return ui.DescStyle.Render(s) })

	template := `
{{StyleTitle "USAGE"}}
  {{StyleUsage .UseLine}}
{{if gt (len .Commands) 0}}
{{StyleTitle "AVAILABLE COMMANDS"}}
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding}} {{StyleDesc .Short}}{{end}}{{end}}
{{end}}{{if .HasAvailableLocalFlags}}
{{StyleTitle "FLAGS"}}
{{StyleFlag (.LocalFlags.FlagUsages | trimTrailingWhitespaces)}}
{{end}}{{if .HasAvailableInheritedFlags}}
{{StyleTitle "GLOBAL FLAGS"}}
{{StyleFlag (.InheritedFlags.FlagUsages | trimTrailingWhitespaces)}}
{{end}}
`
	rootCmd.SetHelpTemplate(template)
}
