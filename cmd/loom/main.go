// Package main is the entry point for the loom CLI. Loom answers
// questions by planning tool invocations, running them in dependency
// order, and synthesizing the results into a single answer.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/njmorgan/loom/internal/config"
)

var version = "0.1.0"

var (
	cfgPath string
	verbose bool

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Loom - multi-tool research assistant",
		Long: `Loom answers questions by weaving tool calls together:
it classifies the request, plans which tools to call, runs independent
calls in parallel, threads results between dependent calls, and
synthesizes everything into one answer.

Ask a question:   loom ask "compare the last two Go releases"
Run the server:   loom serve
Add a note:       loom knowledge add --title "router" "BGP peers flap on ..."`,
		PersistentPreRunE: initRuntime,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.loom/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newKnowledgeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initRuntime(cmd *cobra.Command, args []string) error {
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Pretty && isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loom %s\n", version)
		},
	}
}
