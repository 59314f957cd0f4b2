package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njmorgan/loom/internal/assistant"
	"github.com/njmorgan/loom/internal/bus"
)

func newAskCmd() *cobra.Command {
	var showPlan bool
	var width int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and print the synthesized answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")

			sys, err := assistant.Build(cfg)
			if err != nil {
				return err
			}
			defer sys.Close()

			if verbose {
				sys.Bus.Subscribe("", func(e bus.Event) {
					if line, ok := renderEvent(e); ok {
						fmt.Fprintln(os.Stderr, line)
					}
				})
			}

			resp, err := sys.Assistant.Ask(cmd.Context(), request)
			if err != nil {
				return err
			}

			if showPlan && resp.Plan != nil {
				fmt.Fprintln(os.Stderr, renderPlanTrace(resp.Plan))
			}

			if resp.Answer.Degraded {
				fmt.Fprintln(os.Stderr, degradedStyle.Render("(no language model available; showing raw tool results)"))
			}
			fmt.Println(renderAnswer(resp.Answer.Text, width))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPlan, "plan", false, "print the executed plan")
	cmd.Flags().IntVar(&width, "width", 100, "answer wrap width")
	return cmd
}
