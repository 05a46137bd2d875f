package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/deps"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Check the external tools udl depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			statuses := deps.CheckBinaries(deps.Requirements(cfg))

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "missing"
				if status.Available {
					state = "ok"
				} else if status.Optional {
					state = "missing (optional)"
				}
				if colorize {
					if status.Available {
						state = ansiGreen + state + ansiReset
					} else if !status.Optional {
						state = ansiRed + state + ansiReset
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state, status.Description})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Purpose"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("required tools missing: %v", missing)
			}
			return nil
		},
	}
}
