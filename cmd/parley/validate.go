package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/spf13/cobra"
)

// errInvalid is returned once every finding has been printed.
var errInvalid = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate [graph...]",
	Short: "Check graphs for consistency",
	Long: `Lints the named graphs, or every graph of the repository, and reports
unreachable nodes, dangling edges, missing rows and invalid decorators.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg, logger)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		names := args
		if len(names) == 0 {
			if names, err = eng.Loader().ListGraphs(ctx); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		failed := false
		for _, name := range names {
			err := eng.Validate(ctx, name)
			if err == nil {
				fmt.Fprintf(out, "%s: valid ✅\n", name)
				continue
			}
			failed = true
			fmt.Fprintf(out, "%s: invalid ❌\n", name)
			for _, e := range domain.Errors(err) {
				fmt.Fprintf(out, "  - %v\n", e)
			}
		}
		if failed {
			return errInvalid
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
