package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <graph>",
	Short: "Export the dialogue graph",
	Long:  `Outputs a Mermaid diagram (graph TD) of the named graph, or its JSON form with --format json.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg, logger)
		if err != nil {
			return err
		}
		g, err := eng.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch format, _ := cmd.Flags().GetString("format"); format {
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(g, nil))
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(g)
		default:
			return fmt.Errorf("unknown format %q; supported: mermaid, json", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid or json")
}
