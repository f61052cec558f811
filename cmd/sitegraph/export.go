package main

import (
	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/alvmarrod/sitegraph/internal/export"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd(root *rootOptions) *cobra.Command {
	var rankPath, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the crawled graph as one JSON document",
		Long: `Export reads the vertex and edge logs, plus an optional rank vector with one
number per vertex, and writes {"nodes": [...], "edges": [[src,dest],...], "pagerank": [...]}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(root.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := configureLogging(cfg.LogLevel, root.verbose); err != nil {
				return err
			}

			doc, err := export.Load(cfg, rankPath)
			if err != nil {
				return err
			}
			return doc.WriteFile(outPath)
		},
	}

	cmd.Flags().StringVar(&rankPath, "rank", "", "Rank vector file, one number per line")
	cmd.Flags().StringVarP(&outPath, "out", "o", "pagerank.json", "Output file")

	return cmd
}
