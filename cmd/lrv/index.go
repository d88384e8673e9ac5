package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/ops"
)

var (
	indexPath  string
	indexForce bool
)

func init() {
	indexCmd.Flags().StringVar(&indexPath, "path", "", "Index database (default: local_index_path or .lrv/localindex.db)")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Rebuild even when the records file is unchanged")
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Add the prepared records to the local index",
	Long: `Add the repository's prepared records and their PDFs to the local
index, which the local_index prep and pdf-get endpoints consult in
other reviews.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	m := mustOpenManager()
	defer closeManager(m)

	path := indexPath
	if path == "" {
		path = mustGlobalConfig().LocalIndexPath
	}
	res, err := ops.BuildIndex(m, path, indexForce)
	exitOnError(err)

	if !humanOutput {
		return outputJSON(res)
	}
	if res.UpToDate {
		outputHuman("Index %s is up to date\n", res.Path)
		return nil
	}
	outputHuman("Indexed %d records in %s\n", res.Indexed, res.Path)
	return nil
}
