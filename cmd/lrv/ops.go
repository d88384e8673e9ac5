package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/ops"
	"github.com/matsen/litreview/internal/review"
)

var (
	ignoreNotAvailable bool
	splitIDs           []string
	loadRerun          bool
)

// operation runs one record-moving operation against the open repository.
type operation func(ctx context.Context, m *review.Manager, opts ops.Options) (*ops.Result, error)

// operationCommand builds the cobra command of an operation.
func operationCommand(use, short, long string, run operation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := mustOpenManager()
			defer closeManager(m)

			res, err := run(cmd.Context(), m, commonOptions())
			exitOnError(err)
			printResult(res)
			return nil
		},
	}
	addCommonFlags(cmd)
	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&ignoreNotAvailable, "ignore-not-available", false, "Skip endpoints that are not installed")
}

func addSplitFlag(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&splitIDs, "split", nil, "Restrict the decisions to these record IDs")
}

func commonOptions() ops.Options {
	return ops.Options{IgnoreNotAvailable: ignoreNotAvailable, Split: splitIDs}
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import records from the search sources",
	Long: `Import new records from every file in data/search and every API
search source. New search files are registered in settings.json.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := mustOpenManager()
		defer closeManager(m)

		res, err := ops.Load(cmd.Context(), m, ops.LoadOptions{Options: commonOptions(), Rerun: loadRerun})
		exitOnError(err)
		printResult(res)
		return nil
	},
}

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Update the synthesis outputs",
	Long: `Run every data endpoint on the included records and mark records as
synthesized once all endpoints report them complete.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := mustOpenManager()
		defer closeManager(m)

		res, err := ops.Data(cmd.Context(), m, commonOptions(), !humanOutput)
		exitOnError(err)
		if !humanOutput {
			return outputJSON(res)
		}
		printResult(res.Result)
		for id, a := range res.Advice {
			fmt.Printf("  %s: %s\n", id, a.Msg)
			if a.DetailedMsg != "" {
				fmt.Printf("    %s\n", a.DetailedMsg)
			}
		}
		return nil
	},
}

func init() {
	addCommonFlags(loadCmd)
	loadCmd.Flags().BoolVar(&loadRerun, "rerun", false, "Repeat the full search of API sources")
	addCommonFlags(dataCmd)

	prescreenCmd := operationCommand("prescreen", "Prescreen records on title and abstract",
		`Run the prescreen endpoints on processed records. The decision file
endpoint writes data/prescreen.csv when it is missing and applies it when
it is filled in.`, ops.Prescreen)
	addSplitFlag(prescreenCmd)

	screenCmd := operationCommand("screen", "Screen records on the full text",
		`Run the screen endpoints on records with prepared PDFs and record the
criteria decisions of included records.`, ops.Screen)
	addSplitFlag(screenCmd)

	rootCmd.AddCommand(
		loadCmd,
		operationCommand("prep", "Prepare record metadata",
			`Run the prep rounds on imported records. Records that reach the
round's similarity threshold become md_prepared; the others need manual
preparation.`, ops.Prep),
		operationCommand("prep-man", "Apply manual metadata corrections",
			`Write data/prep_man.yaml for records that need manual preparation,
or apply it when it has been edited.`, ops.PrepMan),
		operationCommand("dedupe", "Merge duplicate records",
			`Run the dedupe endpoints on prepared records and merge the duplicates
they find. Merged records keep all origins.`, ops.Dedupe),
		prescreenCmd,
		operationCommand("pdf-get", "Retrieve PDFs",
			`Run the pdf-get endpoints on prescreen-included records.`, ops.PDFGet),
		operationCommand("pdf-get-man", "Record manually retrieved PDFs",
			`Write data/pdf_get_man.yaml for records whose PDF was not found, or
apply it when it has been edited.`, ops.PDFGetMan),
		operationCommand("pdf-prep", "Check and prepare PDFs",
			`Run the pdf-prep endpoints on imported PDFs. PDFs with defects need
manual preparation.`, ops.PDFPrep),
		pdfPrepManCommand(),
		screenCmd,
		dataCmd,
	)
}
