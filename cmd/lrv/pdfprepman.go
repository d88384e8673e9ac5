package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/ops"
	"github.com/matsen/litreview/internal/pdf"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

var pdfPrepManOpen bool

func pdfPrepManCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf-prep-man",
		Short: "Apply manual PDF preparation decisions",
		Long: `Write data/pdf_prep_man.yaml for PDFs with defects, or apply it when it
has been edited. With --open, the PDFs waiting for manual preparation are
opened in the configured viewer first.`,
		Args: cobra.NoArgs,
		RunE: runPDFPrepMan,
	}
	addCommonFlags(cmd)
	cmd.Flags().BoolVar(&pdfPrepManOpen, "open", false, "Open the PDFs that need manual preparation")
	return cmd
}

func runPDFPrepMan(cmd *cobra.Command, args []string) error {
	m := mustOpenManager()
	defer closeManager(m)

	if pdfPrepManOpen {
		recs, err := m.Dataset.LoadRecords()
		exitOnError(err)
		viewer := pdf.NewViewer(m.Root, mustGlobalConfig().PDFViewer)
		for _, r := range recs.InState(state.PDFNeedsManualPreparation) {
			if err := viewer.Open(r.Get(record.KeyFile)); err != nil {
				m.Reporter.Warnf("%s: %v", r.ID, err)
			}
		}
	}

	res, err := ops.PDFPrepMan(cmd.Context(), m, commonOptions())
	exitOnError(err)
	printResult(res)
	return nil
}
