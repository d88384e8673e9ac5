package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// PDFGet retrieves PDFs for records in rev_prescreen_included. Endpoints
// are tried in order until one sets the file field.
func PDFGet(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	op, err := m.NewOperation(state.PDFGet, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), endpoint.TypePDFGet, m.Settings.PDFGet.PDFGetPackageEndpoints, opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		selected := selectIDs(recs.InState(state.RevPrescreenIncluded), opts.Split)
		op.SetPad(dataset.MaxIDWidth(selected))

		results, err := review.Map(ctx, m.Workers(pkgmgr.RenderingHeavy(loaded)), selected,
			func(ctx context.Context, in *record.Record) (*record.Record, error) {
				r := in.Copy()
				for _, l := range loaded {
					if r.HasValue(record.KeyFile) {
						break
					}
					get := l.Endpoint.(endpoint.PDFGet)
					current := r
					out, err := review.CallWithTimeout(ctx, m.Timeout(), func(ctx context.Context) (*record.Record, error) {
						return get.GetPDF(ctx, current.Copy())
					})
					if err != nil {
						if ctx.Err() != nil {
							return nil, ctx.Err()
						}
						noteFailure(r, l.Manifest.ID, err)
						continue
					}
					if out != nil {
						r = out
					}
				}
				return r, nil
			})
		if err != nil {
			return err
		}

		for _, r := range results {
			recs.Put(r)
			if file := r.Get(record.KeyFile); file != "" {
				placed, err := placePDF(m, r, file)
				if err == nil {
					source := "pdf_get"
					if p := r.DataProvenance[record.KeyFile]; p != nil {
						source = p.Source
					}
					r.UpdateField(record.KeyFile, placed, source, record.KeepSourceIfEqual(), record.ReplaceSource())
					if _, err := op.Transition(r, state.PDFImported); err != nil {
						return err
					}
					continue
				}
				op.Fail(r.ID, err)
				r.RemoveField(record.KeyFile, false, "")
			}
			if _, err := op.Transition(r, state.PDFNeedsManualRetrieval); err != nil {
				return err
			}
		}
		return m.Dataset.SaveRecords(recs)
	})
}

// PDFPrep checks the PDFs of records in pdf_imported. Records whose file
// carries defect notes after all endpoints, or whose PDF cannot be hashed,
// go to pdf_needs_manual_preparation; the rest get their colrev_pdf_id.
func PDFPrep(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	op, err := m.NewOperation(state.PDFPrep, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), endpoint.TypePDFPrep, m.Settings.PDFPrep.PDFPrepPackageEndpoints, opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		selected := selectIDs(recs.InState(state.PDFImported), opts.Split)
		pad := dataset.MaxIDWidth(selected)
		op.SetPad(pad)

		if m.Settings.PDFPrep.KeepBackupOfPDFs {
			for _, r := range selected {
				if err := backupPDF(m.Path(r.Get(record.KeyFile))); err != nil {
					m.Logger.Warn("pdf backup failed", "id", r.ID, "error", err)
				}
			}
		}

		results, err := review.Map(ctx, m.Workers(pkgmgr.RenderingHeavy(loaded)), selected,
			func(ctx context.Context, in *record.Record) (*record.Record, error) {
				r := in.Copy()
				clearFailures(r)
				for _, l := range loaded {
					prep := l.Endpoint.(endpoint.PDFPrep)
					current := r
					out, err := review.CallWithTimeout(ctx, m.Timeout(), func(ctx context.Context) (*record.Record, error) {
						return prep.PrepPDF(ctx, current.Copy(), pad)
					})
					if err != nil {
						if ctx.Err() != nil {
							return nil, ctx.Err()
						}
						noteFailure(r, l.Manifest.ID, err)
						continue
					}
					if out != nil {
						r = out
					}
				}
				if !hasFileDefects(r) && !hasFailure(r) {
					if err := setPDFID(m, r); err != nil {
						noteFileDefect(r, pdfErrorNote(err))
					}
				}
				return r, nil
			})
		if err != nil {
			return err
		}

		for _, r := range results {
			recs.Put(r)
			target := state.PDFPrepared
			if hasFileDefects(r) || hasFailure(r) {
				target = state.PDFNeedsManualPreparation
			}
			if _, err := op.Transition(r, target); err != nil {
				return err
			}
		}
		return m.Dataset.SaveRecords(recs)
	})
}

// placePDF moves a retrieved PDF into the PDF directory according to the
// pdf_get settings and returns its repository-relative path.
func placePDF(m *review.Manager, r *record.Record, file string) (string, error) {
	src := file
	if !filepath.IsAbs(src) {
		src = m.Path(file)
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", identifier.ErrInvalidPDF, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", identifier.ErrInvalidPDF, file)
	}

	pdfDir := m.Path(settings.PDFDir)
	name := filepath.Base(src)
	if m.Settings.PDFGet.RenamePDFs {
		name = r.ID + ".pdf"
	}
	target := filepath.Join(pdfDir, name)
	rel := path.Join(settings.PDFDir, name)
	if src == target {
		return rel, nil
	}
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		return "", err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	inPDFDir := strings.HasPrefix(src, pdfDir+string(filepath.Separator))
	switch {
	case inPDFDir:
		err = os.Rename(src, target)
	case m.Settings.PDFGet.PDFPathType == settings.PDFPathCopy:
		err = copyFile(src, target)
	default:
		err = os.Symlink(src, target)
	}
	if err != nil {
		return "", fmt.Errorf("placing %s: %w", file, err)
	}
	return rel, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// backupPDF copies name.pdf to name_backup.pdf once.
func backupPDF(file string) error {
	backup := strings.TrimSuffix(file, filepath.Ext(file)) + "_backup.pdf"
	if _, err := os.Stat(backup); err == nil {
		return nil
	}
	return copyFile(file, backup)
}

// setPDFID computes and stores the colrev_pdf_id of the record's file.
func setPDFID(m *review.Manager, r *record.Record) error {
	file := r.Get(record.KeyFile)
	if file == "" {
		return fmt.Errorf("%w: %s has no file", identifier.ErrInvalidPDF, r.ID)
	}
	id, err := identifier.PDFID(m.Path(file))
	if err != nil {
		return err
	}
	r.UpdateField(record.KeyPDFID, id, "file|pdf_hash", record.KeepSourceIfEqual(), record.ReplaceSource())
	return nil
}

// hasFileDefects reports whether PDF endpoints left notes on the file.
func hasFileDefects(r *record.Record) bool {
	p := r.DataProvenance[record.KeyFile]
	return p != nil && len(p.Notes) > 0
}

// noteFileDefect adds a defect code to the file provenance.
func noteFileDefect(r *record.Record, code string) {
	p := r.DataProvenance[record.KeyFile]
	if p == nil {
		p = record.NewProvenance("pdf_prep", "")
		r.DataProvenance[record.KeyFile] = p
	}
	p.AddNote(code)
}

func pdfErrorNote(err error) string {
	switch {
	case errors.Is(err, identifier.ErrPDFHash):
		return NotePDFHash
	case errors.Is(err, os.ErrNotExist):
		return NoteNoPDFFile
	}
	return NoteInvalid
}
