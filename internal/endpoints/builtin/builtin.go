// Package builtin registers the endpoints shipped with lrv.
package builtin

import (
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/endpoints/data"
	"github.com/matsen/litreview/internal/endpoints/dedupe"
	"github.com/matsen/litreview/internal/endpoints/manual"
	"github.com/matsen/litreview/internal/endpoints/pdfs"
	"github.com/matsen/litreview/internal/endpoints/prep"
	"github.com/matsen/litreview/internal/endpoints/reviewtype"
	"github.com/matsen/litreview/internal/endpoints/screen"
	"github.com/matsen/litreview/internal/endpoints/sources"
	"github.com/matsen/litreview/internal/pkgmgr"
)

// Manifests returns every built-in manifest.
func Manifests() []endpoint.Manifest {
	ms := []endpoint.Manifest{
		sources.BibTeXManifest(),
		sources.PaperpileManifest(),
		sources.PDFsDirManifest(),
		sources.SemanticScholarManifest(),
	}
	for _, group := range [][]endpoint.Manifest{
		prep.Manifests(),
		manual.Manifests(),
		dedupe.Manifests(),
		screen.Manifests(),
		pdfs.Manifests(),
		data.Manifests(),
		reviewtype.Manifests(),
	} {
		ms = append(ms, group...)
	}
	return ms
}

// Register adds the built-in endpoints to reg.
func Register(reg *pkgmgr.Registry) error {
	for _, m := range Manifests() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a registry holding the built-in endpoints.
func Registry() *pkgmgr.Registry {
	reg := pkgmgr.NewRegistry()
	reg.MustRegister(Manifests()...)
	return reg
}
