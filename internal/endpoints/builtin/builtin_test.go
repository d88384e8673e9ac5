package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/endpoints/reviewtype"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/settings"
)

func TestRegister_NoDuplicates(t *testing.T) {
	require.NoError(t, Register(pkgmgr.NewRegistry()))
}

func TestDecisionFileServesBothScreens(t *testing.T) {
	reg := Registry()
	assert.Contains(t, reg.Discover(endpoint.TypePrescreen), "lrv.decision_file")
	assert.Contains(t, reg.Discover(endpoint.TypeScreen), "lrv.decision_file")
}

// Every review type must produce settings whose endpoints all load.
func TestReviewTypeDefaultsLoad(t *testing.T) {
	reg := Registry()
	for _, id := range []string{reviewtype.LiteratureReviewID, reviewtype.ScopingReviewID} {
		t.Run(id, func(t *testing.T) {
			s := settings.Default(id)
			env := &endpoint.Env{Root: t.TempDir(), Settings: s, Logger: logging.Nop(), Reporter: logging.Discard()}
			rt, err := reg.ReviewType(env, id)
			require.NoError(t, err)
			rt.ApplyDefaults(s)
			require.NoError(t, s.Validate())

			lists := []struct {
				typ     endpoint.Type
				entries []settings.EndpointSettings
			}{
				{endpoint.TypePrep, s.Prep.PrepRounds[0].PrepPackageEndpoints},
				{endpoint.TypePrepMan, s.Prep.PrepManPackageEndpoints},
				{endpoint.TypeDedupe, s.Dedupe.DedupePackageEndpoints},
				{endpoint.TypePrescreen, s.Prescreen.PrescreenPackageEndpoints},
				{endpoint.TypePDFGet, s.PDFGet.PDFGetPackageEndpoints},
				{endpoint.TypePDFGetMan, s.PDFGet.PDFGetManPackageEndpoints},
				{endpoint.TypePDFPrep, s.PDFPrep.PDFPrepPackageEndpoints},
				{endpoint.TypePDFPrepMan, s.PDFPrep.PDFPrepManPackageEndpoints},
				{endpoint.TypeScreen, s.Screen.ScreenPackageEndpoints},
				{endpoint.TypeData, s.Data.DataPackageEndpoints},
			}
			for _, l := range lists {
				require.NotEmpty(t, l.entries, l.typ)
				loaded, err := reg.Load(env, l.typ, l.entries, pkgmgr.LoadOptions{})
				require.NoError(t, err, l.typ)
				assert.Len(t, loaded, len(l.entries))
			}
		})
	}
}

func TestUnknownReviewType(t *testing.T) {
	_, err := Registry().ReviewType(&endpoint.Env{}, "lrv.meta_analysis")
	assert.ErrorIs(t, err, pkgmgr.ErrUnknownReviewType)
}
