// Package settings handles the review settings document and the user's
// global configuration.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotRepository indicates no settings.json was found.
	ErrNotRepository = errors.New("not in a review repository")

	// ErrInvalidSettings indicates settings.json failed validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Settings is the content of settings.json.
type Settings struct {
	Project   Project           `json:"project" validate:"required"`
	Sources   []SearchSource    `json:"sources" validate:"dive"`
	Search    SearchSettings    `json:"search"`
	Prep      PrepSettings      `json:"prep"`
	Dedupe    DedupeSettings    `json:"dedupe"`
	Prescreen PrescreenSettings `json:"prescreen"`
	PDFGet    PDFGetSettings    `json:"pdf_get"`
	PDFPrep   PDFPrepSettings   `json:"pdf_prep"`
	Screen    ScreenSettings    `json:"screen"`
	Data      DataSettings      `json:"data"`
}

// ID patterns for new records.
const (
	IDPatternFirstAuthorYear  = "first_author_year"
	IDPatternThreeAuthorsYear = "three_authors_year"
)

// Project holds review-wide options.
type Project struct {
	Title                    string   `json:"title"`
	Keywords                 []string `json:"keywords,omitempty"`
	IDPattern                string   `json:"id_pattern" validate:"oneof=first_author_year three_authors_year"`
	ShareStatReq             string   `json:"share_stat_req" validate:"oneof=none processed screened completed"`
	ReviewType               string   `json:"review_type" validate:"required"`
	DelayAutomatedProcessing bool     `json:"delay_automated_processing"`
	AutoUpgrade              bool     `json:"auto_upgrade"`
	// Restrictions keyed by the first year they apply to, e.g.
	// {"1990": {"ENTRYTYPE": "article", "journal": "MIS Quarterly", "volume": true}}.
	MasterdataRestrictions map[string]map[string]any `json:"masterdata_restrictions,omitempty"`
}

// Search types of a source.
const (
	SearchTypeDB       = "DB"
	SearchTypeTOC      = "TOC"
	SearchTypeBackward = "BACKWARD_SEARCH"
	SearchTypeForward  = "FORWARD_SEARCH"
	SearchTypePDFs     = "PDFS"
	SearchTypeOther    = "OTHER"
)

// SearchSource describes one search output file and the endpoint that
// reads it.
type SearchSource struct {
	Endpoint         string         `json:"endpoint" validate:"required"`
	Filename         string         `json:"filename" validate:"required"`
	SearchType       string         `json:"search_type" validate:"oneof=DB TOC BACKWARD_SEARCH FORWARD_SEARCH PDFS OTHER"`
	SearchParameters map[string]any `json:"search_parameters,omitempty"`
	Comment          string         `json:"comment,omitempty"`
}

// SearchSettings holds options of the search operation.
type SearchSettings struct {
	RetrieveForthcoming bool `json:"retrieve_forthcoming"`
}

// EndpointSettings is one entry of a *_package_endpoints list: the
// endpoint identifier plus endpoint-specific keys.
type EndpointSettings map[string]any

// Endpoint returns the endpoint identifier.
func (e EndpointSettings) Endpoint() string {
	s, _ := e["endpoint"].(string)
	return s
}

// PrepRound is one pass of prep endpoints.
type PrepRound struct {
	Name                 string             `json:"name" validate:"required"`
	SimilarityThreshold  float64            `json:"similarity" validate:"gte=0,lte=1"`
	PrepPackageEndpoints []EndpointSettings `json:"prep_package_endpoints" validate:"dive,has_endpoint"`
}

// PrepSettings holds options of prep and prep_man.
type PrepSettings struct {
	FieldsToKeep            []string           `json:"fields_to_keep,omitempty"`
	PrepRounds              []PrepRound        `json:"prep_rounds" validate:"dive"`
	PrepManPackageEndpoints []EndpointSettings `json:"prep_man_package_endpoints" validate:"dive,has_endpoint"`
}

// Same-source merge policies.
const (
	SameSourcePrevent = "prevent"
	SameSourceWarn    = "warn"
	SameSourceApply   = "apply"
)

// DedupeSettings holds options of dedupe.
type DedupeSettings struct {
	SameSourceMerges       string             `json:"same_source_merges" validate:"oneof=prevent warn apply"`
	DedupePackageEndpoints []EndpointSettings `json:"dedupe_package_endpoints" validate:"dive,has_endpoint"`
}

// PrescreenSettings holds options of prescreen.
type PrescreenSettings struct {
	ExplanationText           string             `json:"explanation,omitempty"`
	PrescreenPackageEndpoints []EndpointSettings `json:"prescreen_package_endpoints" validate:"dive,has_endpoint"`
}

// PDF path types.
const (
	PDFPathSymlink = "symlink"
	PDFPathCopy    = "copy"
)

// PDFGetSettings holds options of pdf_get and pdf_get_man.
type PDFGetSettings struct {
	PDFPathType                      string             `json:"pdf_path_type" validate:"oneof=symlink copy"`
	PDFRequiredForScreenAndSynthesis bool               `json:"pdf_required_for_screen_and_synthesis"`
	RenamePDFs                       bool               `json:"rename_pdfs"`
	PDFGetPackageEndpoints           []EndpointSettings `json:"pdf_get_package_endpoints" validate:"dive,has_endpoint"`
	PDFGetManPackageEndpoints        []EndpointSettings `json:"pdf_get_man_package_endpoints" validate:"dive,has_endpoint"`
}

// PDFPrepSettings holds options of pdf_prep and pdf_prep_man.
type PDFPrepSettings struct {
	KeepBackupOfPDFs           bool               `json:"keep_backup_of_pdfs"`
	PDFPrepPackageEndpoints    []EndpointSettings `json:"pdf_prep_package_endpoints" validate:"dive,has_endpoint"`
	PDFPrepManPackageEndpoints []EndpointSettings `json:"pdf_prep_man_package_endpoints" validate:"dive,has_endpoint"`
}

// Criterion types.
const (
	CriterionInclusion = "inclusion"
	CriterionExclusion = "exclusion"
)

// ScreenCriterion is one named screening criterion.
type ScreenCriterion struct {
	Explanation   string `json:"explanation" validate:"required"`
	Comment       string `json:"comment,omitempty"`
	CriterionType string `json:"criterion_type" validate:"oneof=inclusion exclusion"`
}

// ScreenSettings holds options of screen.
type ScreenSettings struct {
	ExplanationText        string                     `json:"explanation,omitempty"`
	Criteria               map[string]ScreenCriterion `json:"criteria" validate:"dive"`
	ScreenPackageEndpoints []EndpointSettings         `json:"screen_package_endpoints" validate:"dive,has_endpoint"`
}

// CriteriaNames returns the criterion names in lexical order.
func (s ScreenSettings) CriteriaNames() []string {
	names := make([]string, 0, len(s.Criteria))
	for name := range s.Criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataSettings holds options of data.
type DataSettings struct {
	DataPackageEndpoints []EndpointSettings `json:"data_package_endpoints" validate:"dive,has_endpoint"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("has_endpoint", validateHasEndpoint)
	return v
}

// validateHasEndpoint checks that an endpoint entry names its endpoint.
func validateHasEndpoint(fl validator.FieldLevel) bool {
	e, ok := fl.Field().Interface().(EndpointSettings)
	return ok && e.Endpoint() != ""
}

// Validator returns the validator used for settings. Endpoints validate
// their own decoded settings with it.
func Validator() *validator.Validate {
	return validate
}

// Validate checks enumerations and required keys.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, DescribeValidation(err))
	}
	for year := range s.Project.MasterdataRestrictions {
		if len(year) != 4 || strings.Trim(year, "0123456789") != "" {
			return fmt.Errorf("%w: masterdata_restrictions key %q is not a year", ErrInvalidSettings, year)
		}
	}
	return nil
}

// DescribeValidation flattens validator errors into one line.
func DescribeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s (got %v)", ns, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", ns, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// Load reads and validates settings.json of the repository at root.
func Load(root string) (*Settings, error) {
	data, err := os.ReadFile(SettingsPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, root)
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a settings document.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes settings.json to the repository at the given root.
func (s *Settings) Save(root string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(SettingsPath(root), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// SourceByFilename returns the source reading filename, or nil.
func (s *Settings) SourceByFilename(filename string) *SearchSource {
	for i := range s.Sources {
		if s.Sources[i].Filename == filename {
			return &s.Sources[i]
		}
	}
	return nil
}

// RestrictionsFor returns the masterdata restrictions that apply to a
// record published in year: those of the latest key not after year.
func (s *Settings) RestrictionsFor(year string) map[string]any {
	best := ""
	for start := range s.Project.MasterdataRestrictions {
		if start <= year && start > best {
			best = start
		}
	}
	if best == "" {
		return nil
	}
	return s.Project.MasterdataRestrictions[best]
}

// Default returns settings with every enumeration at its default and no
// endpoints configured.
func Default(reviewType string) *Settings {
	return &Settings{
		Project: Project{
			IDPattern:                IDPatternThreeAuthorsYear,
			ShareStatReq:             "processed",
			ReviewType:               reviewType,
			DelayAutomatedProcessing: true,
		},
		Sources: []SearchSource{},
		Prep: PrepSettings{
			FieldsToKeep: []string{},
		},
		Dedupe: DedupeSettings{
			SameSourceMerges: SameSourcePrevent,
		},
		PDFGet: PDFGetSettings{
			PDFPathType:                      PDFPathSymlink,
			PDFRequiredForScreenAndSynthesis: true,
			RenamePDFs:                       true,
		},
		Screen: ScreenSettings{
			Criteria: map[string]ScreenCriterion{},
		},
	}
}
