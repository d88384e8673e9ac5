package endpoint

// Heuristic status values of search sources.
const (
	HeuristicSupported = "supported"
	HeuristicTODO      = "todo"
)

// Manifest describes an endpoint to the registry.
type Manifest struct {
	ID   string
	Type Type

	// Settings returns a pointer to a zero settings struct. The
	// endpoint's settings entry is decoded into it and validated through
	// its `validate` tags. Nil means the endpoint takes no settings
	// beyond its identifier.
	Settings func() any

	// New constructs an instance. cfg is the value returned by Settings,
	// populated, or nil.
	New func(env *Env, cfg any) (Endpoint, error)

	CISupported        bool
	APISearchSupported bool
	HeuristicStatus    string

	// Heuristic scores how likely a search file belongs to this source,
	// between 0 and 1. Search sources only.
	Heuristic func(filename string, data []byte) float64

	// RenderingHeavy endpoints halve the worker pool.
	RenderingHeavy bool
}

// SourceConfig is the settings struct of search sources: the source
// entry of settings.json minus its endpoint identifier.
type SourceConfig struct {
	Filename         string         `json:"filename" validate:"required"`
	SearchType       string         `json:"search_type"`
	SearchParameters map[string]any `json:"search_parameters,omitempty"`
	Comment          string         `json:"comment,omitempty"`
}

// Param returns a string search parameter, or "".
func (c *SourceConfig) Param(key string) string {
	if v, ok := c.SearchParameters[key].(string); ok {
		return v
	}
	return ""
}
