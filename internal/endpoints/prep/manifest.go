package prep

import "github.com/matsen/litreview/internal/endpoint"

// Manifests returns the manifests of the built-in prep endpoints.
func Manifests() []endpoint.Manifest {
	return []endpoint.Manifest{
		{
			ID:          SourceSpecificID,
			Type:        endpoint.TypePrep,
			New:         func(env *endpoint.Env, _ any) (endpoint.Endpoint, error) { return &SourceSpecific{env: env}, nil },
			CISupported: true,
		},
		{
			ID:          NormalizeID,
			Type:        endpoint.TypePrep,
			New:         func(*endpoint.Env, any) (endpoint.Endpoint, error) { return Normalize{}, nil },
			CISupported: true,
		},
		{
			ID:          ComplementaryID,
			Type:        endpoint.TypePrep,
			New:         func(*endpoint.Env, any) (endpoint.Endpoint, error) { return Complementary{}, nil },
			CISupported: true,
		},
		{
			ID:          LocalIndexID,
			Type:        endpoint.TypePrep,
			New:         func(env *endpoint.Env, _ any) (endpoint.Endpoint, error) { return &LocalIndex{env: env}, nil },
			CISupported: true,
		},
		{
			ID:   SemanticScholarID,
			Type: endpoint.TypePrep,
			New:  func(env *endpoint.Env, _ any) (endpoint.Endpoint, error) { return &SemanticScholar{env: env}, nil },
		},
	}
}
