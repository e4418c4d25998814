package ingest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"devguard/internal/engine/graph"
)

// LoadEndpointSeeds reads the configured OpenAPI documents and returns the
// endpoints they declare, sorted by document, route, then verb.
func LoadEndpointSeeds(ctx context.Context, paths []string) ([]graph.EndpointSeed, error) {
	var seeds []graph.EndpointSeed
	for _, p := range paths {
		docSeeds, err := seedsFromDoc(ctx, p)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, docSeeds...)
	}

	sort.Slice(seeds, func(i, j int) bool {
		if seeds[i].Doc != seeds[j].Doc {
			return seeds[i].Doc < seeds[j].Doc
		}
		if seeds[i].Route != seeds[j].Route {
			return seeds[i].Route < seeds[j].Route
		}
		return seeds[i].Verb < seeds[j].Verb
	})
	return seeds, nil
}

func seedsFromDoc(ctx context.Context, path string) ([]graph.EndpointSeed, error) {
	source := strings.TrimSpace(path)
	if source == "" {
		return nil, fmt.Errorf("openapi document path is required")
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("openapi document %q: %w", source, err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(source)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %q: %w", source, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document %q: %w", source, err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	var seeds []graph.EndpointSeed
	for route, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method := range item.Operations() {
			seeds = append(seeds, graph.EndpointSeed{
				Verb:  strings.ToUpper(method),
				Route: route,
				Doc:   source,
			})
		}
	}
	return seeds, nil
}
