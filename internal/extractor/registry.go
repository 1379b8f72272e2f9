package extractor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"newswatch/internal/intel"
)

// Source discovers article URLs for a named news source.
type Source interface {
	Name() string
	Discover(ctx context.Context) ([]string, error)
}

// builder constructs a Source from its configuration.
type builder func(cfg intel.SourceConfig, fetch fetcher, logger *zap.Logger) Source

var builders = map[string]builder{
	"nvidia-newsroom": func(cfg intel.SourceConfig, fetch fetcher, logger *zap.Logger) Source {
		return NewNewsroom(cfg, fetch, logger)
	},
	"generic-newsroom": func(cfg intel.SourceConfig, fetch fetcher, logger *zap.Logger) Source {
		return NewNewsroom(cfg, fetch, logger)
	},
}

// ResolveSource looks up the discovery implementation for the
// configured source name.
func ResolveSource(cfg intel.SourceConfig, fetch fetcher, logger *zap.Logger) (Source, error) {
	build, ok := builders[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %v)", cfg.Name, knownSources())
	}
	return build(cfg, fetch, logger), nil
}

func knownSources() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
