package translator

import (
	"fmt"
	"sort"
)

type factory func(ServiceConfig) Service

var factories = map[string]factory{
	"google":     func(c ServiceConfig) Service { return NewGoogleService(c) },
	"mymemory":   func(c ServiceConfig) Service { return NewMyMemoryService(c) },
	"ollama":     func(c ServiceConfig) Service { return NewOllamaTranslator(c) },
	"openrouter": func(c ServiceConfig) Service { return NewOpenRouterService(c) },
	"systran":    func(c ServiceConfig) Service { return NewSystranService(c) },
}

// Names lists the services Build knows, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the enabled services in name order.
func Build(cfgs map[string]ServiceConfig) ([]Service, error) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		if _, ok := factories[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var services []Service
	for _, name := range names {
		if cfg := cfgs[name]; cfg.Enabled {
			services = append(services, factories[name](cfg))
		}
	}
	return services, nil
}
