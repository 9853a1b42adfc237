// Package plugin applies named text transforms at fixed trigger points of a
// tovis document: when a source segment is set and when a machine
// translation candidate is added. Transforms are resolved from a static
// registry; nothing is loaded from disk.
package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Trigger names an extension point.
type Trigger string

const (
	OnSetSource Trigger = "onSetSource"
	OnSetMT     Trigger = "onSetMT"
)

var (
	// ErrUnknownPlugin is returned when a name is not in the registry.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrUnknownTrigger is returned when a definition declares a trigger no
	// document applies.
	ErrUnknownTrigger = errors.New("unknown trigger")
	// ErrTransform wraps any failure raised by a transform.
	ErrTransform = errors.New("transform failed")
)

// Func transforms text. options is the free-form string given at registration.
type Func func(text, options string) (string, error)

// Definition describes a transform available for registration.
type Definition struct {
	Name     string
	Triggers []Trigger
	Func     Func
	// Validate checks options at registration time. Optional.
	Validate func(options string) error
}

// Registry maps plugin names to definitions.
type Registry map[string]Definition

// Names returns the registered names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type instance struct {
	name    string
	fn      Func
	options string
}

// Pipeline holds the transforms registered per trigger, in registration order.
type Pipeline struct {
	registry Registry
	chains   map[Trigger][]instance
}

// NewPipeline returns an empty pipeline resolving names against registry.
// A nil registry means Builtins().
func NewPipeline(registry Registry) *Pipeline {
	if registry == nil {
		registry = Builtins()
	}
	return &Pipeline{
		registry: registry,
		chains:   make(map[Trigger][]instance),
	}
}

// Register appends the named transform to every trigger it declares.
func (p *Pipeline) Register(name, options string) error {
	def, ok := p.registry[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if def.Validate != nil {
		if err := def.Validate(options); err != nil {
			return fmt.Errorf("plugin %s: invalid options %q: %w", name, options, err)
		}
	}
	for _, trg := range def.Triggers {
		if trg != OnSetSource && trg != OnSetMT {
			return fmt.Errorf("%w: plugin %s declares %q", ErrUnknownTrigger, name, trg)
		}
	}
	for _, trg := range def.Triggers {
		p.chains[trg] = append(p.chains[trg], instance{name: name, fn: def.Func, options: options})
	}
	return nil
}

// Count returns the number of transforms registered for trg.
func (p *Pipeline) Count(trg Trigger) int {
	if p == nil {
		return 0
	}
	return len(p.chains[trg])
}

// Apply runs the chain for trg. With nothing registered the text is returned
// unchanged. The first failing transform aborts the chain.
func (p *Pipeline) Apply(trg Trigger, text string) (string, error) {
	if p.Count(trg) == 0 {
		return text, nil
	}
	for _, inst := range p.chains[trg] {
		out, err := inst.fn(text, inst.options)
		if err != nil {
			return "", fmt.Errorf("%w: %s on %s: %v", ErrTransform, inst.name, trg, err)
		}
		text = out
	}
	return text, nil
}

// LoadRunCommand registers plugins listed in a run-command text. Each line is
// "name" or "name::options"; lines starting with '#' are comments. A text
// whose first character is '!' disables the whole file.
func (p *Pipeline) LoadRunCommand(rc string) error {
	if strings.HasPrefix(rc, "!") {
		return nil
	}
	for n, line := range strings.Split(rc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, options, _ := strings.Cut(line, "::")
		if err := p.Register(strings.TrimSpace(name), strings.TrimSpace(options)); err != nil {
			return fmt.Errorf("run command line %d: %w", n+1, err)
		}
	}
	return nil
}
