// Package candidate fills tovis blocks with machine translation candidates.
// Every block is sent to all configured services in parallel; successful
// results are appended to the block as "[service] text" candidates.
package candidate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valpere/tovis/internal/tovis"
	"github.com/valpere/tovis/internal/translator"
)

// DefaultTimeout bounds a service call when Config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Validator rejects translations that are not in the target language.
type Validator interface {
	IsValid(text, targetLang string) (bool, error)
}

// Cache reuses translations a service produced before.
type Cache interface {
	GetCachedCandidate(ctx context.Context, service, sourceText, sourceLang, targetLang string) (string, bool, error)
	SaveCandidate(ctx context.Context, service, sourceText, sourceLang, targetLang, text string) error
}

// Config tunes a Filler.
type Config struct {
	// Timeout bounds each service call.
	Timeout time.Duration
}

// Filler requests candidates from a fixed set of services.
type Filler struct {
	services  []translator.Service
	config    Config
	validator Validator
	cache     Cache
	logger    *slog.Logger
}

// Option configures optional Filler collaborators.
type Option func(*Filler)

// WithValidator drops results not in the target language.
func WithValidator(v Validator) Option { return func(f *Filler) { f.validator = v } }

// WithCache reuses and records service results.
func WithCache(c Cache) Option { return func(f *Filler) { f.cache = c } }

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option { return func(f *Filler) { f.logger = l } }

// New returns a filler over services. Candidates are added in service order.
func New(services []translator.Service, config Config, opts ...Option) *Filler {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	f := &Filler{
		services: services,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FillOptions selects the blocks to fill and the language pair. Empty
// languages fall back to the document metadata.
type FillOptions struct {
	All        bool
	SourceLang string
	TargetLang string
}

// Report counts what a Fill call did.
type Report struct {
	Blocks   int
	Added    int
	Cached   int
	Rejected int
	Failed   int
	Errors   []error
}

type outcome struct {
	service string
	text    string
	cached  bool
	err     error
}

// Fill requests candidates for every block with a source and, unless All is
// set, no confirmed target. Inline markup in the source is masked while the
// services run; a result that drops a mask is rejected. Service failures and
// rejected results are counted in the report. A failing onSetMT transform
// aborts the fill.
func (f *Filler) Fill(ctx context.Context, doc *tovis.Document, opts FillOptions) (*Report, error) {
	if len(f.services) == 0 {
		return nil, fmt.Errorf("no translation services configured")
	}
	if opts.SourceLang == "" {
		opts.SourceLang = doc.Meta.SourceLang
	}
	if opts.TargetLang == "" {
		opts.TargetLang = doc.Meta.TargetLang
	}
	if opts.TargetLang == "" {
		return nil, fmt.Errorf("target language is not set")
	}

	report := &Report{}
	for i, b := range doc.Blocks {
		if b.Source == "" || (!opts.All && b.Target != "") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Blocks++

		m := mask(b.Source)
		req := translator.Request{
			Text:       m.text,
			SourceLang: opts.SourceLang,
			TargetLang: opts.TargetLang,
			Glossary:   glossaryHints(b),
			Masked:     len(m.parts),
		}

		for _, o := range f.execute(ctx, req) {
			if o.err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("block %d: %s: %w", i, o.service, o.err))
				f.logger.Debug("service failed", "block", i, "service", o.service, "error", o.err)
				continue
			}
			text, err := m.unmask(o.text)
			if err != nil {
				report.Rejected++
				f.logger.Debug("candidate rejected", "block", i, "service", o.service, "reason", err)
				continue
			}
			if f.validator != nil {
				if ok, err := f.validator.IsValid(text, opts.TargetLang); !ok {
					report.Rejected++
					f.logger.Debug("candidate rejected", "block", i, "service", o.service, "reason", err)
					continue
				}
			}
			if err := doc.AddCandidate(i, o.service, text); err != nil {
				return report, fmt.Errorf("block %d: %w", i, err)
			}
			report.Added++
			if o.cached {
				report.Cached++
			}
		}
	}
	return report, nil
}

// execute fans req out to all services and returns one outcome per service,
// in service order.
func (f *Filler) execute(ctx context.Context, req translator.Request) []outcome {
	outcomes := make([]outcome, len(f.services))

	var wg sync.WaitGroup
	for i, svc := range f.services {
		wg.Add(1)
		go func(index int, service translator.Service) {
			defer wg.Done()
			outcomes[index] = f.translate(ctx, service, req)
		}(i, svc)
	}
	wg.Wait()

	return outcomes
}

func (f *Filler) translate(ctx context.Context, service translator.Service, req translator.Request) outcome {
	o := outcome{service: service.Name()}

	if f.cache != nil {
		text, found, err := f.cache.GetCachedCandidate(ctx, o.service, req.Text, req.SourceLang, req.TargetLang)
		if err != nil {
			f.logger.Warn("cache lookup failed", "service", o.service, "error", err)
		} else if found {
			o.text, o.cached = text, true
			return o
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	res, err := service.Translate(serviceCtx, req)
	switch {
	case err != nil:
		o.err = err
		return o
	case res == nil || res.Text == "":
		o.err = fmt.Errorf("empty translation")
		return o
	}
	o.text = res.Text

	if f.cache != nil {
		if err := f.cache.SaveCandidate(ctx, o.service, req.Text, req.SourceLang, req.TargetLang, o.text); err != nil {
			f.logger.Warn("cache save failed", "service", o.service, "error", err)
		}
	}
	return o
}

func glossaryHints(b *tovis.Block) map[string][]string {
	if len(b.Terms) == 0 {
		return nil
	}
	hints := make(map[string][]string, len(b.Terms))
	for _, t := range b.Terms {
		hints[t.Source] = append(hints[t.Source], t.Targets...)
	}
	return hints
}
