/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/tovis/internal/plugin"
	"github.com/valpere/tovis/internal/store"
	"github.com/valpere/tovis/internal/tovis"
	"github.com/valpere/tovis/internal/translator"
)

// openStore opens the configured database, creating its directory.
func openStore() (*store.Store, error) {
	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// buildPipeline registers the configured plugins: plugins.names first, then
// the run-command file.
func buildPipeline() (*plugin.Pipeline, error) {
	p := plugin.NewPipeline(nil)
	for _, entry := range cfg.Plugins.Names {
		name, options, _ := strings.Cut(entry, "::")
		if err := p.Register(name, options); err != nil {
			return nil, err
		}
	}
	if cfg.Plugins.RC != "" {
		rc, err := os.ReadFile(cfg.Plugins.RC)
		if err != nil {
			return nil, fmt.Errorf("failed to read plugin run command: %w", err)
		}
		if err := p.LoadRunCommand(string(rc)); err != nil {
			return nil, err
		}
	}
	logger.Debug("plugins registered",
		"onSetSource", p.Count(plugin.OnSetSource),
		"onSetMT", p.Count(plugin.OnSetMT))
	return p, nil
}

// newDocument returns an empty document wired to the configured plugins.
func newDocument() (*tovis.Document, error) {
	p, err := buildPipeline()
	if err != nil {
		return nil, err
	}
	return tovis.New(tovis.WithPlugins(p)), nil
}

// buildServices returns the enabled services, optionally narrowed to names.
func buildServices(names []string) ([]translator.Service, error) {
	cfgs := cfg.Services
	if len(names) > 0 {
		cfgs = make(map[string]translator.ServiceConfig, len(names))
		for _, name := range names {
			c := cfg.Services[name]
			c.Enabled = true
			cfgs[name] = c
		}
	}

	services, err := translator.Build(cfgs)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("no translation services enabled")
	}
	return services, nil
}

// source records where a loaded document came from.
type source struct {
	ref string
	// id is set when ref named a stored document.
	id string
}

// loadDocument resolves ref as a tovis text file when it exists on disk and
// as a stored document id otherwise.
func loadDocument(ctx context.Context, db *store.Store, ref string) (*tovis.Document, source, error) {
	src := source{ref: ref}
	p, err := buildPipeline()
	if err != nil {
		return nil, src, err
	}

	data, err := os.ReadFile(ref)
	switch {
	case err == nil:
		doc := tovis.New(tovis.WithPlugins(p))
		res, err := doc.ParseText(string(data))
		if err != nil {
			return nil, src, fmt.Errorf("failed to parse %s: %w", ref, err)
		}
		logger.Info(res.Message, "file", ref)
		return doc, src, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, src, fmt.Errorf("failed to read %s: %w", ref, err)
	}

	if db == nil {
		return nil, src, fmt.Errorf("%s: no such file", ref)
	}
	doc, err := db.LoadDocument(ctx, ref, tovis.WithPlugins(p))
	if err != nil {
		return nil, src, err
	}
	src.id = ref
	return doc, src, nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// saveOrWrite writes doc to out when given, otherwise stores it.
func saveOrWrite(ctx context.Context, db *store.Store, doc *tovis.Document, name, out string) error {
	if out != "" {
		return writeOutput(out, []byte(doc.String()+"\n"))
	}
	id, created, err := db.SaveDocument(ctx, name, doc)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if created {
		fmt.Printf("Saved document %s (%d blocks)\n", id, doc.Len())
	} else {
		fmt.Printf("Document unchanged: %s\n", id)
	}
	return nil
}

// storeBack writes doc to out when given. Otherwise a stored document is
// updated in place and a document read from a file is saved as new.
func storeBack(ctx context.Context, db *store.Store, doc *tovis.Document, src source, out string) error {
	if out != "" || src.id == "" {
		return saveOrWrite(ctx, db, doc, filepath.Base(src.ref), out)
	}
	changed, err := db.UpdateDocument(ctx, src.id, doc)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if changed {
		fmt.Printf("Updated document %s (%d blocks)\n", src.id, doc.Len())
	} else {
		fmt.Printf("Document unchanged: %s\n", src.id)
	}
	return nil
}
