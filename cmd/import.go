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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/tovis/internal/detector"
	"github.com/valpere/tovis/internal/diffinfo"
	"github.com/valpere/tovis/internal/extract"
	"github.com/valpere/tovis/internal/tovis"
)

const formatExtract = "extract"

var (
	importFormat     string
	importToDiff     bool
	importName       string
	importSourceLang string
	importTargetLang string
	importDetect     bool
	importGlossary   bool
	importTags       []string
	importOut        string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Build a tovis document from a file",
	Long: `Build a tovis document and save it to the database (or to --out).

Formats:
  tovis    the tovis line format
  diff     a JSON similarity feed ({"files": [...], "dsegs": [...]})
  plain    two-column "source<TAB>target" lines; "_@@_name" starts a file,
           "_@λ_" starts a group
  extract  a raw text or markdown document; with --diff similar segments
           are linked, otherwise every line becomes a block

Examples:
  tovis import notes.txt --format plain --source-lang en --target-lang uk
  tovis import guide.md --format extract --diff --detect
  tovis import review.tovis --out review.clean.tovis`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		doc, err := newDocument()
		if err != nil {
			return err
		}

		res, err := importFile(ctx, doc, path)
		if err != nil {
			return err
		}
		logger.Info(res.Message, "file", path)

		if importSourceLang != "" {
			doc.Meta.SourceLang = importSourceLang
		}
		if importTargetLang != "" {
			doc.Meta.TargetLang = importTargetLang
		}
		if importDetect {
			detectLanguages(doc)
		}
		for _, tag := range importTags {
			addTag(doc, tag)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if importGlossary {
			terms, err := db.GetGlossaryTerms(ctx, doc.Meta.SourceLang, doc.Meta.TargetLang)
			if err != nil {
				return fmt.Errorf("failed to read glossary: %w", err)
			}
			n := doc.AnnotateTerms(terms)
			logger.Info("glossary applied", "terms", n)
		}

		name := importName
		if name == "" {
			name = filepath.Base(path)
		}
		return saveOrWrite(ctx, db, doc, name, importOut)
	},
}

func importFile(ctx context.Context, doc *tovis.Document, path string) (*tovis.Result, error) {
	if importFormat == formatExtract {
		ec := extract.New()
		if err := ec.LoadFile(tovis.RoleSource, path); err != nil {
			return nil, err
		}
		analyzer := diffinfo.NewAnalyzer(diffinfo.Options{
			Threshold:  cfg.Diff.Threshold,
			MaxMatches: cfg.Diff.MaxMatches,
		})
		return doc.LoadExtract(ctx, ec, analyzer, importToDiff)
	}

	format, err := tovis.ParseFormat(importFormat)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return doc.Load(string(data), format)
}

// detectLanguages fills unset languages from the block texts.
func detectLanguages(doc *tovis.Document) {
	if doc.Meta.SourceLang != "" && doc.Meta.TargetLang != "" {
		return
	}

	var sources, targets []string
	for _, b := range doc.Blocks {
		sources = append(sources, b.Source)
		targets = append(targets, b.Target)
	}

	det := detector.New()
	if doc.Meta.SourceLang == "" {
		if code, ok := det.DetectDominant(sources, minDetectRunes); ok {
			doc.Meta.SourceLang = code
			logger.Info("source language detected", "lang", code)
		}
	}
	if doc.Meta.TargetLang == "" {
		if code, ok := det.DetectDominant(targets, minDetectRunes); ok {
			doc.Meta.TargetLang = code
			logger.Info("target language detected", "lang", code)
		}
	}
}

const minDetectRunes = 12

func addTag(doc *tovis.Document, tag string) {
	for _, t := range doc.Meta.Tags {
		if t == tag {
			return
		}
	}
	doc.Meta.Tags = append(doc.Meta.Tags, tag)
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFormat, "format", "f", "tovis", "Input format: tovis, diff, plain, extract")
	importCmd.Flags().BoolVar(&importToDiff, "diff", false, "With --format extract, link similar segments")
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "Document name (default: file name)")
	importCmd.Flags().StringVarP(&importSourceLang, "source-lang", "s", "", "Source language code (e.g. en)")
	importCmd.Flags().StringVarP(&importTargetLang, "target-lang", "t", "", "Target language code (e.g. uk)")
	importCmd.Flags().BoolVar(&importDetect, "detect", false, "Detect unset languages from the texts")
	importCmd.Flags().BoolVar(&importGlossary, "glossary", false, "Annotate glossary terms for the language pair")
	importCmd.Flags().StringSliceVar(&importTags, "tag", nil, "Add a document tag (repeatable)")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "Write the tovis text here instead of saving it")
}
