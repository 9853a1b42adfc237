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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/tovis/internal/tovis"
)

var (
	dumpAs   string
	dumpMode string
	dumpOut  string
)

var dumpCmd = &cobra.Command{
	Use:   "dump <id|file>",
	Short: "Render a document",
	Long: `Render a stored document (by id) or a tovis text file.

Output forms:
  text     the tovis line format
  json     structured JSON snapshot
  yaml     structured YAML snapshot
  compact  minified review view; --mode CHECK-DUPLI lists every source with
           a marker of its best similarity match ("<096" earlier side,
           ">096" later side, "_000" none)

Example:
  tovis dump 3f2c0c1e-... --as compact --mode CHECK-DUPLI`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		doc, _, err := loadDocument(ctx, db, args[0])
		if err != nil {
			return err
		}

		data, err := render(doc, dumpAs, dumpMode)
		if err != nil {
			return err
		}
		return writeOutput(dumpOut, data)
	},
}

func render(doc *tovis.Document, as, mode string) ([]byte, error) {
	switch strings.ToLower(as) {
	case "text", "":
		return []byte(doc.String() + "\n"), nil
	case "json":
		return doc.DumpStructured().JSON()
	case "yaml":
		return doc.DumpStructured().YAML()
	case "compact":
		m, err := tovis.ParseCompactMode(mode)
		if err != nil {
			return nil, err
		}
		lines, err := doc.DumpCompact(m)
		if err != nil {
			return nil, err
		}
		return []byte(strings.Join(lines, "\n") + "\n"), nil
	}
	return nil, fmt.Errorf("%w: output %q (want text, json, yaml or compact)", tovis.ErrUnknownFormat, as)
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dumpAs, "as", "a", "text", "Output form: text, json, yaml, compact")
	dumpCmd.Flags().StringVarP(&dumpMode, "mode", "m", string(tovis.CompactCheckDupli), "Compact mode: CHECK-DUPLI, BILINGUAL")
	dumpCmd.Flags().StringVarP(&dumpOut, "out", "o", "", "Output file (default stdout)")
}
