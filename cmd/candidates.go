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

	"github.com/spf13/cobra"

	"github.com/valpere/tovis/internal/candidate"
	"github.com/valpere/tovis/internal/validator"
)

var (
	candidatesServices []string
	candidatesAll      bool
	candidatesNoCache  bool
	candidatesValidate bool
	candidatesOut      string
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates <id|file>",
	Short: "Add machine translation candidates to a document",
	Long: `Send every untranslated block to the enabled translation services in
parallel and append each result as a "[service] text" candidate.

Services are enabled in the config file (services.<name>.enabled) or picked
with --services. Results are cached per service in the database.

Example:
  tovis candidates 3f2c0c1e-... --services mymemory,ollama --validate`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		doc, src, err := loadDocument(ctx, db, args[0])
		if err != nil {
			return err
		}

		services, err := buildServices(candidatesServices)
		if err != nil {
			return err
		}

		opts := []candidate.Option{candidate.WithLogger(logger)}
		if cfg.Candidates.Cache && !candidatesNoCache {
			opts = append(opts, candidate.WithCache(db))
		}
		if cfg.Candidates.Validate || candidatesValidate {
			opts = append(opts, candidate.WithValidator(validator.New()))
		}

		filler := candidate.New(services, candidate.Config{Timeout: cfg.Candidates.Timeout}, opts...)
		report, err := filler.Fill(ctx, doc, candidate.FillOptions{All: candidatesAll})
		if err != nil {
			return fmt.Errorf("failed to fill candidates: %w", err)
		}
		for _, e := range report.Errors {
			logger.Warn("service failed", "error", e)
		}

		fmt.Printf("Blocks: %d  added: %d  cached: %d  rejected: %d  failed: %d\n",
			report.Blocks, report.Added, report.Cached, report.Rejected, report.Failed)

		return storeBack(ctx, db, doc, src, candidatesOut)
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)

	candidatesCmd.Flags().StringSliceVar(&candidatesServices, "services", nil, "Services to use (default: enabled in config)")
	candidatesCmd.Flags().BoolVar(&candidatesAll, "all", false, "Also fill blocks that already have a translation")
	candidatesCmd.Flags().BoolVar(&candidatesNoCache, "no-cache", false, "Do not use cached service results")
	candidatesCmd.Flags().BoolVar(&candidatesValidate, "validate", false, "Drop candidates not in the target language")
	candidatesCmd.Flags().StringVarP(&candidatesOut, "out", "o", "", "Write the tovis text here instead of saving it")
}
