package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikitaxru/templatesheet"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		output             string
		format             string
		style              string
		filter             string
		excludeConditional bool
		layout             string
	)

	cmd := &cobra.Command{
		Use:   "export <file|dir>...",
		Short: "Export template files to an xlsx workbook or a csv file",
		Long: `Export template files, one sheet per file, in the order given.

Directories are searched for .json files. Files that cannot be read as a
template of --kind are reported and skipped; the export fails only when no
rows remain.

Flags override the matching keys of --config.

Examples:
  templatesheet export --kind forms ./forms -o forms.xlsx
  templatesheet export --kind views acme_Jobs.json --format csv
  templatesheet export ./forms --filter 'isRequired' --exclude-conditional
  templatesheet export ./forms --layout review.xlsx -o review-out.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := root.parseKind()
			if err != nil {
				return err
			}
			cfg, err := root.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("format") {
				if cfg.OutputFormat, err = templatesheet.ParseFormat(strings.ToLower(format)); err != nil {
					return err
				}
			}
			if flags.Changed("style") {
				cfg.TemplateStyle = templatesheet.TemplateStyle(style)
			}
			if flags.Changed("filter") {
				cfg.Filter = filter
			}
			if flags.Changed("exclude-conditional") {
				cfg.ExcludeConditionalFields = excludeConditional
			}
			if flags.Changed("layout") {
				cfg.LayoutPath = layout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := loadLayout(&cfg); err != nil {
				return err
			}

			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			results, err := templatesheet.Process(kind, files, cfg.Logger)
			if err != nil {
				return err
			}
			blob, err := templatesheet.Export(results, cfg)
			if err != nil {
				return err
			}

			if output == "" {
				output = blob.FileName(string(kind))
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(blob.Data)
				return err
			}
			if err := os.WriteFile(output, blob.Data, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d of %d files)\n",
				output, len(templatesheet.Batches(results)), len(results))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default <kind>.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", string(templatesheet.XLSX), "Output format: xlsx or csv")
	cmd.Flags().StringVar(&style, "style", string(templatesheet.StyleStandard), "Template style: standard or detailed")
	cmd.Flags().StringVar(&filter, "filter", "", "expr condition a row must satisfy, e.g. 'isRequired'")
	cmd.Flags().BoolVar(&excludeConditional, "exclude-conditional", false, "Drop conditionally shown, editable or required form fields")
	cmd.Flags().StringVar(&layout, "layout", "", "Layout workbook whose first sheet is rendered per file")
	return cmd
}
