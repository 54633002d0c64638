// Command templatesheet flattens form, view and role template documents into
// spreadsheets.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikitaxru/templatesheet"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	kind       string
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "templatesheet",
		Short: "Export form, view and role templates to spreadsheets",
		Long: `Flatten template documents into one row per field, column or role.

Commands:
  export   Write an xlsx workbook (one sheet per file) or a csv file.
  tsv      Print one file's rows as tab-separated text.
  preview  Print a page of one file's rows as a table.
  serve    Accept uploads over HTTP and return workbooks.

Examples:
  templatesheet export --kind forms ./forms -o forms.xlsx
  templatesheet tsv --kind views acme_Jobs.json
  templatesheet serve --addr :8080`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.kind, "kind", "k", string(templatesheet.Forms), "Document kind: forms, views or roles")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML export config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log skipped files and sheet naming fallbacks to stderr")

	cmd.AddCommand(newExportCmd(opts), newTSVCmd(opts), newPreviewCmd(opts), newServeCmd(opts))
	return cmd
}

func (o *rootOptions) parseKind() (templatesheet.Kind, error) {
	return templatesheet.ParseKind(o.kind)
}

// loadConfig reads the --config file, if any. Library logging goes to stderr.
func (o *rootOptions) loadConfig(stderr io.Writer) (templatesheet.ExportConfig, error) {
	cfg := templatesheet.DefaultConfig()
	if o.configPath != "" {
		data, err := os.ReadFile(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = templatesheet.ParseConfig(data); err != nil {
			return cfg, err
		}
	}
	cfg.Logger = o.logger(stderr)
	return cfg, nil
}

// logger writes skipped files and sheet naming fallbacks to w under --verbose and
// drops them otherwise.
func (o *rootOptions) logger(w io.Writer) *log.Logger {
	if !o.verbose {
		w = io.Discard
	}
	return log.New(w, "templatesheet: ", log.LstdFlags)
}

// loadLayout fills cfg.Layout from cfg.LayoutPath.
func loadLayout(cfg *templatesheet.ExportConfig) error {
	if cfg.LayoutPath == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.LayoutPath)
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}
	cfg.Layout = data
	return nil
}
