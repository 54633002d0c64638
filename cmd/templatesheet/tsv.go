package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikitaxru/templatesheet"
)

func newTSVCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tsv <file>",
		Short: "Print a template file's rows as tab-separated text",
		Long: `Print the header line and one line per row, tab-separated, ready to paste
into a spreadsheet.

Example:
  templatesheet tsv --kind roles acme_Dispatcher.json | pbcopy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := root.parseKind()
			if err != nil {
				return err
			}
			file, err := readFile(args[0])
			if err != nil {
				return err
			}
			b, err := templatesheet.FlattenFile(kind, file)
			if err != nil {
				return &templatesheet.DocumentError{File: file.Name, Err: err}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), b.TSV())
			return err
		},
	}
	return cmd
}
