package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract names, ids and phone numbers from OCR text",
		Long: `Extract names, ids and phone numbers from OCR text in a file or stdin.

Examples:
  # Extract from a file
  docmatch extract scan.txt

  # Extract from stdin
  cat scan.txt | docmatch extract -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			extractor, err := a.extractor()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), extractor.Extract(string(text)))
		},
	}
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return content, nil
}
