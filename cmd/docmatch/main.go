// Docmatch extracts identity data from scanned documents and matches the
// extracted identifiers against a searchable roster.
//
// Usage:
//
//	# Start the HTTP API
//	docmatch serve
//
//	# Extract fields from OCR text
//	docmatch extract scan.txt
//
//	# OCR an image, extract, and match against a roster
//	docmatch process page.png --roster class.csv
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
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

	root := &cobra.Command{
		Use:   "docmatch",
		Short: "Extract identity fields from scanned documents and match them to a roster",
		Long: `docmatch reads names, student ids and phone numbers out of scanned documents
and selects the matching entries in a searchable roster, one identifier at a time.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/docmatch/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newServeCmd(opts),
		newExtractCmd(opts),
		newOCRCmd(opts),
		newMatchCmd(opts),
		newProcessCmd(opts),
		newRetryCmd(opts),
		newVersionCmd(),
	)
	return root
}
