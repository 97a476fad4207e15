package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
	"github.com/fyrsmithlabs/docmatch/internal/pipeline"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printBatch writes a batch as JSON or as a table of outcomes.
func printBatch(w io.Writer, r *orchestrator.BatchResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, r)
	}

	fmt.Fprintf(w, "Batch %s: %d matched, %d failed of %d\n", r.BatchID, len(r.Matched), len(r.Failed), r.Total)
	if r.RetryOf != "" {
		fmt.Fprintf(w, "Retry of %s\n", r.RetryOf)
	}
	if len(r.Outcomes) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tSTATE\tDETAIL")
	for _, o := range r.Outcomes {
		detail := o.Entry
		if o.AlreadySelected {
			detail += " (already selected)"
		}
		if o.State == orchestrator.StateFailed {
			detail = string(o.Reason)
			if o.Detail != "" {
				detail += ": " + o.Detail
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.Index, o.ID, o.State, detail)
	}
	return tw.Flush()
}

// printResult writes a human summary of a pipeline run.
func printResult(w io.Writer, res *pipeline.Result) error {
	if res.Cancelled {
		fmt.Fprintln(w, "Cancelled")
		return nil
	}
	fmt.Fprintf(w, "Document %d (%s), OCR confidence %.2f%%\n", res.DocumentNumber, res.ProcessingType, res.OCRConfidence)
	if res.Record != nil {
		fmt.Fprintf(w, "Names:  %s\n", strings.Join(res.Record.Names, ", "))
		fmt.Fprintf(w, "IDs:    %s\n", strings.Join(res.Record.IDs, ", "))
		fmt.Fprintf(w, "Phones: %s\n", strings.Join(res.Record.Phones, ", "))
	}
	if res.Batch != nil {
		return printBatch(w, res.Batch, false)
	}
	return nil
}

// parseRegion parses "x,y,width,height". Empty input means no region.
func parseRegion(s string) (*capture.Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("region must be x,y,width,height, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("region value %q: %w", p, err)
		}
		v[i] = n
	}
	r := &capture.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Empty() {
		return nil, fmt.Errorf("region %q has no area", s)
	}
	return r, nil
}
