// Package cli provides output helpers for the hive command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hyperjump/hive/internal/models"
	"github.com/hyperjump/hive/internal/scheme"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// maxTermWidth bounds the term column in text output.
const maxTermWidth = 60

// WriteEntries writes term entries to w in index order.
func WriteEntries(w io.Writer, entries []models.TermEntry, format OutputFormat) error {
	if format == OutputJSON {
		if entries == nil {
			entries = []models.TermEntry{}
		}
		return writeJSON(w, entries)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", Truncate(e.Term, maxTermWidth), e.Concept)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d terms\n", len(entries))
	return err
}

// WriteSchemeInfo writes the configuration and statistics of a scheme to w.
func WriteSchemeInfo(w io.Writer, info scheme.Info, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, info)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(label string, value any) {
		fmt.Fprintf(tw, "%s:\t%v\n", label, value)
	}
	row("Name", info.Name)
	row("Long name", info.Config.LongName)
	row("URI", info.Config.SchemaURI)
	row("Instance", info.ID)
	row("Loaded", info.LoadedAt.Format(time.RFC3339))
	row("First time", info.FirstTime)
	row("Index", info.Config.IndexDirectory)
	row("Store", info.Config.StoreDirectory)
	row("Alpha file", info.Config.AlphaFilePath)
	row("Top concept file", info.Config.TopConceptIndexPath)
	row("Last date", info.Statistics.LastDate)
	row("Concepts", info.Statistics.Concepts)
	row("Relations", info.Statistics.Relations)
	row("Broader", info.Statistics.Broader)
	row("Narrower", info.Statistics.Narrower)
	row("Related", info.Statistics.Related)
	row("Alpha terms", info.AlphaTerms)
	row("Top concepts", info.TopConcepts)
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
