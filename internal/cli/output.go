package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// structured reports whether output goes out as JSON or YAML.
func structured() bool {
	return outputFormat == "json" || outputFormat == "yaml"
}

// printStructured writes v as JSON or YAML.
func printStructured(v any) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(v)); err != nil {
			return err
		}
		return enc.Close()
	}
	return printJSON(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toPlain round-trips v through JSON so YAML output uses the json tags.
func toPlain(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return v
	}
	return plain
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
}

func printTableHeader(w *tabwriter.Writer, headers ...string) {
	fmt.Fprintln(w, strings.Join(headers, "\t"))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func printError(err error) {
	fmt.Fprintf(stderr, "Error: %v\n", err)
}

// relTime renders t relative to now, "never" for the zero time.
func relTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func derefOr(s *string) string {
	if s == nil {
		return "-"
	}
	return orDash(*s)
}
