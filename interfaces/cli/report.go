package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// FormatReport writes the human-readable summary of one trial.
func FormatReport(w io.Writer, machineName, input string, r trial.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Machine: %s\n", machineName)
	fmt.Fprintf(&b, "Initial input string: %s\n", input)
	fmt.Fprintf(&b, "Depth of the tree of configurations: %d\n", r.Depth)
	fmt.Fprintf(&b, "Total transitions: %d\n", r.Transitions)

	if r.Outcome.Accepted() {
		fmt.Fprintf(&b, "\nString accepted in %d steps.\n", r.Depth)
		b.WriteString("Accepting path:\n")
		for _, c := range r.Path {
			b.WriteString(c.String())
			b.WriteByte('\n')
		}
	} else {
		fmt.Fprintf(&b, "\nString rejected in %d steps.\n", r.Depth)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
