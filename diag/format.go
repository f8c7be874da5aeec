package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/justapithecus/sparring/types"
)

// DefaultTail is the number of trailing commands printed per link.
const DefaultTail = 10

// FormatReport writes a human-readable account of a divergence: where it
// happened, both vectors, and the first coefficient that differs.
func FormatReport(w io.Writer, r *types.DivergenceReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "divergence in %s game %d on worker %d at ply %d\n", r.Kind, r.Game, r.Worker, r.Ply)
	fmt.Fprintf(&b, "  position: %s\n", r.Position)
	fmt.Fprintf(&b, "  a: %v\n", []int(r.A))
	fmt.Fprintf(&b, "  b: %v\n", []int(r.B))
	if i := r.FirstDifference(); i >= 0 && i < len(r.A) && i < len(r.B) {
		fmt.Fprintf(&b, "  first difference: coefficient %d (a=%d b=%d)\n", i, r.A[i], r.B[i])
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatEntry writes the report followed by the last tail commands sent to
// each link. tail <= 0 prints the whole log.
func FormatEntry(w io.Writer, e *Entry, tail int) error {
	if err := FormatReport(w, e.Report); err != nil {
		return err
	}
	var b strings.Builder
	for _, side := range []struct {
		name string
		cmds []string
	}{{"a", e.CommandsA}, {"b", e.CommandsB}} {
		cmds := side.cmds
		if tail > 0 && len(cmds) > tail {
			cmds = cmds[len(cmds)-tail:]
		}
		fmt.Fprintf(&b, "  commands %s (last %d of %d):\n", side.name, len(cmds), len(side.cmds))
		for _, c := range cmds {
			fmt.Fprintf(&b, "    %s\n", strings.TrimRight(c, "\n"))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
