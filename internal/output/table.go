package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// ANSI sequences for the plan highlights. Colored text stays out of the
// tabwriter cells so column widths are unaffected.
const (
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

// TableFormatter formats the removal plan as a human-readable table.
type TableFormatter struct {
	// NoHeaders omits the header rows.
	NoHeaders bool

	// Color enables ANSI highlights. NewFormatter disables it when the
	// NO_COLOR environment variable is set.
	Color bool
}

// colorize wraps s in the ANSI sequence when color is enabled.
func (f *TableFormatter) colorize(ansi, s string) string {
	if !f.Color {
		return s
	}
	return ansi + s + ansiReset
}

// FormatPlan renders the plan as a VM summary, a disk table, and the
// ordered action list.
func (f *TableFormatter) FormatPlan(p *Plan) (string, error) {
	var buf bytes.Buffer

	if !p.Exists {
		fmt.Fprintf(&buf, "%s\n", f.colorize(ansiRed, fmt.Sprintf("VM %s not found", p.Instance)))
		return buf.String(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tPOWER\tVCPUs\tMEMORY")
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d MiB\n",
		p.VM.Name, p.VM.PowerState, p.VM.CPUs, p.VM.MemoryMiB)
	_ = w.Flush()

	if len(p.VM.Disks) > 0 {
		buf.WriteString("\n")
		w = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "DISK\tFILE\tSIZE\tMODE")
		}
		for _, d := range p.VM.Disks {
			mode := "dependent"
			if d.Independent {
				mode = "independent"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d GiB\t%s\n",
				d.Label, d.File, d.CapacityGiB, mode)
		}
		_ = w.Flush()
	}

	buf.WriteString("\n")
	if p.Apply {
		buf.WriteString("Actions:\n")
	} else {
		buf.WriteString(f.colorize(ansiYellow, "Planned actions (dry-run, use --apply to execute):") + "\n")
	}
	for i, action := range p.Actions {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, action)
	}

	return buf.String(), nil
}
