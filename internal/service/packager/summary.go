package packager

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// writeSummary prints one row per written package.
func writeSummary(w io.Writer, result *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Package", "Version", "OS", "CPU", "Cached", "Directory"})

	for _, res := range result.Targets {
		t.AppendRow(table.Row{
			res.Package.Name,
			res.Package.Version,
			res.Package.OS,
			res.Package.CPU,
			strconv.FormatBool(res.Cached),
			res.Dir,
		})
	}

	if result.Meta != nil {
		if len(result.Targets) > 0 {
			t.AppendSeparator()
		}

		t.AppendRow(table.Row{result.Meta.Name, result.Meta.Version, "any", "any", "", result.MetaDir})
	}

	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
