package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dedbg/dedbg/internal/value"
)

// RenderTable writes a value sequence as an aligned table. Nested table
// values are flattened with dotted names (outer.inner).
func RenderTable(w io.Writer, vals []value.ClientValue) error {
	table := tablewriter.NewTable(w)
	table.Header([]string{"Name", "Type", "Value"})
	for _, row := range flatten("", vals) {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// RenderText writes a value sequence as plain name = value lines, nesting
// tables with indentation.
func RenderText(w io.Writer, vals []value.ClientValue) {
	renderTextIndent(w, vals, 0)
}

func renderTextIndent(w io.Writer, vals []value.ClientValue, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, v := range vals {
		if nested, ok := v.Table(); ok {
			fmt.Fprintf(w, "%s%s (table):\n", indent, v.Name)
			renderTextIndent(w, nested, depth+1)
			continue
		}
		fmt.Fprintf(w, "%s%s (%s) = %s\n", indent, v.Name, v.TypeName, formatScalar(v))
	}
}

func flatten(prefix string, vals []value.ClientValue) [][]string {
	var rows [][]string
	for _, v := range vals {
		name := v.Name
		if prefix != "" {
			name = prefix + "." + v.Name
		}
		if nested, ok := v.Table(); ok {
			rows = append(rows, flatten(name, nested)...)
			continue
		}
		rows = append(rows, []string{name, v.TypeName, formatScalar(v)})
	}
	return rows
}

func formatScalar(v value.ClientValue) string {
	switch s := v.Value.(type) {
	case string:
		return s
	case rune:
		return string(s)
	default:
		return fmt.Sprintf("%v", v.Value)
	}
}
