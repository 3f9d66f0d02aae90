package cli

import (
	"github.com/dedbg/dedbg/internal/output"
	"github.com/dedbg/dedbg/internal/value"
)

// emitValues renders a command's result values in the selected format.
func emitValues(globals *Globals, vals []value.ClientValue) error {
	switch globals.Format {
	case "ndjson":
		return output.NewNDJSONWriter(globals.Stdout).WriteValues(vals)
	case "table":
		return output.RenderTable(globals.Stdout, vals)
	default:
		output.RenderText(globals.Stdout, vals)
		return nil
	}
}
