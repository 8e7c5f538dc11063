package main

import (
	"encoding/json"
	"io"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Print writes v as indented JSON, or calls text for the text format.
func (f *OutputFormatter) Print(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(f.Writer)
	return nil
}
