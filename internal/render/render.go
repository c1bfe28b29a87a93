// Package render writes a crawled catalog as a styled text report, JSON or
// YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbcrawl/internal/schema"
	"github.com/sadopc/dbcrawl/internal/snapshot"
	"github.com/sadopc/dbcrawl/internal/theme"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats in help order.
var Formats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Write renders cat to w. The theme only affects text output; nil means
// plain text.
func Write(w io.Writer, cat *schema.Catalog, f Format, th *theme.Theme) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot.FromCatalog(cat))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snapshot.FromCatalog(cat)); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		if th == nil {
			th = theme.Plain()
		}
		_, err := io.WriteString(w, Text(cat, th))
		return err
	}
	return fmt.Errorf("unknown output format %q", f)
}
