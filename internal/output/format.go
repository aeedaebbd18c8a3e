package output

import "strings"

// Format specifies the output format of the plan command.
type Format string

const (
	// FormatTable outputs a styled table.
	FormatTable Format = "table"

	// FormatYAML outputs YAML.
	FormatYAML Format = "yaml"

	// FormatJSON outputs JSON.
	FormatJSON Format = "json"
)

// String returns the string representation of the output format.
func (f Format) String() string {
	return string(f)
}

// ParseFormat parses a string into a Format. The second result is false
// for unknown formats.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, true
	case "yaml", "yml":
		return FormatYAML, true
	case "json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// ValidFormats returns a slice of valid output format strings.
func ValidFormats() []string {
	return []string{"table", "yaml", "json"}
}
