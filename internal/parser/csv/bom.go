package csv

import "strings"

const (
	utf8BOM = "\uFEFF"

	// latin1BOM is a UTF-8 byte order mark read through the Latin-1 decoder.
	latin1BOM = "\u00ef\u00bb\u00bf"
)

// stripBOM removes a byte order mark from the first header cell, whether it
// was decoded as UTF-8 or as three Latin-1 characters.
func stripBOM(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	return strings.TrimPrefix(s, latin1BOM)
}
