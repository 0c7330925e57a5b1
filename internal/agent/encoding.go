package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// decodeText decodes raw remote file bytes under the requested text
// encoding. Unsupported encodings and undecodable content are reported
// as errors; the caller turns them into an error payload.
func decodeText(data []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "utf-8", "utf8":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("content is not valid UTF-8")
		}
		return string(data), nil

	case "ascii", "us-ascii":
		for i, b := range data {
			if b > 0x7F {
				return "", fmt.Errorf("non-ASCII byte 0x%02X at offset %d", b, i)
			}
		}
		return string(data), nil

	case "latin-1", "latin1", "iso-8859-1":
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		return string(runes), nil

	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding)
	}
}
