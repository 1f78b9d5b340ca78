package stringutil

import (
	"bytes"
	"unicode"
)

// PascalToSnake converts Go field names to column and option names, keeping
// initialisms together ("UploadsPlaylistID" becomes "uploads_playlist_id").
func PascalToSnake(s string) string {
	var b bytes.Buffer

	runes := []rune(s)

	for i, c := range runes {
		if !unicode.IsUpper(c) {
			b.WriteRune(c)
			continue
		}

		if i > 0 {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteByte('_')
			}
		}

		b.WriteRune(unicode.ToLower(c))
	}

	return b.String()
}
