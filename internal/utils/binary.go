package utils

import "unicode/utf8"

// IsBinary reports whether the provided byte slice appears to contain binary data.
// UTF-16 content announced by a byte order mark is treated as text.
func IsBinary(data []byte) bool {
	if len(data) == 0 || LooksLikeUTF16(data) {
		return false
	}
	for _, byteValue := range data {
		if byteValue == 0 {
			return true
		}
	}
	return !utf8.Valid(data)
}
