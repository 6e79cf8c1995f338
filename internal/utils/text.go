package utils

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	utf16LittleEndianMark = []byte{0xFF, 0xFE}
	utf16BigEndianMark    = []byte{0xFE, 0xFF}
	utf8ByteOrderMark     = []byte{0xEF, 0xBB, 0xBF}
)

// LooksLikeUTF16 reports whether data starts with a UTF-16 byte order mark.
func LooksLikeUTF16(data []byte) bool {
	return bytes.HasPrefix(data, utf16LittleEndianMark) || bytes.HasPrefix(data, utf16BigEndianMark)
}

// DecodeText converts file bytes into a string without failing.
// A byte order mark selects the encoding and is stripped; anything else is
// decoded as UTF-8 with invalid sequences replaced by U+FFFD.
func DecodeText(data []byte) string {
	if len(data) == 0 {
		return EmptyString
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, decodeError := transform.Bytes(decoder, data)
	if decodeError != nil {
		return string(bytes.ToValidUTF8(bytes.TrimPrefix(data, utf8ByteOrderMark), []byte("\uFFFD")))
	}
	return string(decoded)
}

// StripByteOrderMark removes a leading UTF-8 byte order mark.
func StripByteOrderMark(data []byte) []byte {
	decoded, _, decodeError := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if decodeError != nil {
		return bytes.TrimPrefix(data, utf8ByteOrderMark)
	}
	return decoded
}
