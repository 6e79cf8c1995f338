package utils

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	languageEnvironmentVariable = "LANG"
	unknownCountLabel           = "unknown"
)

// FormatFileSize converts a byte length into a human-readable lower-case unit string.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return "0b"
	}
	units := []string{"b", "kb", "mb", "gb", "tb", "pb"}
	value := float64(bytes)
	unitIndex := 0
	for value >= 1024 && unitIndex < len(units)-1 {
		value /= 1024
		unitIndex++
	}
	if unitIndex == 0 {
		return fmt.Sprintf("%db", bytes)
	}
	if value < 10 {
		formatted := fmt.Sprintf("%.1f", value)
		formatted = strings.TrimSuffix(formatted, ".0")
		return formatted + units[unitIndex]
	}
	return fmt.Sprintf("%.0f%s", value, units[unitIndex])
}

// FormatCount renders a count with digit grouping for the given language tag.
// Negative counts render as "unknown".
func FormatCount(count int, tag language.Tag) string {
	if count < 0 {
		return unknownCountLabel
	}
	return message.NewPrinter(tag).Sprintf("%d", count)
}

// EnvironmentLanguage resolves the display language from the LANG environment variable.
func EnvironmentLanguage() language.Tag {
	rawValue := strings.TrimSpace(os.Getenv(languageEnvironmentVariable))
	if rawValue == "" {
		return language.English
	}
	localeName := strings.SplitN(rawValue, ".", 2)[0]
	localeName = strings.ReplaceAll(localeName, "_", "-")
	tag, parseError := language.Parse(localeName)
	if parseError != nil {
		return language.English
	}
	return tag
}
