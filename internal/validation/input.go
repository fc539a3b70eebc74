package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxIdentifierLength bounds PGE names and product identifiers,
// which end up in file names and log fields.
const DefaultMaxIdentifierLength = 64

// Regex for basic validation of identifiers (alphanumeric, underscore, hyphen)
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrInputTooLong indicates the input string exceeds the maximum allowed length.
var ErrInputTooLong = errors.New("input exceeds maximum length")

// ErrInvalidChars indicates the input string contains disallowed characters.
var ErrInvalidChars = errors.New("input contains invalid characters")

// ValidateIdentifier checks that a PGE name or product identifier is safe to
// embed in generated file names and log entry fields.
func ValidateIdentifier(id string, maxLength int) error {
	if id == "" {
		return errors.New("identifier is empty")
	}
	if len(id) > maxLength {
		return fmt.Errorf("%w: got %d, max %d", ErrInputTooLong, len(id), maxLength)
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("%w: allowed alphanumeric, underscore, hyphen", ErrInvalidChars)
	}
	return nil
}

// SanitizeDescription reduces free text to printable characters so a log
// description can never span more than one line or carry terminal control
// sequences. Spaces are preserved, including leading and trailing ones,
// because several standard log messages end with one.
func SanitizeDescription(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || (unicode.IsPrint(r) && r != '�') {
			return r
		}
		return -1
	}, s)
}
