package model

import (
	"regexp"
	"strings"
)

var (
	invalidChars    = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	trailingDots    = regexp.MustCompile(`[. ]+$`)
	multiWhitespace = regexp.MustCompile(`\s+`)
)

// reservedNames are device names Windows refuses as file names,
// with or without an extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// maxNameBytes keeps a single path element under the common 255 byte limit.
const maxNameBytes = 240

// SanitizeName makes a remote display name safe to use as a single path element.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are removed
//   - Whitespace runs are collapsed to a single space
//   - Leading whitespace and trailing dots/spaces are removed
//   - Windows device names (CON, NUL, COM1...) get a "_" prefix
//   - Names longer than 240 bytes are cut on a rune boundary
//   - An empty result becomes "unnamed"
//
// Emoji and other printable unicode are kept as-is.
//
// Example:
//
//	SanitizeName("Show: S1/E2?")  // Returns "Show S1E2"
//	SanitizeName("⭐ NEW  files.") // Returns "⭐ NEW files"
func SanitizeName(name string) string {
	name = invalidChars.ReplaceAllString(name, "")
	name = multiWhitespace.ReplaceAllString(name, " ")
	name = strings.TrimLeft(name, " ")
	name = trailingDots.ReplaceAllString(name, "")

	if len(name) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !isRuneStart(name[cut]) {
			cut--
		}
		name = trailingDots.ReplaceAllString(name[:cut], "")
	}

	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if _, ok := reservedNames[strings.ToUpper(base)]; ok {
		name = "_" + name
	}

	if name == "" {
		return "unnamed"
	}
	return name
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
