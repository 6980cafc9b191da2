package metadata

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// Prefixes added by upload tooling: a millisecond timestamp and an
	// optional 8-hex random suffix, e.g. "1700000000000-1a2b3c4d-".
	timestampPrefix = regexp.MustCompile(`^\d{10,}[-_]`)
	randomPrefix    = regexp.MustCompile(`^[0-9a-fA-F]{8}[-_]`)
	separatorRuns   = regexp.MustCompile(`[\s_.\-]+`)
)

// UntitledTitle is used when nothing usable is left of a filename.
const UntitledTitle = "Untitled"

// TitleFromFilename derives a display title from a file name. Every word is
// title-cased, so acronyms lose their capitals ("DJ_ABC" -> "Dj Abc").
//
//	"1700000000000-1a2b3c4d-my_great-song.mp3" -> "My Great Song"
func TitleFromFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if timestampPrefix.MatchString(base) {
		base = timestampPrefix.ReplaceAllString(base, "")
		base = randomPrefix.ReplaceAllString(base, "")
	}

	base = strings.TrimSpace(separatorRuns.ReplaceAllString(base, " "))
	if base == "" || base == "." {
		return UntitledTitle
	}
	return cases.Title(language.Und).String(base)
}
