package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds field identifiers and scope tags.
const MaxSlugLength = 64

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateSlug checks that s is a stable identifier.
// Slugs must already be NFC-normalised, lower-case and limited to [a-z0-9_-].
func ValidateSlug(s string) error {
	if s == "" {
		return fmt.Errorf("must not be empty")
	}
	if len(s) > MaxSlugLength {
		return fmt.Errorf("%q is longer than %d characters", s, MaxSlugLength)
	}
	if !norm.NFC.IsNormalString(s) || !slugPattern.MatchString(s) {
		return fmt.Errorf("%q must contain only a-z, 0-9, '_' and '-'", s)
	}
	return nil
}

// Slugify derives a field identifier from a display name.
//
// The name is NFC-normalised and decomposed so that accented letters keep
// their base letter ("Névé" becomes "neve"); runs of other characters
// collapse to a single underscore.
func Slugify(name string) string {
	decomposed := norm.NFD.String(norm.NFC.String(name))

	var b strings.Builder
	pendingSep := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
		}
		if b.Len() >= MaxSlugLength {
			break
		}
	}

	s := b.String()
	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
	}
	return strings.TrimRight(s, "_")
}
