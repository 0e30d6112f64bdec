package snapshot

import (
	"fmt"
	"regexp"
	"strings"

	"browser-pilot/internal/entity"
)

const maxClassCandidates = 2

var (
	idPattern   = regexp.MustCompile(`^[a-zA-Z][^\s]*$`)
	hashPattern = regexp.MustCompile(`^[a-f0-9]{8,}$`)
)

// BuildCandidates derives the ordered selector candidate list for one
// element: identifier, name, placeholder, type, class, most specific first.
// Buttons with visible text additionally get a text-derived candidate at
// the end of the list. An attribute contributes only when non-empty.
func BuildCandidates(d entity.ElementDescriptor) []string {
	var candidates []string

	// HTML5 allows ids the #-shorthand cannot express (leading digit,
	// whitespace); those still get an attribute-selector candidate.
	if d.ID != "" {
		if idPattern.MatchString(d.ID) {
			candidates = append(candidates, "#"+d.ID)
		} else {
			candidates = append(candidates, fmt.Sprintf("%s[id=%q]", d.Tag, d.ID))
		}
	}

	if d.Name != "" {
		candidates = append(candidates, fmt.Sprintf("%s[name=%q]", d.Tag, d.Name))
	}

	if d.Placeholder != "" {
		candidates = append(candidates, fmt.Sprintf("%s[placeholder=%q]", d.Tag, d.Placeholder))
	}

	if d.Type != "" {
		candidates = append(candidates, fmt.Sprintf("%s[type=%q]", d.Tag, d.Type))
	}

	if classes := usableClasses(d.Classes); len(classes) > 0 {
		candidates = append(candidates, "."+strings.Join(classes, "."))
	}

	if d.Kind == entity.ElementKindButton && d.Text != "" {
		text := d.Text
		// Truncate on rune boundaries; splitting a multi-byte rune would
		// yield a selector that never matches.
		if runes := []rune(text); len(runes) > 60 {
			text = string(runes[:60])
		}
		candidates = append(candidates, fmt.Sprintf("%s:has-text(%q)", d.Tag, text))
	}

	return candidates
}

// usableClasses drops generated-looking class names: leading digits, hex
// hashes, anything too long to be hand-written.
func usableClasses(classes []string) []string {
	usable := make([]string, 0, maxClassCandidates)

	for _, c := range classes {
		if c == "" || len(c) >= 40 {
			continue
		}

		if c[0] >= '0' && c[0] <= '9' {
			continue
		}

		if hashPattern.MatchString(c) {
			continue
		}

		usable = append(usable, c)
		if len(usable) == maxClassCandidates {
			break
		}
	}

	return usable
}
