package service

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"groupflow/distributor/internal/model"
)

const (
	maxSlugLength = 60
	fallbackSlug  = "campaign"
)

// RenderGroupName substitutes the group number into tpl. Both
// "#{group_number}" and "{group_number}" are accepted, so
// "Group #{group_number}" renders as "Group 7".
func RenderGroupName(tpl string, number int) string {
	n := strconv.Itoa(number)
	out := strings.ReplaceAll(tpl, "#"+model.GroupNumberPlaceholder, n)
	return strings.ReplaceAll(out, model.GroupNumberPlaceholder, n)
}

// Slugify lowercases name, strips accents, and joins alphanumeric runs with "-".
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// slugCandidate returns base for attempt 0 and base-N afterwards.
func slugCandidate(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(attempt)
}
