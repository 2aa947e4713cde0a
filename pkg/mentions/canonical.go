package mentions

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isJoiner reports punctuation that appears inside names and is kept
// during canonicalization: "Jean-Luc", "O'Brien", "St. Clair".
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '&':
		return true
	default:
		return false
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fold lowercases r and maps typographic apostrophes and dashes to ASCII.
func fold(r rune) rune {
	c := unicode.ToLower(r)
	switch c {
	case '’', '‘':
		return '\''
	case '–', '—':
		return '-'
	}
	return c
}

// Canonicalize folds s for matching. Letters, digits and joiners survive
// lowercased; every other run of runes becomes a single space, and the
// result is trimmed. Names and chapter text go through the same function.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := fold(ch)
		if isWordRune(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteByte(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimSuffix(out.String(), " ")
}

// offsetMap maps every byte position of Canonicalize(original) to the byte
// position in original it came from. The final entry is len(original).
// It must make the same keep/drop decisions as Canonicalize.
func offsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)

	lastWasSpace := true
	for pos, ch := range original {
		c := fold(ch)
		if isWordRune(c) || isJoiner(c) {
			for i := 0; i < utf8.RuneLen(c); i++ {
				mapping = append(mapping, pos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, pos)
			lastWasSpace = true
		}
	}
	// a trailing space was trimmed from the canonical form; its slot now
	// stands for end of string
	if lastWasSpace && len(mapping) > 0 && len(original) > 0 {
		mapping = mapping[:len(mapping)-1]
	}
	return append(mapping, len(original))
}

func mapOffset(canon int, mapping []int) int {
	if canon < 0 {
		return 0
	}
	if canon >= len(mapping) {
		return mapping[len(mapping)-1]
	}
	return mapping[canon]
}

// atBoundary reports whether [start,end) in the canonical haystack is not
// glued to a neighbouring letter or digit.
func atBoundary(h []byte, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRune(h[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(h) {
		if r, _ := utf8.DecodeRune(h[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}
