package canon

import (
	"sort"
	"strings"
	"unicode"
)

// soundexCode computes the classic four-character Soundex code of a single
// token. Non-ASCII letters are treated as their base letter where possible
// and otherwise skipped.
func soundexCode(token string) string {
	token = strings.ToUpper(token)

	var letters []rune
	for _, r := range token {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	digit := func(r rune) byte {
		switch r {
		case 'B', 'F', 'P', 'V':
			return '1'
		case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
			return '2'
		case 'D', 'T':
			return '3'
		case 'L':
			return '4'
		case 'M', 'N':
			return '5'
		case 'R':
			return '6'
		default:
			return 0 // vowels, H, W, Y
		}
	}

	code := []byte{byte(letters[0])}
	prev := digit(letters[0])
	for _, r := range letters[1:] {
		d := digit(r)
		if d != 0 && d != prev {
			code = append(code, d)
			if len(code) == 4 {
				break
			}
		}
		// H and W are transparent for adjacency, vowels reset it
		if d != 0 || r == 'A' || r == 'E' || r == 'I' || r == 'O' || r == 'U' || r == 'Y' {
			prev = d
		}
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// phoneticKey computes the phonetic code of a variant from its surname,
// taken as the last normalized token. Given names vary too freely across
// diminutives ("Bill" for "William") to key on, so the surname carries the
// phonetic signal and the exact-token guard supplies the rest.
func phoneticKey(variant string) string {
	tokens := nameTokens(variant)
	if len(tokens) == 0 {
		return ""
	}
	return soundexCode(tokens[len(tokens)-1])
}

// nameTokens lowercases the variant, strips punctuation and splits it into
// tokens. "Clinton, Bill" yields ["clinton", "bill"].
func nameTokens(variant string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(variant) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	tokens := strings.Fields(b.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// tokenKey is the order-insensitive multiset key of a variant's normalized
// tokens. "Last, First" and "First Last" share a key.
func tokenKey(variant string) string {
	tokens := nameTokens(variant)
	if len(tokens) == 0 {
		return ""
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// shareToken reports whether two variants have at least one exact
// normalized token in common.
func shareToken(a, b string) bool {
	set := make(map[string]bool)
	for _, t := range nameTokens(a) {
		set[t] = true
	}
	for _, t := range nameTokens(b) {
		if set[t] {
			return true
		}
	}
	return false
}

// generational and honorific suffixes recognized by the suffix pass
var nameSuffixes = []string{"jr", "sr", "ii", "iii", "iv", "esq", "phd", "md"}

// stripSuffix removes one trailing recognized suffix token from the variant
// and returns the normalized base, or the normalized variant unchanged when
// no suffix is present.
func stripSuffix(variant string) (string, bool) {
	tokens := nameTokens(variant)
	if len(tokens) < 2 {
		return strings.Join(tokens, " "), false
	}
	last := tokens[len(tokens)-1]
	for _, s := range nameSuffixes {
		if last == s {
			return strings.Join(tokens[:len(tokens)-1], " "), true
		}
	}
	return strings.Join(tokens, " "), false
}
