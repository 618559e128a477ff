package linkpreview

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// entityPattern matches every character reference DecodeEntities understands.
// Alternation in a single pattern keeps the pass left to right, so output of one
// replacement is never scanned again.
var entityPattern = regexp.MustCompile(`&(?:(amp|lt|gt|quot|apos)|#([0-9]+)|#[xX]([0-9a-fA-F]+));`)

var namedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

// DecodeEntities replaces the basic named entities and decimal or hexadecimal
// numeric references in s. References that do not name a valid Unicode scalar
// value are left as they are.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}

	return entityPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := entityPattern.FindStringSubmatch(ref)
		switch {
		case m[1] != "":
			return namedEntities[m[1]]
		case m[2] != "":
			return decodeNumeric(ref, m[2], 10)
		default:
			return decodeNumeric(ref, m[3], 16)
		}
	})
}

func decodeNumeric(ref, digits string, base int) string {
	n, err := strconv.ParseInt(digits, base, 32)
	if err != nil {
		return ref
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return ref
	}
	return string(r)
}
