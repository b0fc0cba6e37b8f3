package model

import (
	"strings"
	"unicode"
)

// SnakeCase converts an identifier to lower_snake_case. Identifiers that
// already contain underscores are lowercased as-is.
func SnakeCase(s string) string {
	if s == "" {
		return ""
	}

	if strings.Contains(s, "_") {
		return strings.ToLower(s)
	}

	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			// Add underscore before uppercase letter if:
			// - Not the first character
			// - Previous character is lowercase OR
			// - Previous character is uppercase but next is lowercase (handling acronyms)
			if i > 0 {
				prev := rune(s[i-1])
				if unicode.IsLower(prev) {
					result.WriteRune('_')
				} else if i+1 < len(s) && unicode.IsLower(rune(s[i+1])) {
					result.WriteRune('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// Pluralize converts singular nouns to plural form using common English rules.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	irregulars := map[string]string{
		"person": "people",
		"child":  "children",
		"man":    "men",
		"woman":  "women",
		"tooth":  "teeth",
		"foot":   "feet",
		"mouse":  "mice",
		"goose":  "geese",
	}
	if plural, ok := irregulars[lower]; ok {
		return plural
	}

	// Words ending in s, x, z, ch, sh: add "es"
	if strings.HasSuffix(lower, "s") ||
		strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "z") ||
		strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh") {
		return lower + "es"
	}

	// Words ending in consonant + y: change y to ies
	if strings.HasSuffix(lower, "y") && len(lower) > 1 {
		if !isVowel(lower[len(lower)-2]) {
			return lower[:len(lower)-1] + "ies"
		}
	}

	// Words ending in f or fe: change to ves
	if strings.HasSuffix(lower, "fe") {
		return lower[:len(lower)-2] + "ves"
	}
	if strings.HasSuffix(lower, "f") {
		return lower[:len(lower)-1] + "ves"
	}

	return lower + "s"
}

// Singularize converts plural nouns back to singular form. It reverses
// Pluralize for the rule set above, except that every "ves" ending becomes
// "f", so plurals of "fe" words come back as "f" (knives -> knif). Other
// shapes are returned lowercased.
func Singularize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	irregulars := map[string]string{
		"people":   "person",
		"children": "child",
		"men":      "man",
		"women":    "woman",
		"teeth":    "tooth",
		"feet":     "foot",
		"mice":     "mouse",
		"geese":    "goose",
	}
	if singular, ok := irregulars[lower]; ok {
		return singular
	}

	if strings.HasSuffix(lower, "ies") && len(lower) > 3 {
		return lower[:len(lower)-3] + "y"
	}
	if strings.HasSuffix(lower, "ves") && len(lower) > 3 {
		return lower[:len(lower)-3] + "f"
	}
	if strings.HasSuffix(lower, "ses") || strings.HasSuffix(lower, "xes") ||
		strings.HasSuffix(lower, "zes") || strings.HasSuffix(lower, "ches") ||
		strings.HasSuffix(lower, "shes") {
		return lower[:len(lower)-2]
	}
	if strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") {
		return lower[:len(lower)-1]
	}

	return lower
}

func isVowel(c byte) bool {
	return c == 'a' || c == 'e' || c == 'i' || c == 'o' || c == 'u'
}

// IsSnake reports whether an identifier is already normalized
// lower_snake_case: lowercase letters, digits, and underscores, starting
// with a letter.
func IsSnake(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_' && i > 0:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
