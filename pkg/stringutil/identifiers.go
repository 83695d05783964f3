package stringutil

import (
	"strings"
	"unicode"
)

// splitWords breaks an identifier into lowercase words, recognising
// snake_case, kebab-case, and camelCase/PascalCase boundaries. It is the
// shared tokenizer behind the template engine's case-conversion helpers
// (§4.3: "snake, kebab, upper, lower, capitalise").
func splitWords(s string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r):
			// Start a new word on an uppercase letter unless it continues
			// an existing run of uppercase letters (e.g. "ID" in "ProjectID").
			if current.Len() > 0 {
				prevLower := unicode.IsLower(runes[i-1])
				if prevLower {
					flush()
				}
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

// ToSnakeCase converts an identifier to snake_case.
func ToSnakeCase(s string) string {
	return strings.Join(splitWords(s), "_")
}

// ToKebabCase converts an identifier to kebab-case.
func ToKebabCase(s string) string {
	return strings.Join(splitWords(s), "-")
}

// ToUpperCase converts an identifier to UPPER_SNAKE_CASE.
func ToUpperCase(s string) string {
	return strings.ToUpper(ToSnakeCase(s))
}

// ToLowerCase lowercases an identifier without changing word separators.
func ToLowerCase(s string) string {
	return strings.ToLower(s)
}

// Capitalise upper-cases the first rune of s and leaves the rest untouched.
func Capitalise(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// ToPascalCase converts an identifier to PascalCase, e.g. for generated Go
// or Rust type names in rendered template output.
func ToPascalCase(s string) string {
	words := splitWords(s)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(Capitalise(w))
	}
	return b.String()
}

// ToCamelCase converts an identifier to camelCase.
func ToCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if pascal == "" {
		return pascal
	}
	r := []rune(pascal)
	return strings.ToLower(string(r[0])) + string(r[1:])
}
