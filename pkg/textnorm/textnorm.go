// Package textnorm strips diacritics from Latin text so that searches can
// match "sao paulo" against "São Paulo".
package textnorm

import (
	"strings"
	"unicode"
)

// accentTable maps each accented rune to its ASCII base letter.
var accentTable = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n', 'ý': 'y', 'ÿ': 'y',
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U',
	'Ç': 'C', 'Ñ': 'N', 'Ý': 'Y',
}

// pairs is the table in a stable order, built once.
var pairsFrom, pairsTo = buildPairs()

func buildPairs() (string, string) {
	const order = "àáâãäåèéêëìíîïòóôõöùúûüçñýÿÀÁÂÃÄÅÈÉÊËÌÍÎÏÒÓÔÕÖÙÚÛÜÇÑÝ"
	var from, to strings.Builder
	for _, r := range order {
		from.WriteRune(r)
		to.WriteRune(accentTable[r])
	}
	return from.String(), to.String()
}

// Normalize replaces accented Latin characters with their unaccented
// equivalents. Every other rune is returned unchanged.
func Normalize(s string) string {
	if isASCII(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if base, ok := accentTable[r]; ok {
			return base
		}
		return r
	}, s)
}

// Fold normalizes and lower-cases s for accent and case insensitive comparison.
func Fold(s string) string {
	return strings.ToLower(Normalize(strings.TrimSpace(s)))
}

// Contains reports whether needle occurs in haystack ignoring case and accents.
// An empty needle matches everything.
func Contains(haystack, needle string) bool {
	n := Fold(needle)
	if n == "" {
		return true
	}
	return strings.Contains(Fold(haystack), n)
}

// Equal compares two strings ignoring case, accents and surrounding spaces.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Pairs returns the table as two equally long strings suitable for SQL
// translate(col, from, to).
func Pairs() (from, to string) {
	return pairsFrom, pairsTo
}

// SnakeCase turns a display name into an ASCII snake_case identifier:
// "Relatório de Rebanhos" becomes "relatorio_de_rebanhos".
func SnakeCase(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range Fold(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
