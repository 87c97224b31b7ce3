package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// hyphenBreak matcht Silbentrennung am Zeilenende ("Modell-\nvergleich").
var hyphenBreak = regexp.MustCompile(`(\p{L})-\s*\n\s*(\p{L})`)

// multiSpace kollabiert Folgen von Leerzeichen und Tabs.
var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

// multiNewline kollabiert mehr als eine Leerzeile.
var multiNewline = regexp.MustCompile(`\n{3,}`)

// ligatures sind typografische Ligaturen, die PDF-Extraktion gern stehen lässt.
var ligatures = strings.NewReplacer(
	"ﬀ", "ff", "ﬁ", "fi", "ﬂ", "fl", "ﬃ", "ffi", "ﬄ", "ffl",
	"’", "'", "‘", "'", "“", `"`, "”", `"`, "–", "-", "—", "-",
)

// CleanExtractedText normalisiert rohen PDF-Extrakt, bevor er an den
// Summarization-Service geht: Unicode-Normalisierung, Ligaturen,
// Silbentrennungs-Reparatur und Whitespace-Kollaps. Die Heuristiken sind
// bewusst konservativ; inhaltliche Zeilen werden nie entfernt.
func CleanExtractedText(raw string) string {
	if raw == "" {
		return ""
	}

	text := ligatures.Replace(raw)
	text = normalizeUnicode(text)
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = multiSpace.ReplaceAllString(text, " ")

	// Zeilen trimmen, Steuerzeichen-Reste verwerfen.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// TruncateRunes kürzt Text auf maxRunes, ohne Runen zu zerschneiden.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

// normalizeUnicode wendet NFKC an und entfernt nicht druckbare Zeichen.
func normalizeUnicode(s string) string {
	t := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return !unicode.IsPrint(r) && r != '\n' && r != '\t'
		})),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
