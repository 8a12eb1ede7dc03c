package store

import "strings"

const MaxTextLength = 1000

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeText caps text at MaxTextLength characters and then escapes the five
// HTML-significant characters. Clients render message text verbatim.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > MaxTextLength {
		text = string(runes[:MaxTextLength])
	}
	return htmlEscaper.Replace(text)
}
