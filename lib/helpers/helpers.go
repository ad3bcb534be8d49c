package helpers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"math"
	"strings"
)

// EscapeMarkdownV2 escapes text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdownV2(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")

	charactersToEscape := []string{".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}
	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// FormatPriceUS picks the number of decimals from the magnitude of price.
func FormatPriceUS(price float64, escapeMarkdown bool) string {
	decimals := 6
	switch {
	case price >= 1000:
		decimals = 0
	case price > 1.2:
		decimals = 2
	case price < 0.00001:
		decimals = 8
	}

	formatted := FormatNumber(price, decimals)
	if escapeMarkdown {
		return EscapeMarkdownV2(formatted)
	}
	return formatted
}

// FormatNumber prints v with thousand separators and a fixed number of decimals.
func FormatNumber(v float64, decimals int) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", decimals, v)
}

// FormatSigned prints v with an explicit sign, e.g. "+5.25" or "-3.10".
func FormatSigned(v float64, decimals int) string {
	sign := "+"
	if v < 0 {
		sign = "-"
	}
	return sign + FormatNumber(math.Abs(v), decimals)
}
