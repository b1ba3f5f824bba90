package core

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DisplayLanguage is the locale used for amounts shown to people.
var DisplayLanguage = language.BrazilianPortuguese

// Localized renders the amount with two fraction digits and the grouping and
// decimal separators of tag, e.g. "1.234,50" for pt-BR. Use String for
// machine-readable output.
func (m Money) Localized(tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf("%.2f", m.Float64())
}

// Currency prefixes Localized with the real sign.
func (m Money) Currency(tag language.Tag) string {
	if m.IsNegative() {
		return "-R$ " + Money{Amount: m.Amount.Neg()}.Localized(tag)
	}
	return "R$ " + m.Localized(tag)
}
