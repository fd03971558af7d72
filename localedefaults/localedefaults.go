// Package localedefaults discovers locale-derived defaults — decimal
// separator, thousands separator, currency code — for the reader façade
// to inject into the core's number-format configuration. Per spec §9,
// the core never calls locale APIs itself; this package is the one place
// that's allowed to.
package localedefaults

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// Defaults is the locale-derived subset of Config the façade applies
// when the caller hasn't overridden it with WithLocale.
type Defaults struct {
	DecimalSeparator  string
	ThousandSeparator string
	CurrencyCode      string
}

// For returns the defaults for tag, falling back to en-US conventions
// when the tag's currency cannot be resolved.
func For(tag language.Tag) Defaults {
	d := Defaults{DecimalSeparator: ".", ThousandSeparator: ",", CurrencyCode: "USD"}

	if unit, confidence := currency.FromTag(tag); confidence != language.No {
		d.CurrencyCode = unit.String()
	}

	// en/most Latin-script locales use '.' for decimals and ',' for
	// grouping; several major European locales swap them. x/text does
	// not expose a direct "decimal separator" API, so this narrows on
	// the small set of base languages the pack's formats table (spec
	// §4.4) actually needs to distinguish.
	switch base, _ := tag.Base(); base.String() {
	case "de", "fr", "es", "it", "pt", "nl", "pl", "ru", "tr", "da", "fi", "sv", "nb", "nn":
		d.DecimalSeparator = ","
		d.ThousandSeparator = "."
	}
	return d
}

// System returns the English (en-US) defaults; it does not read the
// process's locale settings.
func System() Defaults {
	return For(language.English)
}
