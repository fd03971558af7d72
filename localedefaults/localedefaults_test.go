package localedefaults

import (
	"testing"

	"golang.org/x/text/language"
)

func TestFor_German_SwapsSeparators(t *testing.T) {
	d := For(language.German)
	if d.DecimalSeparator != "," || d.ThousandSeparator != "." {
		t.Errorf("For(de) = %+v, want decimal=\",\" thousand=\".\"", d)
	}
	if d.CurrencyCode != "EUR" {
		t.Errorf("For(de).CurrencyCode = %q, want EUR", d.CurrencyCode)
	}
}

func TestFor_English_UsesLatinConventions(t *testing.T) {
	d := For(language.English)
	if d.DecimalSeparator != "." || d.ThousandSeparator != "," {
		t.Errorf("For(en) = %+v, want decimal=\".\" thousand=\",\"", d)
	}
	if d.CurrencyCode != "USD" {
		t.Errorf("For(en).CurrencyCode = %q, want USD", d.CurrencyCode)
	}
}

func TestFor_Japanese_DefaultsToLatinSeparators(t *testing.T) {
	d := For(language.Japanese)
	if d.DecimalSeparator != "." || d.ThousandSeparator != "," {
		t.Errorf("For(ja) = %+v, want decimal=\".\" thousand=\",\" (not in the swap list)", d)
	}
	if d.CurrencyCode != "JPY" {
		t.Errorf("For(ja).CurrencyCode = %q, want JPY", d.CurrencyCode)
	}
}

func TestSystem_ReturnsEnglishDefaults(t *testing.T) {
	d := System()
	want := For(language.English)
	if d != want {
		t.Errorf("System() = %+v, want %+v", d, want)
	}
}
