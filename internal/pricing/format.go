package pricing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts as localized currency strings for one deployment.
type Formatter struct {
	unit    currency.Unit
	tag     language.Tag
	scale   int
	printer *message.Printer
	style   numberStyle
}

// numberStyle is how a locale writes a currency amount.
type numberStyle struct {
	group   string
	decimal string
	suffix  bool
}

// suffixLanguages write the symbol after the amount ("1.234,50 €").
var suffixLanguages = map[string]bool{
	"bg": true, "cs": true, "da": true, "de": true, "el": true, "es": true,
	"et": true, "fi": true, "fr": true, "hr": true, "hu": true, "it": true,
	"lt": true, "lv": true, "nb": true, "pl": true, "ro": true, "ru": true,
	"sk": true, "sl": true, "sv": true, "uk": true,
}

// styleFor reads the separators from a sample printed by x/text, so the
// amount itself never passes through float64.
func styleFor(tag language.Tag, p *message.Printer) numberStyle {
	sample := p.Sprint(number.Decimal(1234567.5, number.Scale(1)))
	var seps []string
	var run []rune
	for _, r := range sample {
		if unicode.IsDigit(r) {
			if len(run) > 0 {
				seps = append(seps, string(run))
				run = nil
			}
			continue
		}
		run = append(run, r)
	}
	st := numberStyle{decimal: "."}
	if n := len(seps); n > 0 {
		st.decimal = seps[n-1]
		if n > 1 {
			st.group = seps[0]
		}
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	st.suffix = suffixLanguages[base.String()] || (base.String() == "pt" && region.String() == "PT")
	return st
}

// NewFormatter builds a Formatter for an ISO 4217 code and a BCP 47 locale.
func NewFormatter(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	printer := message.NewPrinter(tag)
	return &Formatter{
		unit:    unit,
		tag:     tag,
		scale:   scale,
		printer: printer,
		style:   styleFor(tag, printer),
	}, nil
}

// MustFormatter is NewFormatter that panics on invalid configuration.
func MustFormatter(code, locale string) *Formatter {
	f, err := NewFormatter(code, locale)
	if err != nil {
		panic(err)
	}
	return f
}

// Currency returns the ISO code of the configured currency.
func (f *Formatter) Currency() string { return f.unit.String() }

// Round rounds amount half away from zero to the currency's minor unit.
func (f *Formatter) Round(amount Money) Money {
	return amount.Round(int32(f.scale))
}

// Format renders amount, e.g. "$1,234.50" for USD in en-US and
// "1.234,50 €" for EUR in de-DE.
func (f *Formatter) Format(amount Money) string {
	rounded := f.Round(amount)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	symbol := f.printer.Sprint(currency.NarrowSymbol(f.unit))
	digits := f.digits(rounded)
	if f.style.suffix {
		return sign + digits + " " + symbol
	}
	return sign + symbol + digits
}

// digits groups the exact decimal string of a non-negative amount.
func (f *Formatter) digits(amount Money) string {
	whole, frac, _ := strings.Cut(amount.StringFixed(int32(f.scale)), ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(f.style.group)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString(f.style.decimal)
		b.WriteString(frac)
	}
	return b.String()
}

// FormatFloat is Format for callers holding a float amount.
func (f *Formatter) FormatFloat(amount float64) string {
	return f.Format(decimal.NewFromFloat(amount))
}
