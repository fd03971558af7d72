package xlsxreader

import "github.com/mholt-reader/xlsxreader/internal/sharedstrings"

// Config holds the Reader's configuration, per spec §6's table.
type Config struct {
	TempDir                string
	ReturnDateTimeObjects  bool
	OutputColumnNames      bool
	SkipEmptyCells         bool
	SharedStrings          sharedstrings.Config
	CustomizedFormats      map[int]string
	ForceDateFormat        string
	ForceTimeFormat        string
	ForceDatetimeFormat    string
	DecimalSeparator       string
	ThousandSeparator      string
	CurrencyCode           string
}

// defaultConfig returns the documented defaults, mirroring the teacher's
// defaultOptions()/ExtractOptions pattern.
func defaultConfig() Config {
	return Config{
		SharedStrings:     sharedstrings.DefaultConfig(),
		DecimalSeparator:  ".",
		ThousandSeparator: ",",
		CurrencyCode:      "USD",
	}
}

// clone deep-copies c so option chaining never mutates a shared Config.
func (c Config) clone() Config {
	next := c
	if c.CustomizedFormats != nil {
		next.CustomizedFormats = make(map[int]string, len(c.CustomizedFormats))
		for k, v := range c.CustomizedFormats {
			next.CustomizedFormats[k] = v
		}
	}
	return next
}

// Option configures a Reader at Open time.
type Option func(*Config)

// WithTempDir sets the base directory for work files; if unset, the
// system temp directory is used.
func WithTempDir(dir string) Option { return func(c *Config) { c.TempDir = dir } }

// WithReturnDateTimeObjects makes DateTime cells return typed values
// instead of formatted strings.
func WithReturnDateTimeObjects(b bool) Option {
	return func(c *Config) { c.ReturnDateTimeObjects = b }
}

// WithOutputColumnNames remaps row keys to column letters.
func WithOutputColumnNames(b bool) Option { return func(c *Config) { c.OutputColumnNames = b } }

// WithSkipEmptyCells omits gaps; an all-empty row becomes a single null
// placeholder when enabled.
func WithSkipEmptyCells(b bool) Option { return func(c *Config) { c.SkipEmptyCells = b } }

// WithSharedStringsConfig overrides the shared-strings cache/spill tuning.
func WithSharedStringsConfig(cfg sharedstrings.Config) Option {
	return func(c *Config) { c.SharedStrings = cfg }
}

// WithCustomizedFormat overrides the format code used for a builtin
// numFmtId; ids that aren't already in the builtin table are ignored,
// per spec §6.
func WithCustomizedFormat(numFmtID int, code string) Option {
	return func(c *Config) {
		if c.CustomizedFormats == nil {
			c.CustomizedFormats = map[int]string{}
		}
		c.CustomizedFormats[numFmtID] = code
	}
}

// WithForceDateFormat overrides the rendered string for date-only cells.
func WithForceDateFormat(format string) Option {
	return func(c *Config) { c.ForceDateFormat = format }
}

// WithForceTimeFormat overrides the rendered string for time-only cells.
func WithForceTimeFormat(format string) Option {
	return func(c *Config) { c.ForceTimeFormat = format }
}

// WithForceDatetimeFormat overrides the rendered string for combined
// date+time cells.
func WithForceDatetimeFormat(format string) Option {
	return func(c *Config) { c.ForceDatetimeFormat = format }
}

// WithLocale overrides the decimal separator, thousands separator, and
// currency code that would otherwise come from localedefaults.
func WithLocale(decimalSep, thousandSep, currencyCode string) Option {
	return func(c *Config) {
		c.DecimalSeparator = decimalSep
		c.ThousandSeparator = thousandSep
		c.CurrencyCode = currencyCode
	}
}
