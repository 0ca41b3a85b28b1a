// Package displayfmt turns raw warehouse values into display strings.
//
// Formatting rules (currency, percentage, rounding, date patterns, boolean
// labels) are per-field configuration consumed by the result mapper. Number
// rendering is locale-aware via golang.org/x/text.
package displayfmt

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/leapstack-labs/metriq/pkg/types"
)

// Style selects the display style for numeric fields.
type Style string

const (
	// StylePlain renders numbers with locale grouping separators.
	StylePlain Style = ""
	// StyleID renders numbers without grouping (identifiers, years).
	StyleID Style = "id"
	// StylePercent multiplies by 100 and appends a percent sign.
	StylePercent Style = "percent"
	// StyleCurrency prefixes the configured currency symbol.
	StyleCurrency Style = "currency"
)

// Options is the per-field display format configuration.
type Options struct {
	Style       Style  `json:"style,omitempty" yaml:"style,omitempty"`
	Currency    string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Round       *int   `json:"round,omitempty" yaml:"round,omitempty"`
	DatePattern string `json:"datePattern,omitempty" yaml:"date_pattern,omitempty"`
	TrueLabel   string `json:"trueLabel,omitempty" yaml:"true_label,omitempty"`
	FalseLabel  string `json:"falseLabel,omitempty" yaml:"false_label,omitempty"`
}

// Default layouts for temporal values.
const (
	DefaultDateLayout      = "2006-01-02"
	DefaultTimestampLayout = "2006-01-02 15:04:05"
)

// DefaultNullLabel is shown for null raw values unless overridden.
const DefaultNullLabel = "-"

// Formatter renders raw values according to field options. It is immutable
// and safe for concurrent use.
type Formatter struct {
	printer   *message.Printer
	location  *time.Location
	nullLabel string
}

// Config configures a Formatter.
type Config struct {
	// Locale is a BCP 47 tag for number formatting ("en", "de", ...).
	Locale string
	// Timezone is the IANA zone for date/timestamp display. Empty means UTC.
	Timezone string
	// NullLabel replaces null raw values. Empty means DefaultNullLabel.
	NullLabel string
}

// New builds a Formatter. Unknown locales and timezones are errors so that
// a misconfigured request fails before any rows are mapped.
func New(cfg Config) (*Formatter, error) {
	locale := cfg.Locale
	if locale == "" {
		locale = "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
	}

	nullLabel := cfg.NullLabel
	if nullLabel == "" {
		nullLabel = DefaultNullLabel
	}

	return &Formatter{
		printer:   message.NewPrinter(tag),
		location:  loc,
		nullLabel: nullLabel,
	}, nil
}

// WithLocation returns a copy of the formatter that renders temporal values
// in the given zone. A nil location returns the formatter unchanged.
func (f *Formatter) WithLocation(loc *time.Location) *Formatter {
	if loc == nil || loc == f.location {
		return f
	}
	clone := *f
	clone.location = loc
	return &clone
}

// Format renders a raw value for a field of the given semantic type.
// Nil raw values always format to the null label, never panic.
func (f *Formatter) Format(raw any, t types.ValueType, opts *Options) string {
	if raw == nil {
		return f.nullLabel
	}
	if opts == nil {
		opts = &Options{}
	}

	switch t {
	case types.TypeNumber:
		return f.formatNumber(raw, opts)
	case types.TypeBoolean:
		return f.formatBool(raw, opts)
	case types.TypeDate, types.TypeTimestamp:
		return f.formatTime(raw, t, opts)
	default:
		return toString(raw)
	}
}

// NullLabel returns the configured null label.
func (f *Formatter) NullLabel() string { return f.nullLabel }

func (f *Formatter) formatNumber(raw any, opts *Options) string {
	v, ok := toFloat(raw)
	if !ok {
		return toString(raw)
	}

	if opts.Style == StylePercent {
		v *= 100
	}

	var fopts []number.Option
	if opts.Round != nil {
		fopts = append(fopts,
			number.MaxFractionDigits(*opts.Round),
			number.MinFractionDigits(*opts.Round))
	}

	var s string
	if opts.Style == StyleID {
		if opts.Round != nil {
			s = strconv.FormatFloat(v, 'f', *opts.Round, 64)
		} else {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
	} else {
		s = f.printer.Sprint(number.Decimal(v, fopts...))
	}

	switch opts.Style {
	case StylePercent:
		return s + "%"
	case StyleCurrency:
		symbol := opts.Currency
		if symbol == "" {
			symbol = "$"
		}
		return symbol + s
	default:
		return s
	}
}

func (f *Formatter) formatBool(raw any, opts *Options) string {
	b, ok := toBool(raw)
	if !ok {
		return toString(raw)
	}
	if b {
		if opts.TrueLabel != "" {
			return opts.TrueLabel
		}
		return "Yes"
	}
	if opts.FalseLabel != "" {
		return opts.FalseLabel
	}
	return "No"
}

func (f *Formatter) formatTime(raw any, t types.ValueType, opts *Options) string {
	ts, ok := toTime(raw)
	if !ok {
		return toString(raw)
	}
	layout := opts.DatePattern
	if layout == "" {
		if t == types.TypeDate {
			layout = DefaultDateLayout
		} else {
			layout = DefaultTimestampLayout
		}
	}
	return ts.In(f.location).Format(layout)
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case int64:
		return v != 0, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

func toTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, DefaultTimestampLayout, DefaultDateLayout} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func toString(raw any) string {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", raw)
}
