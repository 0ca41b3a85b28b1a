package displayfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/types"
)

func newFormatter(t *testing.T, cfg Config) *Formatter {
	t.Helper()
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Locale: "not a locale"})
	assert.ErrorContains(t, err, "invalid locale")

	_, err = New(Config{Timezone: "Mars/Olympus"})
	assert.ErrorContains(t, err, "invalid timezone")
}

func TestFormat_Numbers(t *testing.T) {
	f := newFormatter(t, Config{})
	round2 := 2
	round0 := 0

	tests := []struct {
		name string
		raw  any
		opts *Options
		want string
	}{
		{name: "plain grouping", raw: 1234567.5, want: "1,234,567.5"},
		{name: "integer", raw: int64(42), want: "42"},
		{name: "rounded", raw: 2.345, opts: &Options{Round: &round2}, want: "2.35"},
		{name: "id style without grouping", raw: 2024.0, opts: &Options{Style: StyleID}, want: "2024"},
		{name: "percent", raw: 0.25, opts: &Options{Style: StylePercent, Round: &round0}, want: "25%"},
		{name: "currency default symbol", raw: 99.5, opts: &Options{Style: StyleCurrency}, want: "$99.5"},
		{name: "currency custom symbol", raw: 10.0, opts: &Options{Style: StyleCurrency, Currency: "€"}, want: "€10"},
		{name: "numeric string", raw: "12.5", want: "12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Format(tt.raw, types.TypeNumber, tt.opts))
		})
	}
}

func TestFormat_LocaleGrouping(t *testing.T) {
	de := newFormatter(t, Config{Locale: "de"})
	assert.Equal(t, "1.234,5", de.Format(1234.5, types.TypeNumber, nil))
}

func TestFormat_Null(t *testing.T) {
	f := newFormatter(t, Config{})
	assert.Equal(t, DefaultNullLabel, f.Format(nil, types.TypeNumber, nil))

	custom := newFormatter(t, Config{NullLabel: "(none)"})
	assert.Equal(t, "(none)", custom.Format(nil, types.TypeString, nil))
	assert.Equal(t, "(none)", custom.NullLabel())
}

func TestFormat_Booleans(t *testing.T) {
	f := newFormatter(t, Config{})
	assert.Equal(t, "Yes", f.Format(true, types.TypeBoolean, nil))
	assert.Equal(t, "No", f.Format(false, types.TypeBoolean, nil))
	assert.Equal(t, "active", f.Format(true, types.TypeBoolean, &Options{TrueLabel: "active"}))
	assert.Equal(t, "inactive", f.Format(false, types.TypeBoolean, &Options{FalseLabel: "inactive"}))
}

func TestFormat_Temporal(t *testing.T) {
	ts := time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)

	f := newFormatter(t, Config{})
	assert.Equal(t, "2024-03-15", f.Format(ts, types.TypeDate, nil))
	assert.Equal(t, "2024-03-15 22:30:00", f.Format(ts, types.TypeTimestamp, nil))

	// Display timezone shifts the rendered wall clock.
	berlin := newFormatter(t, Config{Timezone: "Europe/Berlin"})
	assert.Equal(t, "2024-03-15 23:30:00", berlin.Format(ts, types.TypeTimestamp, nil))

	custom := &Options{DatePattern: "02.01.2006"}
	assert.Equal(t, "15.03.2024", f.Format(ts, types.TypeDate, custom))

	// Timestamp strings parse before formatting.
	assert.Equal(t, "2024-03-15", f.Format("2024-03-15T22:30:00Z", types.TypeDate, nil))
}

func TestWithLocation(t *testing.T) {
	f := newFormatter(t, Config{})
	assert.Same(t, f, f.WithLocation(nil))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	shifted := f.WithLocation(berlin)

	ts := time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-15 23:30:00", shifted.Format(ts, types.TypeTimestamp, nil))

	// The original formatter keeps its zone.
	assert.Equal(t, "2024-03-15 22:30:00", f.Format(ts, types.TypeTimestamp, nil))
}

func TestFormat_Strings(t *testing.T) {
	f := newFormatter(t, Config{})
	assert.Equal(t, "shipped", f.Format("shipped", types.TypeString, nil))
	assert.Equal(t, "bytes", f.Format([]byte("bytes"), types.TypeString, nil))
}
