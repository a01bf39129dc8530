package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/testutil"
)

func newTestLedger(t *testing.T, now time.Time) (*Ledger, store.Layout) {
	t.Helper()

	layout := store.NewLayout(t.TempDir())

	return New(testutil.NewTestLogger(), layout, testutil.Seoul(t), WithClock(func() time.Time { return now })), layout
}

func writeLedgerFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestParseTimestamp(t *testing.T) {
	loc := testutil.Seoul(t)

	tests := []struct {
		name     string
		value    string
		expected time.Time
	}{
		{
			name:     "zoned in reference tz",
			value:    "2025-01-01T00:00:00+09:00",
			expected: time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
		},
		{
			name:     "zoned utc is converted",
			value:    "2024-12-31T15:00:00Z",
			expected: time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
		},
		{
			name:     "naive is localized",
			value:    "2025-01-01T00:00:00",
			expected: time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
		},
		{
			name:     "naive with space and fraction",
			value:    "2025-01-01 08:30:15.250000",
			expected: time.Date(2025, 1, 1, 8, 30, 15, 250000000, loc),
		},
		{
			name:     "date only",
			value:    "2025-01-01",
			expected: time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.value, loc)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(ts), "expected %s got %s", tt.expected, ts)
			assert.Equal(t, "Asia/Seoul", ts.Location().String())
		})
	}

	_, err := ParseTimestamp("yesterday", loc)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	l, _ := newTestLedger(t, time.Now())

	raw, err := l.LoadRaw(granularity.Hourly)
	require.NoError(t, err)
	assert.Empty(t, raw)

	processed, err := l.LoadProcessed(granularity.Daily)
	require.NoError(t, err)
	assert.Empty(t, processed)
}

func TestRaw_RoundTripNormalizesTimezone(t *testing.T) {
	loc := testutil.Seoul(t)
	l, layout := newTestLedger(t, time.Date(2025, 1, 1, 12, 0, 0, 0, loc))

	writeLedgerFile(t, layout.LedgerPath(store.LedgerRaw, granularity.Hourly), `{
  "agoda": {"1": "2025-01-01T00:00:00+09:00", "2": "2025-01-01T03:00:00"},
  "expedia": {"1": "2024-12-31T20:00:00Z"}
}`)

	first, err := l.LoadRaw(granularity.Hourly)
	require.NoError(t, err)

	require.NoError(t, l.SaveRaw(granularity.Hourly, first))

	second, err := l.LoadRaw(granularity.Hourly)
	require.NoError(t, err)

	expected := map[string]map[string]time.Time{
		"agoda": {
			"1": time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
			"2": time.Date(2025, 1, 1, 3, 0, 0, 0, loc),
		},
		"expedia": {
			"1": time.Date(2025, 1, 1, 5, 0, 0, 0, loc),
		},
	}

	require.Len(t, second, len(expected))

	for table, entities := range expected {
		require.Len(t, second[table], len(entities))

		for id, ts := range entities {
			got := second[table][id]
			assert.True(t, ts.Equal(got), "%s/%s: expected %s got %s", table, id, ts, got)
			assert.Equal(t, "Asia/Seoul", got.Location().String())
		}
	}

	data, err := os.ReadFile(layout.LedgerPath(store.LedgerRaw, granularity.Hourly))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"2025-01-01T05:00:00+09:00"`)
}

func TestSaveRaw_Replaces(t *testing.T) {
	loc := testutil.Seoul(t)
	l, _ := newTestLedger(t, time.Date(2025, 1, 1, 12, 0, 0, 0, loc))
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	require.NoError(t, l.SaveRaw(granularity.Daily, Tables{"agoda": {"1": ts}, "expedia": {"2": ts}}))
	require.NoError(t, l.SaveRaw(granularity.Daily, Tables{"agoda": {"3": ts}}))

	got, err := l.LoadRaw(granularity.Daily)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, keys(got["agoda"]))
	assert.NotContains(t, got, "expedia")
}

func TestSaveProcessed_Merges(t *testing.T) {
	loc := testutil.Seoul(t)
	l, _ := newTestLedger(t, time.Date(2025, 1, 2, 12, 0, 0, 0, loc))

	day1 := time.Date(2025, 1, 1, 0, 30, 0, 0, loc)
	day2 := time.Date(2025, 1, 2, 0, 30, 0, 0, loc)

	require.NoError(t, l.SaveProcessed(granularity.Daily, Entities{"10": day1, "11": day1}))
	require.NoError(t, l.SaveProcessed(granularity.Daily, Entities{"11": day2, "12": day2}))

	got, err := l.LoadProcessed(granularity.Daily)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got["10"].Equal(day1))
	assert.True(t, got["11"].Equal(day2))
	assert.True(t, got["12"].Equal(day2))

	// Other modes are independent.
	hourly, err := l.LoadProcessed(granularity.Hourly)
	require.NoError(t, err)
	assert.Empty(t, hourly)
}

func TestLoad_StaleEntriesAreWarnedButReturned(t *testing.T) {
	loc := testutil.Seoul(t)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, loc)
	log, hook := testutil.NewCapturingLogger()
	layout := store.NewLayout(t.TempDir())
	l := New(log, layout, loc, WithClock(func() time.Time { return now }))

	writeLedgerFile(t, layout.LedgerPath(store.LedgerProcessed, granularity.Daily),
		`{"1": "2025-01-10T00:30:00+09:00", "2": "2025-01-01T00:30:00+09:00", "3": "garbage"}`)

	got, err := l.LoadProcessed(granularity.Daily)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, "1")
	assert.Contains(t, got, "2")
	assert.Equal(t, 2, testutil.CountLevel(hook, logrus.WarnLevel))
}

func TestLoad_CorruptFile(t *testing.T) {
	l, layout := newTestLedger(t, time.Now())

	writeLedgerFile(t, layout.LedgerPath(store.LedgerRaw, granularity.Hourly), `{"agoda": `)

	_, err := l.LoadRaw(granularity.Hourly)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse ledger")
}

func keys(e Entities) []string {
	out := make([]string, 0, len(e))
	for k := range e {
		out = append(out, k)
	}

	return out
}
