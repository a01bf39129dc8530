package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/testutil"
)

func touchSnapshots(t *testing.T, bucket string, names ...string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(bucket, 0o755))

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(bucket, name), []byte("x"), 0o600))
	}
}

func TestFindBestMatch(t *testing.T) {
	loc := testutil.Seoul(t)
	at := func(day, hour, minute int) time.Time {
		return time.Date(2025, 1, day, hour, minute, 0, 0, loc)
	}

	tests := []struct {
		name     string
		files    []string
		target   time.Time
		mode     granularity.Mode
		expected string
	}{
		{
			name:     "hourly exact hour",
			files:    []string{"2025-01-05_10-00-00.parquet"},
			target:   at(5, 10, 0),
			mode:     granularity.Hourly,
			expected: "2025-01-05_10-00-00.parquet",
		},
		{
			name:     "hourly previous hour",
			files:    []string{"2025-01-05_09-10-00.parquet"},
			target:   at(5, 10, 0),
			mode:     granularity.Hourly,
			expected: "2025-01-05_09-10-00.parquet",
		},
		{
			name:     "hourly latest valid wins",
			files:    []string{"2025-01-05_09-00-00.parquet", "2025-01-05_09-30-00.parquet"},
			target:   at(5, 10, 0),
			mode:     granularity.Hourly,
			expected: "2025-01-05_09-30-00.parquet",
		},
		{
			name:   "hourly outside window",
			files:  []string{"2025-01-05_08-59-59.parquet", "2025-01-04_10-00-00.parquet"},
			target: at(5, 10, 0),
			mode:   granularity.Hourly,
		},
		{
			name:   "hourly ahead of target never matches",
			files:  []string{"2025-01-05_11-00-00.parquet"},
			target: at(5, 10, 0),
			mode:   granularity.Hourly,
		},
		{
			name:   "hourly midnight ignores later snapshot on the same date",
			files:  []string{"2025-01-05_23-10-00.parquet", "2025-01-04_23-30-00.parquet"},
			target: at(5, 0, 30),
			mode:   granularity.Hourly,
		},
		{
			name:     "hourly midnight same hour",
			files:    []string{"2025-01-05_00-05-00.parquet", "2025-01-05_23-10-00.parquet"},
			target:   at(5, 0, 30),
			mode:     granularity.Hourly,
			expected: "2025-01-05_00-05-00.parquet",
		},
		{
			name:     "daily today",
			files:    []string{"2025-01-05_00-30-00.parquet"},
			target:   at(5, 0, 0),
			mode:     granularity.Daily,
			expected: "2025-01-05_00-30-00.parquet",
		},
		{
			name:     "daily yesterday",
			files:    []string{"2025-01-04_00-30-00.parquet", "2025-01-03_00-30-00.parquet"},
			target:   at(5, 0, 0),
			mode:     granularity.Daily,
			expected: "2025-01-04_00-30-00.parquet",
		},
		{
			name:   "daily two days back never selected",
			files:  []string{"2025-01-03_23-59-59.parquet"},
			target: at(5, 0, 0),
			mode:   granularity.Daily,
		},
		{
			name:     "daily recency beats closeness",
			files:    []string{"2025-01-04_23-59-00.parquet", "2025-01-05_00-30-00.parquet", "2025-01-04_00-30-00.parquet"},
			target:   at(5, 0, 0),
			mode:     granularity.Daily,
			expected: "2025-01-05_00-30-00.parquet",
		},
		{
			name:     "unparseable files skipped",
			files:    []string{"latest.parquet", "notes.txt", "2025-01-05_00-30-00.parquet"},
			target:   at(5, 12, 0),
			mode:     granularity.Daily,
			expected: "2025-01-05_00-30-00.parquet",
		},
		{
			name:   "only unparseable files",
			files:  []string{"latest.parquet", "2025-13-45_00-00-00.parquet"},
			target: at(5, 12, 0),
			mode:   granularity.Daily,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, time.Now())
			bucket := t.TempDir()
			touchSnapshots(t, bucket, tt.files...)

			path, ok := s.FindBestMatch(bucket, tt.target, tt.mode)
			if tt.expected == "" {
				assert.False(t, ok)
				assert.Empty(t, path)

				return
			}

			require.True(t, ok)
			assert.Equal(t, filepath.Join(bucket, tt.expected), path)
		})
	}
}

func TestFindBestMatch_TargetInOtherTimezone(t *testing.T) {
	s := newTestStore(t, time.Now())
	bucket := t.TempDir()
	touchSnapshots(t, bucket, "2025-01-05_09-30-00.parquet")

	// 01:00Z is 10:00 in Seoul.
	path, ok := s.FindBestMatch(bucket, time.Date(2025, 1, 5, 1, 0, 0, 0, time.UTC), granularity.Hourly)
	require.True(t, ok)
	assert.Equal(t, "2025-01-05_09-30-00.parquet", filepath.Base(path))
}

func TestFindBestMatch_EmptyAndMissingBucket(t *testing.T) {
	s := newTestStore(t, time.Now())
	bucket := t.TempDir()

	_, ok := s.FindBestMatch(bucket, time.Now(), granularity.Daily)
	assert.False(t, ok)

	_, ok = s.FindBestMatch(filepath.Join(bucket, "missing"), time.Now(), granularity.Daily)
	assert.False(t, ok)
}
