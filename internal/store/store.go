// Package store persists typed row sets as parquet files: timestamped
// immutable snapshots with bounded retention, and mutable datasets that are
// appended to or replaced wholesale.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/frame"
)

const (
	// Ext is the extension of every dataset and snapshot file.
	Ext = ".parquet"
	// SnapshotLayout names snapshot files by local capture time.
	SnapshotLayout = "2006-01-02_15-04-05"
	// DefaultMaxFiles is the retention cap used when none is configured.
	DefaultMaxFiles = 365
)

// ErrSnapshotExists is returned when a bucket already holds a snapshot for the capture second.
var ErrSnapshotExists = errors.New("snapshot already exists")

// Store writes, prunes and resolves parquet artifacts.
type Store struct {
	log      logrus.FieldLogger
	loc      *time.Location
	maxFiles int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxFiles sets the per-bucket retention cap.
func WithMaxFiles(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxFiles = n
		}
	}
}

// New creates a store that names snapshots in loc.
func New(log logrus.FieldLogger, loc *time.Location, opts ...Option) *Store {
	s := &Store{
		log:      log.WithField("component", "store"),
		loc:      loc,
		maxFiles: DefaultMaxFiles,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Location returns the timezone snapshot names are encoded in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Now returns the current time in the store's timezone.
func (s *Store) Now() time.Time {
	return s.now().In(s.loc)
}

// WriteSnapshot writes rows to a new file in bucket named by the current
// capture time, then applies retention to the bucket.
func WriteSnapshot[T any](s *Store, bucket string, rows []T) (string, error) {
	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return "", fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	path := filepath.Join(bucket, s.Now().Format(SnapshotLayout)+Ext)

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrSnapshotExists, path)
	}

	if err := writeFile(path, rows); err != nil {
		return "", err
	}

	s.Cleanup(bucket, s.maxFiles)

	s.log.WithFields(logrus.Fields{
		"path": path,
		"rows": len(rows),
	}).Debug("Wrote snapshot")

	return path, nil
}

// WriteChannels writes one snapshot per channel below dir. A failing channel is
// logged and skipped. Returns the number of snapshots written.
func WriteChannels[T any](s *Store, dir string, set *frame.Set[T]) int {
	written := 0

	set.Each(func(channel string, rows []T) {
		if _, err := WriteSnapshot(s, filepath.Join(dir, channel), rows); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"dir":     dir,
				"channel": channel,
			}).Error("Failed to write channel snapshot")

			return
		}

		written++
	})

	return written
}

// AppendOrReplace writes rows as dir/name. Unless fullReload is set, rows are
// appended after the existing content of the file.
func AppendOrReplace[T any](s *Store, dir, name string, rows []T, fullReload bool) error {
	path := filepath.Join(dir, name+Ext)

	merged := rows

	if !fullReload {
		existing, err := readIfExists[T](path)
		if err != nil {
			return err
		}

		if existing != nil {
			merged = make([]T, 0, len(existing)+len(rows))
			merged = append(merged, existing...)
			merged = append(merged, rows...)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	if err := writeFile(path, merged); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"path":        path,
		"new_rows":    len(rows),
		"total_rows":  len(merged),
		"full_reload": fullReload,
	}).Debug("Persisted dataset")

	return nil
}

// WriteTables overwrites dir/<name> for every entry of set. A failing entry is
// logged and skipped. Returns the number of files written.
func WriteTables[T any](s *Store, dir string, set *frame.Set[T]) int {
	written := 0

	set.Each(func(name string, rows []T) {
		if err := AppendOrReplace(s, dir, name, rows, true); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"dir":  dir,
				"name": name,
			}).Error("Failed to write table")

			return
		}

		written++
	})

	return written
}

// ReadTables loads every dataset file in dir, keyed by file stem in name
// order. Unreadable files are logged and skipped. A missing dir yields an
// empty set.
func ReadTables[T any](s *Store, dir string) (*frame.Set[T], error) {
	set := frame.New[T]()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}

		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		rows, err := ReadFile[T](path)
		if err != nil {
			s.log.WithError(err).WithField("path", path).Error("Failed to read table")

			continue
		}

		set.Put(strings.TrimSuffix(entry.Name(), Ext), rows)
	}

	return set, nil
}

// ReadFile loads all rows of a parquet file.
func ReadFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return rows, nil
}

// Exists reports whether dir/name is present.
func Exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name+Ext))

	return err == nil
}

// Remove deletes dir/name. A missing file is not an error.
func Remove(dir, name string) error {
	err := os.Remove(filepath.Join(dir, name+Ext))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// Cleanup keeps the maxFiles most recently modified snapshots in bucket and
// deletes the rest. Failures are logged and skipped. Returns the number of
// files deleted.
func (s *Store) Cleanup(bucket string, maxFiles int) int {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	entries, err := os.ReadDir(bucket)
	if err != nil {
		s.log.WithError(err).WithField("bucket", bucket).Warn("Failed to list bucket for cleanup")

		return 0
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}

	files := make([]fileInfo, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.log.WithError(err).WithField("file", entry.Name()).Warn("Failed to stat snapshot")

			continue
		}

		files = append(files, fileInfo{path: filepath.Join(bucket, entry.Name()), modTime: info.ModTime()})
	}

	if len(files) <= maxFiles {
		return 0
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	deleted := 0

	for _, f := range files[maxFiles:] {
		if err := os.Remove(f.path); err != nil {
			s.log.WithError(err).WithField("path", f.path).Warn("Failed to delete old snapshot")

			continue
		}

		deleted++
	}

	s.log.WithFields(logrus.Fields{
		"bucket":  bucket,
		"deleted": deleted,
		"kept":    maxFiles,
	}).Debug("Applied snapshot retention")

	return deleted
}

// Subdirs returns the names of the directories in dir, sorted.
func Subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

func readIfExists[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	rows, err := ReadFile[T](path)
	if err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []T{}
	}

	return rows, nil
}

// WriteFileAtomic replaces path with data via a temp file in the same directory.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)

		return err
	})
}

func writeFile[T any](path string, rows []T) error {
	return writeAtomic(path, func(w io.Writer) error {
		if err := parquet.Write(w, rows); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}

		return nil
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
