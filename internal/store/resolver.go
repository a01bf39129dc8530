package store

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
)

type candidate struct {
	path       string
	capturedAt time.Time
}

// FindBestMatch returns the snapshot in bucket that best serves target under
// mode. The latest valid snapshot wins. When nothing falls inside the window
// the closest file is logged and ok is false.
func (s *Store) FindBestMatch(bucket string, target time.Time, mode granularity.Mode) (string, bool) {
	log := s.log.WithFields(logrus.Fields{
		"bucket":     bucket,
		"target":     target.In(s.loc).Format(time.DateTime),
		"scrap_type": mode,
	})

	entries, err := os.ReadDir(bucket)
	if err != nil {
		log.WithError(err).Warn("Snapshot bucket is not readable")

		return "", false
	}

	if len(entries) == 0 {
		log.Warn("No files in snapshot bucket")

		return "", false
	}

	candidates := s.candidates(bucket, entries)
	if len(candidates) == 0 {
		log.Warn("No parseable snapshot files in bucket")

		return "", false
	}

	var (
		best    candidate
		found   bool
		closest = candidates[0]
	)

	for _, c := range candidates {
		if c.capturedAt.After(closest.capturedAt) {
			closest = c
		}

		if !mode.Matches(c.capturedAt, target, s.loc) {
			continue
		}

		if !found || c.capturedAt.After(best.capturedAt) {
			best = c
			found = true
		}
	}

	if !found {
		log.WithField("closest", closest.capturedAt.Format(time.DateTime)).
			Warn("Closest snapshot is too far from target")

		return "", false
	}

	return best.path, true
}

func (s *Store) candidates(bucket string, entries []os.DirEntry) []candidate {
	out := make([]candidate, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, Ext) {
			continue
		}

		capturedAt, err := time.ParseInLocation(SnapshotLayout, strings.TrimSuffix(name, Ext), s.loc)
		if err != nil {
			continue
		}

		out = append(out, candidate{path: filepath.Join(bucket, name), capturedAt: capturedAt})
	}

	return out
}
