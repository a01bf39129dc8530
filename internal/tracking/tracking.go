// Package tracking records model training runs as JSON lines, one file per
// experiment.
package tracking

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const runsFile = "runs.jsonl"

// Run is one logged training run.
type Run struct {
	ID         string             `json:"run_id"`
	Experiment string             `json:"experiment"`
	Name       string             `json:"run_name"`
	LoggedAt   time.Time          `json:"logged_at"`
	Params     map[string]string  `json:"params,omitempty"`
	Tags       map[string]string  `json:"tags,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Sink appends runs below a tracking root.
type Sink struct {
	root       string
	experiment string
	now        func() time.Time
	mu         sync.Mutex
}

// NewSink creates a sink writing to root/experiment/runs.jsonl.
func NewSink(root, experiment string) *Sink {
	return &Sink{root: root, experiment: experiment, now: time.Now}
}

// Log appends run, assigning an id and timestamp when unset.
func (s *Sink) Log(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	if run.LoggedAt.IsZero() {
		run.LoggedAt = s.now()
	}

	run.Experiment = s.experiment

	line, err := json.Marshal(run)
	if err != nil {
		return run, fmt.Errorf("encode run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, s.experiment)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return run, fmt.Errorf("create experiment dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, runsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return run, fmt.Errorf("open runs file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return run, fmt.Errorf("append run: %w", err)
	}

	return run, nil
}

// Runs returns every logged run of the experiment in write order.
func (s *Sink) Runs() ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.root, s.experiment, runsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("open runs file: %w", err)
	}
	defer f.Close()

	var runs []Run

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var run Run
		if err := json.Unmarshal(scanner.Bytes(), &run); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, scanner.Err()
}
