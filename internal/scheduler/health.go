package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Health statuses written per job.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Record is one job's latest outcome as persisted in the health file.
type Record struct {
	LastRun   time.Time `json:"last_run"`
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`
}

// HealthFile keeps the latest Record per job in a JSON file so an
// external liveness probe can watch the scheduler without talking to
// it. Writes replace the file atomically.
type HealthFile struct {
	mu   sync.Mutex
	path string
}

func NewHealthFile(path string) *HealthFile {
	return &HealthFile{path: path}
}

// Record merges the job's outcome into the file, keeping the other
// jobs' entries.
func (h *HealthFile) Record(job string, rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.read()
	if err != nil {
		return err
	}
	records[job] = rec

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("scheduler: encode health file: %w", err)
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("scheduler: write health file: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("scheduler: replace health file: %w", err)
	}
	return nil
}

// Read returns the file's records. A missing file reads as empty.
func (h *HealthFile) Read() (map[string]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read()
}

func (h *HealthFile) read() (map[string]Record, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scheduler: read health file: %w", err)
	}
	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		// A corrupt file gets replaced on the next write rather than
		// wedging the job.
		return map[string]Record{}, nil
	}
	return records, nil
}
