// Package download runs media fetches handed over by the HTTP layer after
// admission. Fetches run asynchronously under a concurrency bound; callers
// observe progress through the job table.
package download

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vextract/internal/extractor"
)

// Status is the lifecycle state of a download job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrJobNotFound indicates an unknown download id.
	ErrJobNotFound = errors.New("download job not found")
	// ErrFileNotFound indicates the requested artifact does not exist.
	ErrFileNotFound = errors.New("download file not found")
	// ErrFileTooLarge indicates the fetched artifact exceeded the size cap.
	ErrFileTooLarge = errors.New("downloaded file exceeds size limit")
)

// Job is one download request and its observable progress.
type Job struct {
	ID          string     `json:"download_id"`
	URL         string     `json:"url"`
	Quality     string     `json:"quality"`
	FormatType  string     `json:"format_type"`
	Status      Status     `json:"status"`
	Filename    string     `json:"filename,omitempty"`
	Filesize    int64      `json:"filesize,omitempty"`
	Title       string     `json:"title,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Fetcher is the slice of the extractor client the manager needs.
type Fetcher interface {
	Fetch(ctx context.Context, req extractor.FetchRequest) (*extractor.FetchResult, error)
}

// Manager owns the job table and the concurrency bound for fetches. The
// bound keeps a burst of download requests from saturating the host; queued
// jobs wait for a slot.
type Manager struct {
	fetcher      Fetcher
	dir          string
	maxFileSize  int64
	fetchTimeout time.Duration
	sem          chan struct{}
	logger       *log.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// ManagerConfig captures the manager's tunables.
type ManagerConfig struct {
	Dir           string
	MaxConcurrent int
	MaxFileSize   int64
	FetchTimeout  time.Duration
}

func NewManager(fetcher Fetcher, cfg ManagerConfig, logger *log.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		fetcher:      fetcher,
		dir:          cfg.Dir,
		maxFileSize:  cfg.MaxFileSize,
		fetchTimeout: cfg.FetchTimeout,
		sem:          make(chan struct{}, cfg.MaxConcurrent),
		logger:       logger,
		jobs:         make(map[string]*Job),
	}
}

// Start registers a job and launches the fetch in the background. The
// returned snapshot carries the id clients poll for status.
func (m *Manager) Start(url, quality, formatType string) (Job, error) {
	id, err := newJobID()
	if err != nil {
		return Job{}, fmt.Errorf("generate download id: %w", err)
	}

	job := &Job{
		ID:         id,
		URL:        url,
		Quality:    quality,
		FormatType: formatType,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go m.run(id)
	return *job, nil
}

// Status returns a snapshot of the job for id.
func (m *Manager) Status(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// FilePath resolves a completed artifact by sanitized filename, refusing
// anything that would escape the downloads directory.
func (m *Manager) FilePath(filename string) (string, error) {
	clean := SanitizeFilename(filename)
	if clean == "" || clean != filename {
		return "", ErrFileNotFound
	}
	path := filepath.Join(m.dir, clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return path, nil
}

// PurgeJobs drops finished jobs older than age and returns how many were
// removed. Artifacts on disk are removed alongside their jobs.
func (m *Manager) PurgeJobs(age time.Duration) int {
	cutoff := time.Now().UTC().Add(-age)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, job := range m.jobs {
		if job.Status != StatusCompleted && job.Status != StatusFailed {
			continue
		}
		if job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		if job.Filename != "" {
			RemoveFile(filepath.Join(m.dir, job.Filename))
		}
		delete(m.jobs, id)
		removed++
	}
	return removed
}

func (m *Manager) run(id string) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	url, quality, formatType := job.URL, job.Quality, job.FormatType
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
	defer cancel()

	result, err := m.fetcher.Fetch(ctx, extractor.FetchRequest{
		URL:        url,
		Quality:    quality,
		FormatType: formatType,
		OutputDir:  m.dir,
	})
	if err == nil && m.maxFileSize > 0 && result.Filesize > m.maxFileSize {
		RemoveFile(result.Path)
		err = ErrFileTooLarge
	}

	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok = m.jobs[id]
	if !ok {
		return
	}
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		m.logger.Printf("ERROR: event=download_failed download_id=%s err=%v", id, err)
		return
	}
	job.Status = StatusCompleted
	job.Filename = filepath.Base(result.Path)
	job.Filesize = result.Filesize
	job.Title = result.Title
	m.logger.Printf("INFO: event=download_completed download_id=%s file=%q size=%d", id, job.Filename, job.Filesize)
}

func newJobID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
