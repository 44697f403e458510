// Package jobs runs scrape requests asynchronously on a worker pool and
// keeps their state queryable over the API.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meliscout/meli-scraper/internal/models"
	"github.com/meliscout/meli-scraper/internal/scraper"
)

// Kind selects which entry point a job uses.
type Kind string

const (
	KindKeyword Kind = "keyword"
	KindURL     Kind = "url"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Request describes a scrape to run. Delays are milliseconds; zero keeps
// the server defaults.
type Request struct {
	Kind           Kind   `json:"kind"`
	Query          string `json:"query"`
	MaxPages       int    `json:"max_pages"`
	PerPageDelayMs int    `json:"per_page_delay_ms"`
	DetailDelayMs  int    `json:"detail_delay_ms"`
}

func (r Request) validate() error {
	if r.Kind != KindKeyword && r.Kind != KindURL {
		return fmt.Errorf("kind must be %q or %q", KindKeyword, KindURL)
	}
	if r.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	if r.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative")
	}
	if r.PerPageDelayMs < 0 {
		return fmt.Errorf("per_page_delay_ms must not be negative")
	}
	if r.DetailDelayMs < 0 {
		return fmt.Errorf("detail_delay_ms must not be negative")
	}
	return nil
}

// Job is the queryable state of one scrape run. The engine is total, so a
// job always reaches completed; Error records a failed completion hook.
type Job struct {
	ID             string        `json:"id"`
	Kind           Kind          `json:"kind"`
	Query          string        `json:"query"`
	MaxPages       int           `json:"max_pages"`
	PerPageDelayMs int           `json:"per_page_delay_ms,omitempty"`
	DetailDelayMs  int           `json:"detail_delay_ms,omitempty"`
	Status         Status        `json:"status"`
	ItemCount      int           `json:"item_count"`
	Items          []models.Item `json:"items,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Scraper is the engine surface the pool needs.
type Scraper interface {
	ScrapeByKeyword(ctx context.Context, keyword string, opts scraper.Options) []models.Item
	ScrapeByURL(ctx context.Context, url string, opts scraper.Options) []models.Item
}

// CompletionHook runs after a job finishes, for persistence and events.
type CompletionHook func(ctx context.Context, job *Job) error

// Manager owns the job table, the queue and the worker pool.
type Manager struct {
	scraper  Scraper
	baseOpts scraper.Options
	workers  int
	logger   *slog.Logger

	queue       *queue
	onCompleted CompletionHook

	mu   sync.RWMutex
	jobs map[string]*Job

	wg sync.WaitGroup
}

func NewManager(s Scraper, baseOpts scraper.Options, workers, maxQueued int, logger *slog.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scraper:  s,
		baseOpts: baseOpts,
		workers:  workers,
		logger:   logger.With("component", "job_manager"),
		queue:    newQueue(maxQueued),
		jobs:     map[string]*Job{},
	}
}

// SetCompletionHook installs fn to run after each job completes.
func (m *Manager) SetCompletionHook(fn CompletionHook) {
	m.onCompleted = fn
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// Stop closes the queue.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}
	m.logger.Info("worker pool started", "workers", m.workers)
}

// Stop refuses new jobs and waits for in-flight ones to finish.
func (m *Manager) Stop() {
	m.queue.close()
	m.wg.Wait()
	m.logger.Info("worker pool stopped")
}

// Submit enqueues a scrape request and returns its job record.
func (m *Manager) Submit(req Request) (*Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             uuid.New().String(),
		Kind:           req.Kind,
		Query:          req.Query,
		MaxPages:       req.MaxPages,
		PerPageDelayMs: req.PerPageDelayMs,
		DetailDelayMs:  req.DetailDelayMs,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if err := m.queue.push(job.ID); err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.Info("job submitted", "id", job.ID, "kind", job.Kind, "query", job.Query)
	return snapshot(job), nil
}

// Get returns a copy of the job, or false if the ID is unknown.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return snapshot(job), true
}

// List returns copies of all jobs, newest first.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Pending reports how many jobs are queued but not yet picked up.
func (m *Manager) Pending() int {
	return m.queue.size()
}

func (m *Manager) worker(ctx context.Context, n int) {
	defer m.wg.Done()
	logger := m.logger.With("worker", n)

	for {
		id, err := m.queue.pop(ctx)
		if err != nil {
			return
		}
		m.run(ctx, id, logger)
	}
}

func (m *Manager) run(ctx context.Context, id string, logger *slog.Logger) {
	now := time.Now().UTC()
	m.update(id, func(job *Job) {
		job.Status = StatusRunning
		job.StartedAt = &now
	})

	m.mu.RLock()
	job := m.jobs[id]
	kind, query, maxPages := job.Kind, job.Query, job.MaxPages
	perPageMs, detailMs := job.PerPageDelayMs, job.DetailDelayMs
	m.mu.RUnlock()

	opts := m.baseOpts
	if maxPages > 0 {
		opts.MaxPages = maxPages
	}
	if perPageMs > 0 {
		opts.PerPageDelay = time.Duration(perPageMs) * time.Millisecond
	}
	if detailMs > 0 {
		opts.DetailDelay = time.Duration(detailMs) * time.Millisecond
	}

	var items []models.Item
	switch kind {
	case KindURL:
		items = m.scraper.ScrapeByURL(ctx, query, opts)
	default:
		items = m.scraper.ScrapeByKeyword(ctx, query, opts)
	}

	done := time.Now().UTC()
	m.update(id, func(job *Job) {
		job.Status = StatusCompleted
		job.CompletedAt = &done
		job.Items = items
		job.ItemCount = len(items)
	})
	logger.Info("job completed", "id", id, "items", len(items))

	if m.onCompleted != nil {
		finished, _ := m.Get(id)
		if err := m.onCompleted(ctx, finished); err != nil {
			logger.Error("completion hook failed", "id", id, "error", err)
			m.update(id, func(job *Job) {
				job.Error = err.Error()
			})
		}
	}
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}

func snapshot(job *Job) *Job {
	copied := *job
	if job.Items != nil {
		copied.Items = append([]models.Item(nil), job.Items...)
	}
	return &copied
}
