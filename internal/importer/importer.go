package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/mneme/pkg/types"
)

// Job status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Queue accepts raw content for ingestion. *engine.Engine satisfies it.
type Queue interface {
	AddToQueue(ctx context.Context, content string, itemType types.QueueItemType) (*types.QueueItem, error)
}

// Result is the summary of a finished import.
type Result struct {
	JobID        string        `json:"job_id"`
	FilesFound   int           `json:"files_found"`
	FilesQueued  int           `json:"files_queued"`
	FilesSkipped int           `json:"files_skipped"`
	FilesFailed  int           `json:"files_failed"`
	LinksFound   int           `json:"links_found"`
	QueueItemIDs []string      `json:"queue_item_ids"`
	Errors       []string      `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration_ms"`
}

// Progress is the live state of a job.
type Progress struct {
	JobID          string  `json:"job_id"`
	Status         string  `json:"status"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	CurrentFile    string  `json:"current_file,omitempty"`
	Message        string  `json:"message,omitempty"`
	Result         *Result `json:"result,omitempty"`
}

type job struct {
	mu       sync.RWMutex
	progress Progress
	done     chan struct{}
}

func (j *job) snapshot() Progress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// Importer walks a directory of Markdown notes and queues each note as a
// text item.
type Importer struct {
	queue Queue

	mu   sync.RWMutex
	jobs map[string]*job
}

// New creates an importer feeding queue.
func New(queue Queue) *Importer {
	return &Importer{queue: queue, jobs: make(map[string]*job)}
}

// Start begins an asynchronous import of dir and returns its job id.
func (imp *Importer) Start(ctx context.Context, dir string) (string, error) {
	if err := checkDir(dir); err != nil {
		return "", err
	}

	id := uuid.New().String()
	j := &job{progress: Progress{JobID: id, Status: StatusRunning}, done: make(chan struct{})}

	imp.mu.Lock()
	imp.jobs[id] = j
	imp.mu.Unlock()

	go func() {
		defer close(j.done)
		result := imp.run(ctx, j, dir)

		j.mu.Lock()
		j.progress.Result = result
		j.progress.CurrentFile = ""
		j.progress.FilesProcessed = result.FilesFound
		if len(result.Errors) > 0 && result.FilesQueued == 0 {
			j.progress.Status = StatusFailed
			j.progress.Message = "import failed"
		} else {
			j.progress.Status = StatusComplete
			j.progress.Message = fmt.Sprintf("queued %d of %d notes", result.FilesQueued, result.FilesFound)
		}
		j.mu.Unlock()
	}()

	return id, nil
}

// Progress returns the live state of a job, or false if unknown.
func (imp *Importer) Progress(id string) (Progress, bool) {
	imp.mu.RLock()
	j, ok := imp.jobs[id]
	imp.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}
	return j.snapshot(), true
}

// Wait blocks until the job finishes or ctx is done.
func (imp *Importer) Wait(ctx context.Context, id string) (Progress, error) {
	imp.mu.RLock()
	j, ok := imp.jobs[id]
	imp.mu.RUnlock()
	if !ok {
		return Progress{}, fmt.Errorf("unknown import job %q", id)
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}

// Run imports dir synchronously.
func (imp *Importer) Run(ctx context.Context, dir string) (*Result, error) {
	id, err := imp.Start(ctx, dir)
	if err != nil {
		return nil, err
	}
	p, err := imp.Wait(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Result, nil
}

func (imp *Importer) run(ctx context.Context, j *job, dir string) *Result {
	start := time.Now()
	result := &Result{JobID: j.progress.JobID, QueueItemIDs: []string{}}

	files, err := collectNotes(dir)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("walk error: %v", err))
		return result
	}
	result.FilesFound = len(files)

	j.mu.Lock()
	j.progress.FilesTotal = len(files)
	j.mu.Unlock()

	for i, path := range files {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}

		rel, _ := filepath.Rel(dir, path)
		j.mu.Lock()
		j.progress.FilesProcessed = i
		j.progress.CurrentFile = rel
		j.mu.Unlock()

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("WARNING: import: skip %s: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: read error: %v", rel, err))
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			result.FilesSkipped++
			continue
		}

		note, err := ParseNote(data, rel)
		if err != nil {
			log.Printf("WARNING: import: skip %s: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.LinksFound += len(note.Links)

		item, err := imp.queue.AddToQueue(ctx, note.Text(), types.QueueText)
		if err != nil {
			log.Printf("WARNING: import: failed to queue %s: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: queue error: %v", rel, err))
			continue
		}
		result.FilesQueued++
		result.QueueItemIDs = append(result.QueueItemIDs, item.ID)
	}

	result.Duration = time.Since(start)
	log.Printf("Import %s: queued %d of %d notes in %v", result.JobID, result.FilesQueued, result.FilesFound, result.Duration)
	return result
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}
	return nil
}

// collectNotes returns every .md / .markdown file below dir in lexical
// order. Hidden directories (.obsidian, .git, .trash) are skipped.
func collectNotes(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md", ".markdown":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
