package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/mneme/internal/storage"
)

const (
	snapshotPrefix = "mneme-snapshot-"
	snapshotSuffix = ".json"
)

// Service writes periodic snapshot files and prunes old ones.
type Service struct {
	records  *storage.Records
	dir      string
	interval time.Duration
	keep     int

	// Internal state
	mu             sync.Mutex
	running        bool
	stopCh         chan struct{}
	lastBackupTime time.Time
}

// NewService creates a snapshot service with the given configuration.
func NewService(records *storage.Records, config Config) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}

	if config.Dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}

	if config.Interval <= 0 {
		config.Interval = 1 * time.Hour
	}

	if config.Keep <= 0 {
		config.Keep = 24
	}

	if err := os.MkdirAll(config.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Service{
		records:  records,
		dir:      config.Dir,
		interval: config.Interval,
		keep:     config.Keep,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start runs the snapshot loop until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("backup service is already running")
	}
	s.running = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Backup service started: interval=%v, dir=%s", s.interval, s.dir)

	for {
		select {
		case <-ctx.Done():
			log.Println("Backup service stopping (context cancelled)")
			return ctx.Err()

		case <-s.stopCh:
			log.Println("Backup service stopping (stop requested)")
			return nil

		case <-ticker.C:
			result, err := s.BackupNow(ctx)
			if err != nil {
				log.Printf("ERROR: Scheduled snapshot failed: %v", err)
				continue
			}
			log.Printf("Scheduled snapshot completed: path=%s, memories=%d, size=%d bytes, duration=%v",
				result.Path, result.Memories, result.Size, result.Duration)
		}
	}
}

// Stop stops the snapshot loop.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("backup service is not running")
	}

	close(s.stopCh)
	s.running = false
	return nil
}

// BackupNow writes a snapshot file immediately and applies retention.
func (s *Service) BackupNow(ctx context.Context) (*Result, error) {
	start := time.Now()

	snap, err := Export(ctx, s.records)
	if err != nil {
		return nil, err
	}

	name := snapshotPrefix + start.UTC().Format("20060102-150405.000000") + snapshotSuffix
	path := filepath.Join(s.dir, name)
	if err := WriteFile(path, snap); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	s.mu.Lock()
	s.lastBackupTime = start
	s.mu.Unlock()

	if err := s.prune(); err != nil {
		log.Printf("WARNING: failed to prune snapshots: %v", err)
	}

	return &Result{
		Path:     path,
		Duration: time.Since(start),
		Size:     info.Size(),
		Memories: len(snap.Memories),
	}, nil
}

// LastBackup returns when the last snapshot was written.
func (s *Service) LastBackup() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBackupTime
}

// List returns the snapshot files, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var out []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Path:      filepath.Join(s.dir, name),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	// names embed the write time, so they sort chronologically
	sort.Slice(out, func(i, j int) bool { return out[i].Path > out[j].Path })
	return out, nil
}

// Restore imports the snapshot at path. The loop must be stopped first.
func (s *Service) Restore(ctx context.Context, path string) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running {
		return fmt.Errorf("cannot restore while backup service is running")
	}

	snap, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := Import(ctx, s.records, snap); err != nil {
		return err
	}
	log.Printf("Records restored from snapshot: %s", path)
	return nil
}

// prune removes all but the newest keep snapshots.
func (s *Service) prune() error {
	snaps, err := s.List()
	if err != nil {
		return err
	}
	for _, info := range snaps[min(len(snaps), s.keep):] {
		if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
