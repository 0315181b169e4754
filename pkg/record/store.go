package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	DefaultStorageFileName = ".bridgefund-records.json"

	// DefaultMaxRecords caps retention; the oldest records beyond the cap
	// are evicted on write.
	DefaultMaxRecords = 50
)

// Store persists execution records as a JSON file. The read-modify-write is
// atomic per process via the mutex; there is no cross-process locking, so two
// processes racing on the same file may lose a diagnostic update. The engine
// treats the store as single-writer-per-process.
type Store struct {
	filePath   string
	maxRecords int
	mu         sync.RWMutex
	records    []*Record
}

// recordFile represents the JSON structure on disk
type recordFile struct {
	Records []*Record `json:"records"`
}

// NewStore creates a store backed by the given file path, defaulting to the
// home directory when empty.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	store := &Store{
		filePath:   filePath,
		maxRecords: DefaultMaxRecords,
	}

	// Load existing records if the file exists; a missing file is fine,
	// it gets created on first save.
	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load records: %w", err)
		}
	}

	return store, nil
}

// SetMaxRecords overrides the retention cap.
func (s *Store) SetMaxRecords(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxRecords = n
	}
}

// load reads records from the storage file
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file recordFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal records: %w", err)
	}

	s.records = file.Records
	return nil
}

// save writes records to the storage file (caller must hold the lock)
func (s *Store) save() error {
	data, err := json.MarshalIndent(recordFile{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Upsert applies update to the existing record with the given id (nil when
// absent), stores the result keyed by id and returns a copy. Repeated calls
// with the same id never create duplicates. UpdatedAt is stamped on every
// call; CreatedAt is preserved for existing records.
func (s *Store) Upsert(id string, update func(existing *Record) *Record) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	var updated *Record
	idx := -1
	for i, rec := range s.records {
		if rec.ID == id {
			idx = i
			break
		}
	}

	if idx >= 0 {
		updated = update(s.records[idx].Clone())
		if updated == nil {
			return nil, fmt.Errorf("updater returned nil record for id %s", id)
		}
		updated.ID = id
		updated.CreatedAt = s.records[idx].CreatedAt
		updated.UpdatedAt = now
		s.records[idx] = updated
	} else {
		updated = update(nil)
		if updated == nil {
			return nil, fmt.Errorf("updater returned nil record for id %s", id)
		}
		updated.ID = id
		updated.CreatedAt = now
		updated.UpdatedAt = now
		// Newest first, oldest evicted beyond the cap
		s.records = append([]*Record{updated}, s.records...)
		if len(s.records) > s.maxRecords {
			s.records = s.records[:s.maxRecords]
		}
	}

	if err := s.save(); err != nil {
		return nil, err
	}

	return updated.Clone(), nil
}

// Get retrieves a record by id.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("record '%s' not found", id)
}

// LatestByAddress returns the most recently updated record for an address.
func (s *Store) LatestByAddress(address string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Record
	for _, rec := range s.records {
		if !strings.EqualFold(rec.FromAddress, address) {
			continue
		}
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			latest = rec
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("no records for address '%s'", address)
	}
	return latest.Clone(), nil
}

// List returns all records, newest first.
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec.Clone())
	}
	return records
}

// ListByAddress returns all records for an address, newest first.
func (s *Store) ListByAddress(address string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0)
	for _, rec := range s.records {
		if strings.EqualFold(rec.FromAddress, address) {
			records = append(records, rec.Clone())
		}
	}
	return records
}

// Count returns the total number of records
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// GetFilePath returns the storage file path
func (s *Store) GetFilePath() string {
	return s.filePath
}
