// Package historystore provides a default workflow.HistoryPort: an
// LRU-bounded in-memory cache of history entries, with an optional on-disk
// JSON snapshot so a restarted process can recover the last known state of
// recently active runs.
package historystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"timeline/internal/logging"
	"timeline/internal/workflow"
)

// record is the on-disk/in-cache representation of one history entry.
type record struct {
	ID           string              `json:"id"`
	SiteID       string              `json:"site_id"`
	WorkflowType string              `json:"workflow_type"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
	Steps        []workflow.HistoryStep `json:"steps"`
}

// Store is an LRU-bounded workflow.HistoryPort implementation. The zero
// value is not usable — construct with New.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *record]

	snapshotPath string
	log          logging.Logger
}

// New constructs a Store holding at most size entries. If snapshotPath is
// non-empty, any existing snapshot is loaded (tolerating a truncated file
// via jsonrepair) and every UpdateEntry call re-persists the full cache.
func New(size int, snapshotPath string, log logging.Logger) (*Store, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, *record](size)
	if err != nil {
		return nil, fmt.Errorf("historystore: new lru cache: %w", err)
	}
	s := &Store{cache: cache, snapshotPath: snapshotPath, log: logging.OrNop(log)}
	if snapshotPath != "" {
		if err := s.loadSnapshot(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var _ workflow.HistoryPort = (*Store)(nil)

// CreateEntry allocates a new history entry with a fresh uuid.
func (s *Store) CreateEntry(ctx context.Context, spec workflow.EntrySpec) (workflow.Entry, error) {
	id := uuid.New().String()
	rec := &record{
		ID:           id,
		SiteID:       spec.SiteID,
		WorkflowType: string(spec.WorkflowType),
		CreatedAt:    time.Now(),
	}
	s.mu.Lock()
	s.cache.Add(id, rec)
	s.mu.Unlock()

	s.persist()
	return workflow.Entry{ID: id, SiteID: spec.SiteID}, nil
}

// UpdateEntry replaces the entry's projected steps and terminal fields.
func (s *Store) UpdateEntry(ctx context.Context, id string, update workflow.EntryUpdate) (workflow.Entry, error) {
	s.mu.Lock()
	rec, ok := s.cache.Get(id)
	if !ok {
		s.mu.Unlock()
		return workflow.Entry{}, fmt.Errorf("historystore: unknown entry %q", id)
	}
	rec.Status = update.Status
	rec.EndTime = update.EndTime
	rec.Steps = update.Steps
	s.mu.Unlock()

	s.persist()
	return workflow.Entry{ID: id, SiteID: rec.SiteID}, nil
}

// Get returns a copy of the entry by id, for callers inspecting recent
// history outside the HistoryPort contract.
func (s *Store) Get(id string) (workflow.EntryUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cache.Peek(id)
	if !ok {
		return workflow.EntryUpdate{}, false
	}
	return workflow.EntryUpdate{SiteID: rec.SiteID, Status: rec.Status, EndTime: rec.EndTime, Steps: rec.Steps}, true
}

func (s *Store) persist() {
	if s.snapshotPath == "" {
		return
	}
	s.mu.Lock()
	records := make(map[string]*record, s.cache.Len())
	for _, key := range s.cache.Keys() {
		if rec, ok := s.cache.Peek(key); ok {
			records[key] = rec
		}
	}
	s.mu.Unlock()

	raw, err := json.Marshal(records)
	if err != nil {
		s.log.Warn("historystore: marshal snapshot: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		s.log.Warn("historystore: create snapshot dir: %v", err)
		return
	}
	if err := os.WriteFile(s.snapshotPath, raw, 0o644); err != nil {
		s.log.Warn("historystore: write snapshot: %v", err)
	}
}

// loadSnapshot reads an existing snapshot file. If it does not parse as
// JSON (e.g. a prior process crashed mid-write and left it truncated), it is
// run through jsonrepair and parsed again. A missing file is not an error.
func (s *Store) loadSnapshot() error {
	raw, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("historystore: read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var records map[string]*record
	if err := json.Unmarshal(raw, &records); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(raw))
		if rerr != nil {
			s.log.Warn("historystore: snapshot unreadable and unrepairable: %v", err)
			return nil
		}
		if err := json.Unmarshal([]byte(repaired), &records); err != nil {
			s.log.Warn("historystore: repaired snapshot still invalid: %v", err)
			return nil
		}
		s.log.Info("historystore: recovered snapshot %s via jsonrepair", s.snapshotPath)
	}

	for id, rec := range records {
		s.cache.Add(id, rec)
	}
	return nil
}
