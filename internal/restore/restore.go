// Package restore implements the restore-file and history-file
// persistence: a flat list of {partitionId, sessionId} pairs written
// atomically, loaded at startup to reattach, plus a per-partition
// append-only history log. Both are stored as YAML, matching the
// topology fixtures' use of gopkg.in/yaml.v2 elsewhere in this module.
package restore

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Entry is one restore-file row.
type Entry struct {
	PartitionID string `yaml:"partitionId"`
	SessionID   string `yaml:"sessionId"`
}

// Store serializes restore-file reads and writes with its own mutex, so
// callers need not hold any lock of theirs while calling it.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a restore-file store rooted at path. path's parent
// directory is created lazily on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads every entry currently in the restore file. A missing file
// is treated as an empty list.
func (s *Store) Load() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading restore file")
	}
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "parsing restore file")
	}
	return entries, nil
}

// Put upserts the {partitionId, sessionId} entry and overwrites the
// file atomically (write-temp-then-rename).
func (s *Store) Put(partitionID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].PartitionID == partitionID {
			entries[i].SessionID = sessionID
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, Entry{PartitionID: partitionID, SessionID: sessionID})
	}
	return s.write(entries)
}

// Remove drops partitionID's entry, if present, and overwrites the file.
func (s *Store) Remove(partitionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.PartitionID != partitionID {
			out = append(out, e)
		}
	}
	return s.write(out)
}

func (s *Store) write(entries []Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating restore file dir")
	}
	out, err := yaml.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "marshaling restore file")
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return errors.Wrap(err, "writing restore file")
	}
	return os.Rename(tmp, s.path)
}

// HistoryRecord is one append-only history-file entry per Activate/
// Update.
type HistoryRecord struct {
	PartitionID  string    `yaml:"partitionId"`
	SessionID    string    `yaml:"sessionId"`
	TopologyPath string    `yaml:"topologyPath"`
	CreatedAt    time.Time `yaml:"createdAt"`
}

// History appends timestamped {sessionId, topologyPath} records to a
// single YAML-document-stream file.
type History struct {
	mu   sync.Mutex
	path string
}

// NewHistory returns a history-file appender rooted at path.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Append writes one history record, stamping CreatedAt if the caller
// left it zero, and creating the file and its parent directory if
// necessary.
func (h *History) Append(rec HistoryRecord) error {
	if h.path == "" {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return errors.Wrap(err, "creating history file dir")
	}
	out, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshaling history record")
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening history file")
	}
	defer f.Close()
	if _, err := f.Write(append([]byte("---\n"), out...)); err != nil {
		return errors.Wrap(err, "appending history record")
	}
	return nil
}

// Latest returns the most recent history record for partitionID, if
// any, used by Initialize's attach path to rediscover which topology
// file a reattached session was last activated against.
func (h *History) Latest(partitionID string) (HistoryRecord, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	raw, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return HistoryRecord{}, false, nil
	}
	if err != nil {
		return HistoryRecord{}, false, errors.Wrap(err, "reading history file")
	}

	var latest HistoryRecord
	found := false
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	for {
		var rec HistoryRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		if rec.PartitionID == partitionID {
			latest = rec
			found = true
		}
	}
	return latest, found, nil
}
