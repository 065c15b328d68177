package rates

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// ErrCorruptSnapshot marks a persisted cache file that cannot be read
// back. Callers recover by starting with an empty cache.
var ErrCorruptSnapshot = errors.New("corrupt rates snapshot")

// FileStore persists the rate cache to a flat JSON file keyed by currency
// code. The file survives restarts; entry timestamps are preserved so a
// stale entry is still stale after a reload.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type storedEntry struct {
	Rate      float64   `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
}

// Load reads the snapshot. A missing file yields an empty result; an
// unreadable or malformed file yields ErrCorruptSnapshot.
func (s *FileStore) Load() ([]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var stored map[string]storedEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	entries := make([]Entry, 0, len(stored))
	for rawCode, se := range stored {
		code, err := currency.ParseCode(rawCode)
		if err != nil || se.Rate <= 0 || se.UpdatedAt.IsZero() {
			return nil, fmt.Errorf("%w: bad entry for %q", ErrCorruptSnapshot, rawCode)
		}
		entries = append(entries, Entry{
			Quote:     code,
			Rate:      se.Rate,
			FetchedAt: se.UpdatedAt,
			Source:    se.Source,
		})
	}
	return entries, nil
}

// Save writes the snapshot, replacing the previous file. The write goes
// through a temp file and a rename so a crash never leaves a half-written
// snapshot behind.
func (s *FileStore) Save(entries []Entry) error {
	stored := make(map[string]storedEntry, len(entries))
	for _, e := range entries {
		stored[string(e.Quote)] = storedEntry{
			Rate:      e.Rate,
			UpdatedAt: e.FetchedAt,
			Source:    e.Source,
		}
	}

	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rates snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "rates-*.json")
	if err != nil {
		return fmt.Errorf("write rates snapshot: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write rates snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write rates snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// SortEntries orders entries by quote code for deterministic output.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Quote < entries[j].Quote })
}
