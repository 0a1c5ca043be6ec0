package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
)

// Snapshot is the serializable form of the store, used both by the
// export/import API and by on-disk durability.
type Snapshot struct {
	Version    int                            `json:"version"`
	ExportedAt time.Time                      `json:"exported_at"`
	Entries    map[string][]core.HistoryEntry `json:"entries"`
}

const snapshotVersion = 1

// Export produces a snapshot of one domain's history, or of the whole
// store when domain is empty.
func (s *Store) Export(domain string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Version:    snapshotVersion,
		ExportedAt: s.now(),
		Entries:    make(map[string][]core.HistoryEntry),
	}
	for d, bucket := range s.entries {
		if domain != "" && d != domain {
			continue
		}
		snap.Entries[d] = append([]core.HistoryEntry(nil), bucket...)
	}
	return snap
}

// Import merges a snapshot into the store. Validation runs before any
// mutation and is all-or-nothing per domain: one bad entry rejects that
// domain's batch but not its siblings. Imported entries replace the
// domain's existing history.
func (s *Store) Import(snap *Snapshot) (imported, skipped int, err error) {
	if snap == nil || len(snap.Entries) == 0 {
		return 0, 0, fmt.Errorf("empty snapshot")
	}

	valid := make(map[string][]core.HistoryEntry, len(snap.Entries))
	for domain, bucket := range snap.Entries {
		if domainBatchValid(domain, bucket) {
			sorted := append([]core.HistoryEntry(nil), bucket...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
			valid[domain] = sorted
			imported += len(sorted)
		} else {
			skipped += len(bucket)
		}
	}
	if len(valid) == 0 {
		return 0, skipped, fmt.Errorf("no valid domains in snapshot")
	}

	s.mu.Lock()
	for domain, bucket := range valid {
		s.entries[domain] = bucket
	}
	s.mu.Unlock()

	s.logger.Info("history imported",
		zap.Int("entries", imported),
		zap.Int("skipped", skipped),
		zap.Int("domains", len(valid)),
	)
	return imported, skipped, nil
}

func domainBatchValid(domain string, bucket []core.HistoryEntry) bool {
	if len(bucket) == 0 {
		return false
	}
	for _, entry := range bucket {
		if entry.Domain != domain || entry.Timestamp.IsZero() {
			return false
		}
		switch entry.Type {
		case core.CheckTypeCertificate, core.CheckTypeSecurity, core.CheckTypePerformance:
		default:
			return false
		}
	}
	return true
}

// Save writes the whole store to disk as JSON.
func (s *Store) Save(path string) error {
	snap := s.Export("")
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	s.logger.Info("history snapshot saved", zap.String("path", path), zap.Int("entries", s.Size()))
	return nil
}

// Load restores a snapshot written by Save. A missing file is not an
// error; corrupt or partially valid files import what they can.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if _, _, err := s.Import(&snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}
