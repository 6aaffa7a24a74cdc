package announce

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

const seenKeep = 50

// seenStore persists the announcement ids already pushed, so a restart does
// not replay the whole feed into every subscribed group.
type seenStore struct {
	mu   sync.Mutex
	path string
}

type seenFile struct {
	IDs []string `json:"ids"`
}

func newSeenStore(dir string) *seenStore {
	return &seenStore{path: filepath.Join(dir, "ann_seen.json")}
}

func (s *seenStore) Load() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var f seenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	return f.IDs
}

func (s *seenStore) Save(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(seenFile{IDs: ids}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// mergeSeen keeps the newest seenKeep known ids and appends the fresh feed,
// deduplicated. Ids are numeric strings; newest means numerically largest.
func mergeSeen(known, fresh []string) []string {
	sorted := make([]string, len(known))
	copy(sorted, known)
	sort.Slice(sorted, func(i, j int) bool {
		return idNum(sorted[i]) > idNum(sorted[j])
	})
	if len(sorted) > seenKeep {
		sorted = sorted[:seenKeep]
	}

	seen := make(map[string]bool, len(sorted)+len(fresh))
	var out []string
	for _, id := range append(sorted, fresh...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func idNum(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}
