package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	snapshotTimeLayout = "2006-01-02T15-04-05.000000"
	snapshotNameCache  = 4096
)

var nameSanitizer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// SnapshotStore writes the raw HTML of each successfully fetched page to disk.
type SnapshotStore struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	names *lru.Cache[string, int]
}

// NewSnapshotStore returns a store rooted at dir. The directory is created on
// first write.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	names, err := lru.New[string, int](snapshotNameCache)
	if err != nil {
		return nil, fmt.Errorf("create snapshot name cache: %w", err)
	}
	return &SnapshotStore{dir: dir, now: time.Now, names: names}, nil
}

// Save writes body under a name derived from title, or from the current time
// when title is nil. Titles repeated within the process get a -2, -3 suffix.
func (s *SnapshotStore) Save(title *string, body string) (string, error) {
	path := filepath.Join(s.dir, s.name(title)+".html")
	if err := ensureDir(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

func (s *SnapshotStore) name(title *string) string {
	var base string
	if title != nil {
		base = strings.TrimSpace(nameSanitizer.Replace(*title))
	}
	if base == "" || base == "." || base == ".." {
		return s.now().Format(snapshotTimeLayout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count, _ := s.names.Get(base)
	count++
	s.names.Add(base, count)
	if count == 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, count)
}
