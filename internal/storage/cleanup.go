package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Prune removes saved worksheets and leftover temp files older than maxAge
// and returns how many files it deleted.
func (s *LocalStore) Prune(maxAge time.Duration) int {
	return pruneDir(s.dir, maxAge, time.Now())
}

func pruneDir(dir string, maxAge time.Duration, now time.Time) int {
	if maxAge <= 0 {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, "_worksheet.json") && !strings.HasSuffix(name, "_worksheet.json.tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= maxAge {
			if os.Remove(filepath.Join(dir, name)) == nil {
				removed++
			}
		}
	}
	return removed
}
