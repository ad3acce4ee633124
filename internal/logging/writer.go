package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// openRunFile opens the log file a publication run appends to. Pack runs are
// short and bounded, so the size cap is checked once at open time: a file
// past the cap rolls to numbered backups before the run starts, and the run
// itself writes to a fresh file.
func openRunFile(path string, maxBytes int64, backups int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if st, err := os.Stat(path); err == nil && st.Size() >= maxBytes {
		if err := rollover(path, backups); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// rollover shifts path -> path.1 -> path.2, dropping backups beyond the
// limit. Highest numbers rename first so nothing is overwritten.
func rollover(path string, backups int) error {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return fmt.Errorf("list rolled log files: %w", err)
	}

	type rolled struct {
		path string
		num  int
	}
	var files []rolled
	for _, m := range matches {
		num, err := strconv.Atoi(strings.TrimPrefix(m, path+"."))
		if err != nil {
			continue
		}
		files = append(files, rolled{path: m, num: num})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].num > files[j].num })

	for _, f := range files {
		if f.num >= backups {
			_ = os.Remove(f.path)
			continue
		}
		_ = os.Rename(f.path, fmt.Sprintf("%s.%d", path, f.num+1))
	}

	if backups < 1 {
		return os.Remove(path)
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("roll log file: %w", err)
	}
	return nil
}
