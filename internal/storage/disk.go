package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskUsageBytes returns the combined size of a scheme's storage locations (index directory,
// RDF store, term files). Directories are summed recursively; empty or missing paths count 0.
// A path inside another listed directory is counted once, as part of that directory.
func DiskUsageBytes(paths ...string) (int64, error) {
	type location struct {
		path string
		info fs.FileInfo
	}
	var locs []location
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		locs = append(locs, location{path: p, info: info})
	}

	var total int64
	for _, loc := range locs {
		covered := false
		for _, other := range locs {
			if other.info.IsDir() && within(loc.path, other.path) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		if !loc.info.IsDir() {
			total += loc.info.Size()
			continue
		}
		err := filepath.WalkDir(loc.path, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// within reports whether p lies strictly below dir.
func within(p, dir string) bool {
	if p == dir {
		return false
	}
	return strings.HasPrefix(p, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
