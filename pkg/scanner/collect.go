package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmylchreest/smelly/pkg/smellignore"
	"github.com/jmylchreest/smelly/pkg/source"
)

// Collect expands paths into the files to scan. Directories are walked and
// contribute their supported, non-ignored files in sorted order; explicit
// file paths are kept as given, even when missing, so that every requested
// input still gets a report. Duplicates are dropped.
func Collect(paths []string, ignore *smellignore.Matcher) ([]string, error) {
	if ignore == nil {
		ignore = smellignore.NewFromDefaults()
	}

	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			add(root)
			continue
		}

		shouldSkip := ignore.WalkFunc(root)
		var files []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path != root {
				if skip, skipDir := shouldSkip(path, d.IsDir()); skip {
					if skipDir {
						return filepath.SkipDir
					}
					return nil
				}
			}
			if !d.IsDir() && source.SupportedFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}
