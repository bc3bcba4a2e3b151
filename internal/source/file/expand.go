package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// Expand turns command line arguments into capture paths. Directories are walked
// recursively and their regular files kept when the base name matches include;
// an empty include keeps every file. Other arguments pass through unchanged.
func Expand(paths []string, include string) ([]string, error) {
	var match glob.Glob
	if include != "" {
		var err error
		if match, err = glob.Compile(include); err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", include, err)
		}
	}

	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if p == "-" || err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if match == nil || match.Match(d.Name()) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
