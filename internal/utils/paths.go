package utils

import "path/filepath"

// MemoryPath is the SQLite pseudo-path that must never be resolved.
const MemoryPath = ":memory:"

// ResolvePaths rewrites each non-empty relative path in place so it is
// rooted at baseDir. Absolute paths, empty strings and MemoryPath are left
// untouched.
func ResolvePaths(baseDir string, paths ...*string) {
	for _, p := range paths {
		if p == nil || *p == "" || *p == MemoryPath || filepath.IsAbs(*p) {
			continue
		}
		*p = filepath.Join(baseDir, *p)
	}
}
