package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Create writes an empty up/down migration pair into dir, numbered one past
// the highest version already present (the sequential 000001 scheme the
// migrations/ directory uses). It returns the two file paths.
func Create(dir, name string) (upPath, downPath string, err error) {
	slug := sanitizeName(name)
	if slug == "" {
		return "", "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create migrations directory: %w", err)
	}

	existing, err := List(dir)
	if err != nil {
		return "", "", err
	}
	next := 1
	for _, base := range existing {
		if v, ok := versionOf(base); ok && v >= next {
			next = v + 1
		}
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	upPath = filepath.Join(dir, base+".up.sql")
	downPath = filepath.Join(dir, base+".down.sql")

	if err := os.WriteFile(upPath, []byte("-- "+base+"\n"), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", upPath, err)
	}
	if err := os.WriteFile(downPath, []byte("-- revert "+base+"\n"), 0o644); err != nil {
		os.Remove(upPath)
		return "", "", fmt.Errorf("write %s: %w", downPath, err)
	}
	return upPath, downPath, nil
}

// List returns the base names of the migration pairs in dir, sorted by
// version. A missing directory is treated as empty.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var bases []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)
	return bases, nil
}

// versionOf extracts the numeric prefix of a migration base name.
func versionOf(base string) (int, bool) {
	prefix, _, found := strings.Cut(base, "_")
	if !found {
		prefix = base
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// sanitizeName lowercases a migration name and collapses separators and
// anything non-alphanumeric into single underscores.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			s := b.String()
			if s != "" && !strings.HasSuffix(s, "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
