// Package staging moves finished output products from the scratch
// directory into the output product directory.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Stager selects and copies output products by file name pattern.
type Stager struct {
	patterns []string
	globs    []glob.Glob // Pre-compiled glob patterns
}

// NewStager pre-compiles the given glob patterns. Patterns are matched
// against base file names, not full paths.
func NewStager(patterns []string) (*Stager, error) {
	s := &Stager{
		patterns: patterns,
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid output product pattern '%s': %w", pattern, err)
		}
		s.globs = append(s.globs, g)
	}
	return s, nil
}

// Match returns the files directly under dir whose names match any pattern,
// in name order. Subdirectories are not descended into, and a pattern that
// matches nothing is not an error.
func (s *Stager) Match(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, g := range s.globs {
			if g.Match(entry.Name()) {
				matches = append(matches, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	return matches, nil
}

// Stage copies every matching file from srcDir into dstDir, preserving file
// names, and returns the destination paths.
func (s *Stager) Stage(srcDir, dstDir string) ([]string, error) {
	matches, err := s.Match(srcDir)
	if err != nil {
		return nil, err
	}

	staged := make([]string, 0, len(matches))
	for _, src := range matches {
		dst := filepath.Join(dstDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		staged = append(staged, dst)
	}
	return staged, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy '%s' to '%s': %w", src, dst, err)
	}

	return out.Close()
}
