// Package idfile reads and writes the plain-text ID lists that drive a run:
// one ID per line, one file per entity kind.
package idfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

// Read returns the non-blank, trimmed lines of path in order. A missing file
// yields an empty list and a warning.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN idfile: %s not found, treating as empty", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idfile: open %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("idfile: read %s: %w", path, err)
	}
	return ids, nil
}

// Write replaces path with ids, one per line.
func Write(path string, ids []string) error {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("idfile: write %s: %w", path, err)
	}
	return nil
}

// Dir resolves each kind to its conventional file inside a directory.
type Dir struct {
	path string
}

var _ ports.IDSource = Dir{}

func NewDir(path string) Dir {
	return Dir{path: path}
}

// Path is the file holding IDs of kind.
func (d Dir) Path(kind domain.Kind) string {
	return filepath.Join(d.path, kind.IDFile())
}

// IDs reads the list for kind.
func (d Dir) IDs(kind domain.Kind) ([]string, error) {
	return Read(d.Path(kind))
}

// Save writes the list for kind, creating the directory if needed.
func (d Dir) Save(kind domain.Kind, ids []string) error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("idfile: create %s: %w", d.path, err)
	}
	return Write(d.Path(kind), ids)
}
