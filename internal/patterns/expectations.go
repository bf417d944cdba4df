package patterns

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	toml "github.com/pelletier/go-toml/v2"
)

// expectationsFile is the TOML form of the expected pattern ids.
type expectationsFile struct {
	Expected []string `toml:"expected"`
}

// LoadExpectations reads expected pattern ids from path. A missing file
// yields no ids and no error.
func LoadExpectations(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("patterns: read expectations: %w", err)
	}

	var file expectationsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("patterns: parse expectations %s: %w", path, err)
	}
	return file.Expected, nil
}

// SaveExpectations writes ids to path through a temp file and rename.
func SaveExpectations(path string, ids []string) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	data, err := toml.Marshal(expectationsFile{Expected: slices.Compact(sorted)})
	if err != nil {
		return fmt.Errorf("patterns: marshal expectations: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("patterns: create expectations dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("patterns: write expectations: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("patterns: rename expectations: %w", err)
	}
	return nil
}

// LoadExpected marks every id stored at path as expected.
func (d *Detector) LoadExpected(path string) error {
	ids, err := LoadExpectations(path)
	if err != nil {
		return err
	}
	for _, id := range ids {
		d.MarkExpected(id)
	}
	return nil
}

// SaveExpected writes the currently marked ids to path.
func (d *Detector) SaveExpected(path string) error {
	return SaveExpectations(path, d.Expected())
}
