// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/siemens/netprobe/types"
)

// DefaultDir is the default data directory for scan summaries, relative to
// the working directory.
const DefaultDir = "data"

var (
	// ErrNotFound signals that there is no archived summary for a scan ID.
	ErrNotFound = errors.New("scan summary not found")
	// ErrInvalidID signals a scan ID unfit for naming a file.
	ErrInvalidID = errors.New("invalid scan ID")
)

// Dir archives scan summaries inside a data directory.
type Dir struct {
	path string
}

// New returns a [Dir] archiving into the specified directory, which gets
// created when writing the first summary. An empty path selects
// [DefaultDir].
func New(path string) *Dir {
	if path == "" {
		path = DefaultDir
	}
	return &Dir{path: path}
}

// Path returns the data directory path.
func (d *Dir) Path() string { return d.path }

// PathOf returns the path of the document for the specified scan ID.
func (d *Dir) PathOf(id string) (string, error) {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(d.path, id+".json"), nil
}

// Archive writes the summary as an indented JSON document named after its
// scan ID, returning the document's path.
func (d *Dir) Archive(ctx context.Context, summary *types.Summary) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := d.PathOf(summary.ScanID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cannot marshal scan summary: %w", err)
	}
	if err := WriteAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads back the archived summary for the specified scan ID.
func (d *Dir) Load(id string) (*types.Summary, error) {
	path, err := d.PathOf(id)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a summary document from the specified path.
func LoadFile(path string) (*types.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	var summary types.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("malformed scan summary %s: %w", path, err)
	}
	return &summary, nil
}

// WriteAtomic writes data to path by first writing and syncing a temporary
// file in the same directory, and then renaming it into place. The directory
// gets created if necessary. On failure, the temporary file is removed.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".netprobe-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
