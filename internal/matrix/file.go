package matrix

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Extension is the conventional suffix of matrix files.
const Extension = ".mtx.zst"

// FormatVersion is the current on-disk format version.
const FormatVersion = 1

// ErrUnsupportedVersion is returned when a matrix file has a different format version.
var ErrUnsupportedVersion = errors.New("unsupported matrix file version")

type fileData struct {
	Version int
	Matrix  *Matrix
}

// Save writes the matrix as zstd-compressed gob. The file is written to a
// temporary path first and renamed into place.
func (m *Matrix) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	if err := gob.NewEncoder(zw).Encode(fileData{Version: FormatVersion, Matrix: m}); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding matrix: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing zstd stream: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming matrix file: %w", err)
	}
	return nil
}

// Load reads a matrix written by Save.
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening matrix file: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	var data fileData
	if err := gob.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding matrix: %w", err)
	}
	if data.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, data.Version, FormatVersion)
	}
	if data.Matrix == nil {
		return nil, errors.New("matrix file has no data")
	}
	return data.Matrix, nil
}
