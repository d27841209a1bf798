package semantic

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Errors returned by index operations.
var (
	ErrIndexNotFound      = errors.New("spec2vec index not found")
	ErrSpectrumNotIndexed = errors.New("spectrum not in spec2vec index")
	ErrUnsupportedVersion = errors.New("unsupported index version")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)

const (
	// IndexFileName is the name of the spec2vec index file under .gnps/cache.
	IndexFileName = "spec2vec.gob"

	// CurrentIndexVersion must be bumped whenever SemanticIndex changes shape.
	CurrentIndexVersion = 1
)

// IndexPath returns the path to the spec2vec index file.
func IndexPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".gnps", "cache", IndexFileName)
}

// NewSemanticIndex creates an empty index for vectors of the given size.
func NewSemanticIndex(modelName string, dimensions int) *SemanticIndex {
	return &SemanticIndex{
		Version:    CurrentIndexVersion,
		ModelName:  modelName,
		Dimensions: dimensions,
		CreatedAt:  time.Now(),
		Embeddings: make(map[string][]float32),
	}
}

// AddEmbedding stores the vector for a spectrum, replacing any previous one.
func (idx *SemanticIndex) AddEmbedding(spectrumID string, vector []float32) error {
	if len(vector) != idx.Dimensions {
		return fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, spectrumID, len(vector), idx.Dimensions)
	}
	idx.Embeddings[spectrumID] = vector
	idx.SpectrumCount = len(idx.Embeddings)
	return nil
}

// Vector returns the stored vector for a spectrum.
func (idx *SemanticIndex) Vector(spectrumID string) ([]float32, error) {
	v, ok := idx.Embeddings[spectrumID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpectrumNotIndexed, spectrumID)
	}
	return v, nil
}

// Save writes the index next to the spectra cache. The previous index stays
// in place until the new one is fully written.
func (idx *SemanticIndex) Save(repoRoot string) error {
	return writeAtomic(IndexPath(repoRoot), func(w io.Writer) error {
		if err := gob.NewEncoder(w).Encode(idx); err != nil {
			return fmt.Errorf("encoding index: %w", err)
		}
		return nil
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Load reads the index of a repository.
func Load(repoRoot string) (*SemanticIndex, error) {
	f, err := os.Open(IndexPath(repoRoot))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var idx SemanticIndex
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if idx.Version != CurrentIndexVersion {
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild with 'gnps index build')",
			ErrUnsupportedVersion, idx.Version, CurrentIndexVersion)
	}
	if idx.Embeddings == nil {
		idx.Embeddings = make(map[string][]float32)
	}
	return &idx, nil
}

// IndexSize returns the size of the index file in bytes.
func IndexSize(repoRoot string) (int64, error) {
	info, err := os.Stat(IndexPath(repoRoot))
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrIndexNotFound
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Exists reports whether the repository has a built index.
func Exists(repoRoot string) bool {
	_, err := os.Stat(IndexPath(repoRoot))
	return err == nil
}
