// Package word2vec reads pre-trained word vectors in the word2vec C formats.
//
// Models trained with gensim can be exported with
// model.wv.save_word2vec_format(path, binary=True).
package word2vec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Errors returned while loading models.
var (
	ErrBadHeader         = errors.New("invalid word2vec header")
	ErrDimensionMismatch = errors.New("vector has wrong dimension")
)

// Model maps vocabulary words to dense vectors.
type Model struct {
	Name       string
	VectorSize int
	words      []string
	vocab      map[string]int
	vectors    [][]float32
}

// NewModel creates an empty model for vectors of the given size.
func NewModel(name string, vectorSize int) *Model {
	return &Model{
		Name:       name,
		VectorSize: vectorSize,
		vocab:      make(map[string]int),
	}
}

// Add inserts or replaces a word vector.
func (m *Model) Add(word string, vec []float32) error {
	if len(vec) != m.VectorSize {
		return fmt.Errorf("%w: %q has %d, want %d", ErrDimensionMismatch, word, len(vec), m.VectorSize)
	}
	if i, ok := m.vocab[word]; ok {
		m.vectors[i] = vec
		return nil
	}
	m.vocab[word] = len(m.words)
	m.words = append(m.words, word)
	m.vectors = append(m.vectors, vec)
	return nil
}

// Has reports whether the word is in the vocabulary.
func (m *Model) Has(word string) bool {
	_, ok := m.vocab[word]
	return ok
}

// Vector returns the vector for a word, or nil if it is unknown.
func (m *Model) Vector(word string) []float32 {
	i, ok := m.vocab[word]
	if !ok {
		return nil
	}
	return m.vectors[i]
}

// VocabSize returns the number of words in the model.
func (m *Model) VocabSize() int {
	return len(m.words)
}

// Load reads a model from disk. Files ending in ".bin" are read as binary,
// anything else as text.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	var m *Model
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		m, err = ReadBinary(r)
	} else {
		m, err = ReadText(r)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m.Name = filepath.Base(path)
	return m, nil
}

func readHeader(r *bufio.Reader) (count, dim int, err error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, 0, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHeader, strings.TrimSpace(line))
	}
	count, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: vocabulary size %q", ErrBadHeader, fields[0])
	}
	dim, err = strconv.Atoi(fields[1])
	if err != nil || dim <= 0 {
		return 0, 0, fmt.Errorf("%w: vector size %q", ErrBadHeader, fields[1])
	}
	return count, dim, nil
}

// ReadText parses the text format: a "count dim" header, then one
// "word v1 ... vdim" line per word.
func ReadText(r *bufio.Reader) (*Model, error) {
	count, dim, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	m := NewModel("", dim)
	lineNum := 1
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			lineNum++
			fields := strings.Fields(line)
			if len(fields) != dim+1 {
				return nil, fmt.Errorf("line %d: %w: got %d values, want %d", lineNum, ErrDimensionMismatch, len(fields)-1, dim)
			}
			vec := make([]float32, dim)
			for i, s := range fields[1:] {
				v, perr := strconv.ParseFloat(s, 32)
				if perr != nil {
					return nil, fmt.Errorf("line %d: parsing value %q: %w", lineNum, s, perr)
				}
				vec[i] = float32(v)
			}
			if aerr := m.Add(fields[0], vec); aerr != nil {
				return nil, aerr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if m.VocabSize() != count {
		return nil, fmt.Errorf("header declares %d words, found %d", count, m.VocabSize())
	}
	return m, nil
}

// ReadBinary parses the binary format: a "count dim" header, then for each word
// the word, a space, and dim little-endian float32 values. A newline between
// records is optional.
func ReadBinary(r *bufio.Reader) (*Model, error) {
	count, dim, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	m := NewModel("", dim)
	buf := make([]byte, 4*dim)
	for n := 0; n < count; n++ {
		word, err := r.ReadString(' ')
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", n, err)
		}
		word = strings.TrimLeft(strings.TrimSuffix(word, " "), "\n")
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("vector for %q: %w", word, err)
		}
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		if err := m.Add(word, vec); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WriteText writes the model in text format.
func (m *Model) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(m.words), m.VectorSize)
	for i, word := range m.words {
		bw.WriteString(word)
		for _, v := range m.vectors[i] {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteBinary writes the model in binary format.
func (m *Model) WriteBinary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(m.words), m.VectorSize)
	buf := make([]byte, 4*m.VectorSize)
	for i, word := range m.words {
		bw.WriteString(word)
		bw.WriteByte(' ')
		for j, v := range m.vectors[i] {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(v))
		}
		bw.Write(buf)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
