package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// Supported input formats.
const (
	FormatGNPSJSON = "json"
	FormatMGF      = "mgf"
)

// ErrUnknownFormat is returned for files whose format cannot be determined.
var ErrUnknownFormat = errors.New("unknown spectrum file format")

// DetectFormat infers the input format from the file extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatGNPSJSON, nil
	case ".mgf":
		return FormatMGF, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Parse reads spectra in the given format.
func Parse(r io.Reader, format string) ([]*spectrum.Spectrum, []error) {
	switch format {
	case FormatGNPSJSON:
		return ParseGNPSJSON(r)
	case FormatMGF:
		return ParseMGF(r)
	}
	return nil, []error{fmt.Errorf("%w: %q", ErrUnknownFormat, format)}
}

// ReadFile opens path and parses it according to its extension.
func ReadFile(path string) ([]*spectrum.Spectrum, []error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, []error{err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{fmt.Errorf("opening %s: %w", path, err)}
	}
	defer f.Close()
	return Parse(f, format)
}
