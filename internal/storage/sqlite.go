package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS spectra (
			id TEXT PRIMARY KEY,
			precursor_mz REAL,
			parent_mass REAL,
			ionmode TEXT,
			compound_name TEXT,
			smiles TEXT,
			inchi TEXT,
			inchikey TEXT,
			formula TEXT,
			library TEXT,
			num_peaks INTEGER NOT NULL,
			spectrum_json TEXT NOT NULL
		);

		-- Range queries for mass presearch
		CREATE INDEX IF NOT EXISTS idx_spectra_precursor ON spectra(precursor_mz) WHERE precursor_mz IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_spectra_inchikey ON spectra(inchikey) WHERE inchikey IS NOT NULL;

		-- Staleness detection for the spec2vec index
		CREATE TABLE IF NOT EXISTS embedding_metadata (
			spectrum_id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			indexed_at INTEGER NOT NULL,
			peaks_hash TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the spectra table and rebuilds it from a JSONL file.
func (d *DB) RebuildFromJSONL(jsonlPath string) (int, error) {
	spectra, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM spectra"); err != nil {
		return 0, fmt.Errorf("clearing spectra table: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO spectra (
			id, precursor_mz, parent_mass, ionmode, compound_name,
			smiles, inchi, inchikey, formula, library,
			num_peaks, spectrum_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing spectra insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range spectra {
		data, err := json.Marshal(s)
		if err != nil {
			return 0, fmt.Errorf("marshaling spectrum %s: %w", s.ID, err)
		}
		m := s.Metadata
		_, err = stmt.Exec(
			s.ID, nullableFloat(m.PrecursorMZ), nullableFloat(m.ParentMass),
			nullableStringValue(m.IonMode), nullableStringValue(m.CompoundName),
			nullableStringValue(m.Smiles), nullableStringValue(m.InChI),
			nullableStringValue(m.InChIKey), nullableStringValue(m.Formula),
			nullableStringValue(m.Library),
			len(s.Peaks), string(data),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting spectrum %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(spectra), nil
}

// GetByID retrieves a spectrum by its ID. Returns nil if not found.
func (d *DB) GetByID(id string) (*spectrum.Spectrum, error) {
	row := d.db.QueryRow(`SELECT spectrum_json FROM spectra WHERE id = ?`, id)
	return scanSpectrum(row)
}

// ListAll returns all spectra ordered by ID, optionally limited.
func (d *DB) ListAll(limit int) ([]*spectrum.Spectrum, error) {
	query := `SELECT spectrum_json FROM spectra ORDER BY id`
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = []interface{}{limit}
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing spectra: %w", err)
	}
	defer rows.Close()

	return scanSpectra(rows)
}

// Count returns the total number of spectra.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM spectra").Scan(&count)
	return count, err
}

// CountAnnotated returns the number of spectra with a SMILES annotation.
func (d *DB) CountAnnotated() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM spectra WHERE smiles IS NOT NULL AND TRIM(smiles) != ''").Scan(&count)
	return count, err
}

// SearchByName returns spectra whose compound name contains q (case-insensitive).
func (d *DB) SearchByName(q string, limit int) ([]*spectrum.Spectrum, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"

	query := `SELECT spectrum_json FROM spectra
		WHERE LOWER(compound_name) LIKE ? ESCAPE '\'
		ORDER BY compound_name, id`
	args := []interface{}{pattern}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching names: %w", err)
	}
	defer rows.Close()

	return scanSpectra(rows)
}

// ByPrecursorRange returns spectra with lo <= precursor m/z <= hi, ordered by mass.
func (d *DB) ByPrecursorRange(lo, hi float64) ([]*spectrum.Spectrum, error) {
	rows, err := d.db.Query(`
		SELECT spectrum_json FROM spectra
		WHERE precursor_mz IS NOT NULL AND precursor_mz BETWEEN ? AND ?
		ORDER BY precursor_mz, id
	`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("querying precursor range: %w", err)
	}
	defer rows.Close()

	return scanSpectra(rows)
}

// ByInChIKeyBlock returns spectra whose InChIKey starts with the given first block.
func (d *DB) ByInChIKeyBlock(block string) ([]*spectrum.Spectrum, error) {
	if block == "" {
		return nil, nil
	}
	rows, err := d.db.Query(`
		SELECT spectrum_json FROM spectra
		WHERE inchikey LIKE ? ESCAPE '\'
		ORDER BY id
	`, escapeLike(block)+"%")
	if err != nil {
		return nil, fmt.Errorf("querying inchikey: %w", err)
	}
	defer rows.Close()

	return scanSpectra(rows)
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSpectrum(s scanner) (*spectrum.Spectrum, error) {
	var data string
	if err := s.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var sp spectrum.Spectrum
	if err := json.Unmarshal([]byte(data), &sp); err != nil {
		return nil, fmt.Errorf("parsing spectrum JSON: %w", err)
	}
	return &sp, nil
}

func scanSpectra(rows *sql.Rows) ([]*spectrum.Spectrum, error) {
	var out []*spectrum.Spectrum
	for rows.Next() {
		s, err := scanSpectrum(rows)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableFloat treats zero and negative values as NULL.
func nullableFloat(v float64) sql.NullFloat64 {
	if v <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// EmbeddingMetadata represents embedding metadata stored in the database.
type EmbeddingMetadata struct {
	SpectrumID string
	ModelName  string
	IndexedAt  int64  // Unix timestamp
	PeaksHash  string // SHA256 of the peak list
}

// SaveEmbeddingMetadata saves or updates embedding metadata for a spectrum.
func (d *DB) SaveEmbeddingMetadata(meta EmbeddingMetadata) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO embedding_metadata (spectrum_id, model_name, indexed_at, peaks_hash)
		VALUES (?, ?, ?, ?)
	`, meta.SpectrumID, meta.ModelName, meta.IndexedAt, meta.PeaksHash)
	return err
}

// GetEmbeddingMetadata retrieves embedding metadata for a spectrum. Returns nil if absent.
func (d *DB) GetEmbeddingMetadata(spectrumID string) (*EmbeddingMetadata, error) {
	var meta EmbeddingMetadata
	err := d.db.QueryRow(`
		SELECT spectrum_id, model_name, indexed_at, peaks_hash
		FROM embedding_metadata
		WHERE spectrum_id = ?
	`, spectrumID).Scan(&meta.SpectrumID, &meta.ModelName, &meta.IndexedAt, &meta.PeaksHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
}

// ReplaceEmbeddingMetadata replaces all embedding metadata with metas in a
// single transaction.
func (d *DB) ReplaceEmbeddingMetadata(metas []EmbeddingMetadata) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM embedding_metadata"); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO embedding_metadata (spectrum_id, model_name, indexed_at, peaks_hash)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, meta := range metas {
		if _, err := stmt.Exec(meta.SpectrumID, meta.ModelName, meta.IndexedAt, meta.PeaksHash); err != nil {
			return fmt.Errorf("metadata for %s: %w", meta.SpectrumID, err)
		}
	}
	return tx.Commit()
}

// CountEmbeddingMetadata returns the number of spectra with embedding metadata.
func (d *DB) CountEmbeddingMetadata() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM embedding_metadata").Scan(&count)
	return count, err
}
