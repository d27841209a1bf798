package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/library"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
)

const selectMatchFields = `query_id, library_id, library_index,
	cosine_score, cosine_matches, mod_cosine_score, mod_cosine_matches,
	mass_match, s2v_score`

// createMatchesSchema creates the matches table and indexes.
func (d *DB) createMatchesSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS matches (
			query_id TEXT NOT NULL,
			library_id TEXT NOT NULL,
			library_index INTEGER NOT NULL,
			cosine_score REAL,
			cosine_matches INTEGER,
			mod_cosine_score REAL,
			mod_cosine_matches INTEGER,
			mass_match INTEGER,
			s2v_score REAL,
			PRIMARY KEY (query_id, library_id)
		);

		CREATE INDEX IF NOT EXISTS idx_matches_library ON matches(library_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// RebuildMatchesFromJSONL clears the matches table and rebuilds it from a JSONL file.
func (d *DB) RebuildMatchesFromJSONL(jsonlPath string) (int, error) {
	if err := d.createMatchesSchema(); err != nil {
		return 0, fmt.Errorf("creating matches schema: %w", err)
	}

	matches, err := ReadAllMatches(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading matches JSONL: %w", err)
	}

	if _, err := d.db.Exec("DELETE FROM matches"); err != nil {
		return 0, fmt.Errorf("clearing matches table: %w", err)
	}

	for _, c := range matches {
		if err := d.InsertMatch(c); err != nil {
			return 0, err
		}
	}
	return len(matches), nil
}

// InsertMatch inserts or replaces a single candidate.
func (d *DB) InsertMatch(c library.Candidate) error {
	if err := d.createMatchesSchema(); err != nil {
		return fmt.Errorf("creating matches schema: %w", err)
	}

	var cosScore, modScore, s2v sql.NullFloat64
	var cosMatches, modMatches, massMatch sql.NullInt64
	if c.Cosine != nil {
		cosScore = sql.NullFloat64{Float64: c.Cosine.Value, Valid: true}
		cosMatches = sql.NullInt64{Int64: int64(c.Cosine.Matches), Valid: true}
	}
	if c.ModCosine != nil {
		modScore = sql.NullFloat64{Float64: c.ModCosine.Value, Valid: true}
		modMatches = sql.NullInt64{Int64: int64(c.ModCosine.Matches), Valid: true}
	}
	if c.MassMatch != nil {
		massMatch = sql.NullInt64{Valid: true}
		if *c.MassMatch {
			massMatch.Int64 = 1
		}
	}
	if c.Spec2Vec != nil {
		s2v = sql.NullFloat64{Float64: *c.Spec2Vec, Valid: true}
	}

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO matches (`+selectMatchFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.QueryID, c.LibraryID, c.LibraryIndex, cosScore, cosMatches, modScore, modMatches, massMatch, s2v)
	if err != nil {
		return fmt.Errorf("inserting match %s/%s: %w", c.QueryID, c.LibraryID, err)
	}
	return nil
}

// GetMatchesByQuery returns the saved candidates of a query ordered by library index.
func (d *DB) GetMatchesByQuery(queryID string) ([]library.Candidate, error) {
	return d.queryMatches(`WHERE query_id = ? ORDER BY library_index`, queryID)
}

// GetMatchesByLibrary returns every saved candidate pointing at a library spectrum.
func (d *DB) GetMatchesByLibrary(libraryID string) ([]library.Candidate, error) {
	return d.queryMatches(`WHERE library_id = ? ORDER BY query_id`, libraryID)
}

// CountMatches returns the total number of saved candidates.
func (d *DB) CountMatches() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM matches").Scan(&count)
	if err != nil {
		// Table might not exist yet
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (d *DB) queryMatches(where string, args ...interface{}) ([]library.Candidate, error) {
	if err := d.createMatchesSchema(); err != nil {
		return nil, fmt.Errorf("creating matches schema: %w", err)
	}
	rows, err := d.db.Query(`SELECT `+selectMatchFields+` FROM matches `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// scanMatches scans rows into candidates, leaving NULL scores unset.
func scanMatches(rows *sql.Rows) ([]library.Candidate, error) {
	var out []library.Candidate
	for rows.Next() {
		var c library.Candidate
		var cosScore, modScore, s2v sql.NullFloat64
		var cosMatches, modMatches, massMatch sql.NullInt64
		err := rows.Scan(&c.QueryID, &c.LibraryID, &c.LibraryIndex,
			&cosScore, &cosMatches, &modScore, &modMatches, &massMatch, &s2v)
		if err != nil {
			return nil, err
		}
		if cosScore.Valid {
			c.Cosine = &similarity.Score{Value: cosScore.Float64, Matches: int(cosMatches.Int64)}
		}
		if modScore.Valid {
			c.ModCosine = &similarity.Score{Value: modScore.Float64, Matches: int(modMatches.Int64)}
		}
		if massMatch.Valid {
			hit := massMatch.Int64 == 1
			c.MassMatch = &hit
		}
		if s2v.Valid {
			v := s2v.Float64
			c.Spec2Vec = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
