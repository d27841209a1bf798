package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/iomega/spec2vec-gnps/internal/library"
)

// MatchesFile is the name of the saved library matches JSONL file.
const MatchesFile = "matches.jsonl"

// ReadAllMatches reads all saved candidates from a JSONL file.
func ReadAllMatches(path string) ([]library.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening matches file: %w", err)
	}
	defer f.Close()

	var matches []library.Candidate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var c library.Candidate
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if c.QueryID == "" || c.LibraryID == "" {
			return nil, fmt.Errorf("invalid match at line %d: query_id and library_id are required", lineNum)
		}
		matches = append(matches, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading matches file: %w", err)
	}

	return matches, nil
}

// AppendMatches adds candidates to the end of a JSONL file.
func AppendMatches(path string, matches []library.Candidate) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening matches file for append: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, c := range matches {
		if err := writeJSONLine(w, c); err != nil {
			return fmt.Errorf("match %s/%s: %w", c.QueryID, c.LibraryID, err)
		}
	}
	return w.Flush()
}

// WriteAllMatches writes all candidates to a JSONL file, replacing existing content.
func WriteAllMatches(path string, matches []library.Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating matches file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, c := range matches {
		if err := writeJSONLine(w, c); err != nil {
			return fmt.Errorf("match %s/%s: %w", c.QueryID, c.LibraryID, err)
		}
	}
	return w.Flush()
}

// ReplaceMatchesForQueries drops every saved candidate of the queries present
// in results and appends the new candidates. Returns the updated slice.
func ReplaceMatchesForQueries(existing []library.Candidate, results []library.Result) []library.Candidate {
	replaced := make(map[string]bool, len(results))
	for _, r := range results {
		replaced[r.QueryID] = true
	}

	out := make([]library.Candidate, 0, len(existing))
	for _, c := range existing {
		if !replaced[c.QueryID] {
			out = append(out, c)
		}
	}
	for _, r := range results {
		out = append(out, r.Candidates...)
	}
	return out
}

// GroupMatches groups candidates by query ID, keeping file order within each query.
func GroupMatches(matches []library.Candidate) map[string][]library.Candidate {
	out := make(map[string][]library.Candidate)
	for _, c := range matches {
		out[c.QueryID] = append(out[c.QueryID], c)
	}
	return out
}
