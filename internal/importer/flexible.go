// Package importer reads spectra from GNPS library JSON and MGF files.
package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleString can unmarshal from either string or number JSON values.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

// String returns the value with GNPS placeholders ("N/A", "NA", blanks) mapped to "".
func (f FlexibleString) String() string {
	return Clean(string(f))
}

// Clean trims s and maps the placeholder values used by GNPS to "".
func Clean(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "n/a", "na", "nan", "null", "none":
		return ""
	}
	return s
}
