package pubchem

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Compound holds the PubChem properties needed to annotate a spectrum.
type Compound struct {
	CID              int       `json:"CID"`
	InChI            string    `json:"InChI,omitempty"`
	InChIKey         string    `json:"InChIKey,omitempty"`
	IsomericSMILES   string    `json:"IsomericSMILES,omitempty"`
	CanonicalSMILES  string    `json:"CanonicalSMILES,omitempty"`
	SMILES           string    `json:"SMILES,omitempty"`
	ExactMass        FlexFloat `json:"ExactMass,omitempty"`
	MolecularFormula string    `json:"MolecularFormula,omitempty"`
}

// BestSMILES returns the isomeric SMILES, falling back to the other variants.
func (c *Compound) BestSMILES() string {
	for _, s := range []string{c.IsomericSMILES, c.SMILES, c.CanonicalSMILES} {
		if s != "" {
			return s
		}
	}
	return ""
}

// FlexFloat decodes numbers that PubChem sends either as JSON numbers or strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into FlexFloat", string(data))
	}
	*f = FlexFloat(v)
	return nil
}

// MarshalJSON encodes the value as a plain number.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// propertyResponse is the PUG REST property table envelope.
type propertyResponse struct {
	PropertyTable struct {
		Properties []Compound `json:"Properties"`
	} `json:"PropertyTable"`
}

// faultResponse is the PUG REST error envelope.
type faultResponse struct {
	Fault struct {
		Code    string   `json:"Code"`
		Message string   `json:"Message"`
		Details []string `json:"Details"`
	} `json:"Fault"`
}
