package spectrum

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes a peak as a two-element [mz, intensity] array.
func (p Peak) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.MZ, p.Intensity})
}

// UnmarshalJSON accepts [mz, intensity] arrays and {"mz":..,"intensity":..} objects.
func (p *Peak) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("peak must have 2 values, got %d", len(pair))
		}
		p.MZ, p.Intensity = pair[0], pair[1]
		return nil
	}

	var obj struct {
		MZ        float64 `json:"mz"`
		Intensity float64 `json:"intensity"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("cannot unmarshal %s into Peak", string(data))
	}
	p.MZ, p.Intensity = obj.MZ, obj.Intensity
	return nil
}
